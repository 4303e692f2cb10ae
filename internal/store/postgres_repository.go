/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL needed by the reconciliation pipeline:
 * account resolution lookups, the atomic wallet credit, the durable sync-job
 * outbox, and the failed-sync store.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kudipay/wallet-service/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrDuplicateReference is returned when a transaction with the event's
	// reference already exists. It is the authoritative duplicate signal,
	// raised by the UNIQUE constraint at insert time, and is treated by the
	// pipeline as a no-op success.
	ErrDuplicateReference = errors.New("transaction reference already processed")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const accountColumns = `id, user_id, btrim(email), linked_account_number, balance::text, created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account     domain.Account
		balanceText string
	)
	err := row.Scan(
		&account.ID,
		&account.UserID,
		&account.Email,
		&account.LinkedAccountNumber,
		&balanceText,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	balance, err := decimal.NewFromString(balanceText)
	if err != nil {
		return nil, fmt.Errorf("parse account balance: %w", err)
	}
	account.Balance = balance
	return &account, nil
}

// FindAccountByLinkedNumber retrieves the account whose dedicated virtual
// account number matches the event's receiver account number.
func (r *PostgresRepository) FindAccountByLinkedNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE linked_account_number = $1`
	return scanAccount(r.db.QueryRow(ctx, query, accountNumber))
}

// FindAccountByEmail retrieves an account by the owner's email, case-insensitively.
func (r *PostgresRepository) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(btrim(email)) = lower(btrim($1))`
	return scanAccount(r.db.QueryRow(ctx, query, email))
}

// FindAccountByUserID retrieves a user's wallet account.
func (r *PostgresRepository) FindAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, userID))
}

// FindTransactionByReference looks up a ledger record by its provider
// reference. Used as the optimistic duplicate check before the atomic credit.
func (r *PostgresRepository) FindTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := `
		SELECT id, user_id, type, amount::text, balance_before::text, balance_after::text,
		       reference, status, gateway, metadata, created_at
		FROM transactions
		WHERE reference = $1
	`
	var (
		tx            domain.Transaction
		amountText    string
		beforeText    string
		afterText     string
		metadataBytes []byte
	)
	err := r.db.QueryRow(ctx, query, reference).Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Type,
		&amountText,
		&beforeText,
		&afterText,
		&tx.Reference,
		&tx.Status,
		&tx.Gateway,
		&metadataBytes,
		&tx.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	if tx.Amount, err = decimal.NewFromString(amountText); err != nil {
		return nil, fmt.Errorf("parse transaction amount: %w", err)
	}
	if tx.BalanceBefore, err = decimal.NewFromString(beforeText); err != nil {
		return nil, fmt.Errorf("parse balance_before: %w", err)
	}
	if tx.BalanceAfter, err = decimal.NewFromString(afterText); err != nil {
		return nil, fmt.Errorf("parse balance_after: %w", err)
	}
	if len(metadataBytes) > 0 {
		if err := json.Unmarshal(metadataBytes, &tx.Metadata); err != nil {
			return nil, fmt.Errorf("decode transaction metadata: %w", err)
		}
	}
	return &tx, nil
}

// CreditWallet performs the whole local credit as one database transaction:
// lock the account row, insert the ledger record (the UNIQUE reference
// closes the duplicate race), move the balance, and enqueue the durable
// sync job. Everything commits or aborts together; a duplicate reference
// surfaces as ErrDuplicateReference with no state change.
func (r *PostgresRepository) CreditWallet(ctx context.Context, params CreditWalletParams) (*domain.Transaction, error) {
	amount := domain.KoboToNaira(params.AmountKobo)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// FOR UPDATE serializes concurrent credits to the same account.
	var balanceText string
	err = tx.QueryRow(ctx, `SELECT balance::text FROM accounts WHERE id = $1 FOR UPDATE`, params.AccountID).Scan(&balanceText)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	balanceBefore, err := decimal.NewFromString(balanceText)
	if err != nil {
		return nil, fmt.Errorf("parse locked balance: %w", err)
	}
	balanceAfter := balanceBefore.Add(amount)

	record := &domain.Transaction{
		ID:            uuid.New(),
		UserID:        params.UserID,
		Type:          "credit",
		Amount:        amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		Reference:     params.Reference,
		Status:        domain.TransactionStatusSuccess,
		Gateway:       params.Gateway,
		Metadata:      map[string]any{"channel": params.Channel, "amount_kobo": params.AmountKobo},
	}
	metadataBytes, err := json.Marshal(record.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode transaction metadata: %w", err)
	}

	insertQuery := `
		INSERT INTO transactions (
			id, user_id, type, amount, balance_before, balance_after,
			reference, status, gateway, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb)
		RETURNING created_at
	`
	err = tx.QueryRow(ctx, insertQuery,
		record.ID,
		record.UserID,
		record.Type,
		record.Amount.String(),
		record.BalanceBefore.String(),
		record.BalanceAfter.String(),
		record.Reference,
		record.Status,
		record.Gateway,
		string(metadataBytes),
	).Scan(&record.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateReference
		}
		return nil, err
	}

	result, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2`,
		record.BalanceAfter.String(), params.AccountID)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected() == 0 {
		return nil, ErrAccountNotFound
	}

	// Outbox row rides the same commit so the sync obligation is durable
	// the instant the credit is visible.
	_, err = tx.Exec(ctx, `
		INSERT INTO wallet_sync_jobs (user_id, reference, amount_kobo, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (reference) DO NOTHING
	`, params.UserID, params.Reference, params.AmountKobo, domain.SyncJobStatusPending)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

// ClaimSyncJobs atomically moves a batch of pending jobs (plus any
// `processing` rows whose claim has gone stale, e.g. a crashed instance)
// into the processing state and returns them. SKIP LOCKED keeps multiple
// dispatcher instances from claiming the same rows.
func (r *PostgresRepository) ClaimSyncJobs(ctx context.Context, batchSize int, staleAfterSeconds int) ([]domain.SyncJob, error) {
	if batchSize <= 0 {
		batchSize = 50
	}
	if staleAfterSeconds <= 0 {
		staleAfterSeconds = 120
	}

	query := `
		UPDATE wallet_sync_jobs
		SET status = $1, claimed_at = NOW(), updated_at = NOW()
		WHERE id IN (
			SELECT id FROM wallet_sync_jobs
			WHERE status = $2
			   OR (status = $1 AND claimed_at < NOW() - ($3 * INTERVAL '1 second'))
			ORDER BY id
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, user_id, reference, amount_kobo, status, attempts, last_error, claimed_at, created_at, updated_at
	`
	rows, err := r.db.Query(ctx, query,
		domain.SyncJobStatusProcessing,
		domain.SyncJobStatusPending,
		staleAfterSeconds,
		batchSize,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.SyncJob
	for rows.Next() {
		var job domain.SyncJob
		err := rows.Scan(
			&job.ID,
			&job.UserID,
			&job.Reference,
			&job.AmountKobo,
			&job.Status,
			&job.Attempts,
			&job.LastError,
			&job.ClaimedAt,
			&job.CreatedAt,
			&job.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// MarkSyncJobSynced finalizes a delivered job.
func (r *PostgresRepository) MarkSyncJobSynced(ctx context.Context, jobID int64, attempts int) error {
	query := `
		UPDATE wallet_sync_jobs
		SET status = $1, attempts = $2, last_error = NULL, updated_at = NOW()
		WHERE id = $3
	`
	_, err := r.db.Exec(ctx, query, domain.SyncJobStatusSynced, attempts, jobID)
	return err
}

// MarkSyncJobFailed finalizes an exhausted or terminally rejected job.
func (r *PostgresRepository) MarkSyncJobFailed(ctx context.Context, jobID int64, attempts int, lastError string) error {
	query := `
		UPDATE wallet_sync_jobs
		SET status = $1, attempts = $2, last_error = $3, updated_at = NOW()
		WHERE id = $4
	`
	_, err := r.db.Exec(ctx, query, domain.SyncJobStatusFailed, attempts, lastError, jobID)
	return err
}

// CreateFailedSync persists the reconciliation obligation after the sync
// retry burst is exhausted.
func (r *PostgresRepository) CreateFailedSync(ctx context.Context, record *domain.FailedSync) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.LastAttempt.IsZero() {
		record.LastAttempt = time.Now().UTC()
	}
	query := `
		INSERT INTO failed_syncs (id, user_id, amount_kobo, reference, error, retry_count, last_attempt)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		record.ID,
		record.UserID,
		record.AmountKobo,
		record.Reference,
		record.Error,
		record.RetryCount,
		record.LastAttempt,
	)
	return err
}

// ListFailedSyncs returns failed-sync records, newest first, for the
// reconciliation sweep and for manual inspection.
func (r *PostgresRepository) ListFailedSyncs(ctx context.Context, limit int, offset int) ([]domain.FailedSync, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, user_id, amount_kobo, reference, error, retry_count, last_attempt
		FROM failed_syncs
		ORDER BY last_attempt DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.FailedSync
	for rows.Next() {
		var record domain.FailedSync
		err := rows.Scan(
			&record.ID,
			&record.UserID,
			&record.AmountKobo,
			&record.Reference,
			&record.Error,
			&record.RetryCount,
			&record.LastAttempt,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// RecordVerificationAttempt stores a diagnostic row for a delivery that
// failed signature verification or payload parsing. Failures here are the
// caller's to log; they never affect the pipeline.
func (r *PostgresRepository) RecordVerificationAttempt(ctx context.Context, reference string, attemptError string) error {
	query := `INSERT INTO verification_attempts (reference, error, attempted_at) VALUES ($1, $2, NOW())`
	_, err := r.db.Exec(ctx, query, reference, attemptError)
	return err
}

// ListVerificationAttempts returns rejected-delivery audit records, newest
// first, for manual inspection.
func (r *PostgresRepository) ListVerificationAttempts(ctx context.Context, limit int, offset int) ([]domain.VerificationAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, reference, error, attempted_at
		FROM verification_attempts
		ORDER BY attempted_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []domain.VerificationAttempt
	for rows.Next() {
		var attempt domain.VerificationAttempt
		if err := rows.Scan(&attempt.ID, &attempt.Reference, &attempt.Error, &attempt.AttemptedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}
