/**
 * @description
 * This file defines the core domain models for the wallet-service.
 * These structs represent the main entities used throughout the service's
 * business logic, database interactions, and API layers.
 *
 * @notes
 * - Provider amounts arrive as `int64` kobo (the smallest currency unit) and
 *   are converted to decimal naira before touching a wallet balance, so the
 *   ledger never accumulates floating-point error.
 * - The transaction `reference` is the idempotency key for the whole
 *   pipeline: the UNIQUE constraint on it is what guarantees at-most-one
 *   credit per provider event.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Canonical transaction statuses. Provider payloads use several spellings
// ("success", "Successful", "completed"); everything is normalized to these
// three values before persistence.
const (
	TransactionStatusPending = "pending"
	TransactionStatusSuccess = "success"
	TransactionStatusFailed  = "failed"
)

// Sync job states for the durable wallet_sync_jobs outbox.
const (
	SyncJobStatusPending    = "pending"
	SyncJobStatusProcessing = "processing"
	SyncJobStatusSynced     = "synced"
	SyncJobStatusFailed     = "failed"
)

// Account represents a user's internal wallet. The balance is held in naira
// as a decimal and is mutated only by the atomic credit path in the store.
type Account struct {
	ID                  uuid.UUID       `json:"id"`
	UserID              uuid.UUID       `json:"user_id"`
	Email               string          `json:"email"`
	LinkedAccountNumber *string         `json:"linked_account_number,omitempty"`
	Balance             decimal.Decimal `json:"balance"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// Transaction is the immutable ledger record for a wallet credit.
// This struct maps directly to the `transactions` table in the database.
type Transaction struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	Type          string          `json:"type"` // e.g., 'credit'
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Reference     string          `json:"reference"`
	Status        string          `json:"status"`
	Gateway       string          `json:"gateway"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SyncJob is a durable outbox row written in the same database transaction
// as the wallet credit. The dispatcher claims jobs and delivers them to the
// main ledger service; the row survives process restarts, so delivery is
// at-least-once.
type SyncJob struct {
	ID         int64      `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Reference  string     `json:"reference"`
	AmountKobo int64      `json:"amount_kobo"`
	Status     string     `json:"status"`
	Attempts   int        `json:"attempts"`
	LastError  *string    `json:"last_error,omitempty"`
	ClaimedAt  *time.Time `json:"claimed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// FailedSync records a credit that could not be propagated to the main
// ledger service after the retry burst was exhausted. It is the queryable
// interface consumed by the out-of-band reconciliation sweep.
type FailedSync struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	AmountKobo  int64     `json:"amount_kobo"`
	Reference   string    `json:"reference"`
	Error       string    `json:"error"`
	RetryCount  int       `json:"retry_count"`
	LastAttempt time.Time `json:"last_attempt"`
}

// VerificationAttempt is a diagnostic audit record for webhook deliveries
// that failed signature verification or payload parsing. It feeds manual
// inspection only and never drives control flow.
type VerificationAttempt struct {
	ID          int64     `json:"id"`
	Reference   string    `json:"reference"`
	Error       string    `json:"error"`
	AttemptedAt time.Time `json:"attempted_at"`
}

// WalletBalance is the response shape for the balance query endpoint.
type WalletBalance struct {
	UserID   uuid.UUID       `json:"user_id"`
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

// KoboToNaira converts a provider amount in minor units (kobo) to a decimal
// naira value. 500000 kobo -> 5000 naira.
func KoboToNaira(kobo int64) decimal.Decimal {
	return decimal.NewFromInt(kobo).Div(decimal.NewFromInt(100))
}
