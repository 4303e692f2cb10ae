/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for all data access operations required by the wallet-service. By defining
 * an interface, we decouple the pipeline's business logic from the specific
 * database implementation (PostgreSQL), making the code easier to test.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/kudipay/wallet-service/internal/domain"
)

// CreditWalletParams carries everything the atomic credit path needs.
// AmountKobo is the raw provider amount; the store converts it to naira
// before touching the balance.
type CreditWalletParams struct {
	AccountID  uuid.UUID
	UserID     uuid.UUID
	Reference  string
	AmountKobo int64
	Gateway    string
	Channel    string
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Account resolution
	FindAccountByLinkedNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error)

	// Idempotency and crediting
	FindTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	CreditWallet(ctx context.Context, params CreditWalletParams) (*domain.Transaction, error)

	// Durable sync outbox
	ClaimSyncJobs(ctx context.Context, batchSize int, staleAfterSeconds int) ([]domain.SyncJob, error)
	MarkSyncJobSynced(ctx context.Context, jobID int64, attempts int) error
	MarkSyncJobFailed(ctx context.Context, jobID int64, attempts int, lastError string) error

	// Failed-sync store
	CreateFailedSync(ctx context.Context, record *domain.FailedSync) error
	ListFailedSyncs(ctx context.Context, limit int, offset int) ([]domain.FailedSync, error)

	// Diagnostics
	RecordVerificationAttempt(ctx context.Context, reference string, attemptError string) error
	ListVerificationAttempts(ctx context.Context, limit int, offset int) ([]domain.VerificationAttempt, error)
}
