/**
 * @description
 * This file contains the core business logic for the wallet-service: the
 * reconciliation pipeline that turns a verified payment-provider event into
 * an idempotent wallet credit. The handler layer has already verified the
 * webhook signature before an event reaches this code.
 *
 * Pipeline order for a charge event:
 *  1. filter to successful charge events
 *  2. fast duplicate check (Redis seen-reference cache, then ledger lookup)
 *  3. resolve the owning wallet account
 *  4. atomic credit (ledger insert + balance move + durable sync job)
 *  5. best-effort wallet.credited event publish
 *
 * @dependencies
 * - internal/store: Data access layer and sentinel errors.
 * - pkg/rabbitmq: Event publishing.
 * - pkg/ledgerclient: Used by the sync dispatcher in this package.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kudipay/wallet-service/internal/domain"
	"github.com/kudipay/wallet-service/internal/store"
	"github.com/kudipay/wallet-service/pkg/ledgerclient"
	"github.com/kudipay/wallet-service/pkg/rabbitmq"
)

const chargeSuccessEvent = "charge.success"

// LedgerSyncClient is the slice of the ledger service client the dispatcher
// needs. Declared here so tests can stub the sync target.
type LedgerSyncClient interface {
	TopUpWallet(ctx context.Context, req ledgerclient.TopUpRequest) (*ledgerclient.TopUpResponse, error)
}

// Service orchestrates the webhook reconciliation pipeline.
type Service struct {
	repo     store.Repository
	cache    *ReferenceCache
	producer rabbitmq.Publisher
	ledger   LedgerSyncClient
}

// NewService creates a new Service. cache may be nil when Redis is not
// configured; the pipeline then relies on the database duplicate checks alone.
func NewService(repo store.Repository, cache *ReferenceCache, producer rabbitmq.Publisher, ledger LedgerSyncClient) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		producer: producer,
		ledger:   ledger,
	}
}

// normalizeEventStatus maps the provider's assorted status spellings onto the
// canonical set. Unknown values normalize to failed so nothing ambiguous can
// credit a wallet.
func normalizeEventStatus(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "successful", "completed":
		return domain.TransactionStatusSuccess
	case "pending", "processing", "ongoing":
		return domain.TransactionStatusPending
	default:
		return domain.TransactionStatusFailed
	}
}

// ProcessPaymentEvent runs one verified provider event through the pipeline.
// A duplicate reference is a no-op success. ErrUserNotFound is returned when
// no resolution strategy matched; the caller logs it and still acknowledges
// the delivery.
func (s *Service) ProcessPaymentEvent(ctx context.Context, event *domain.PaymentEvent) error {
	if event == nil {
		return errors.New("payment event is nil")
	}
	if event.Type != chargeSuccessEvent {
		log.Printf("level=info component=service flow=webhook msg=\"ignoring unhandled event type\" event_type=%s reference=%s", event.Type, event.Reference)
		return nil
	}
	if normalizeEventStatus(event.Status) != domain.TransactionStatusSuccess {
		log.Printf("level=info component=service flow=webhook msg=\"ignoring non-successful charge\" reference=%s status=%s", event.Reference, event.Status)
		return nil
	}
	if event.Reference == "" {
		return errors.New("charge event has no reference")
	}
	if event.AmountKobo <= 0 {
		return fmt.Errorf("charge event %s has non-positive amount %d", event.Reference, event.AmountKobo)
	}

	// Cheap redelivery signal. The cache can be stale or unavailable, so it
	// only feeds the log line; the ledger read below decides.
	alreadySeen, cacheErr := s.cache.MarkSeen(ctx, event.Reference)
	if cacheErr != nil {
		log.Printf("level=warn component=service flow=webhook msg=\"seen-reference cache unavailable\" reference=%s err=%v", event.Reference, cacheErr)
	}

	// Optimistic duplicate read. The UNIQUE constraint at insert time is the
	// guarantee; this read just skips the resolution work for the common
	// redelivery case.
	if _, err := s.repo.FindTransactionByReference(ctx, event.Reference); err == nil {
		log.Printf("level=info component=service flow=webhook msg=\"duplicate delivery ignored\" reference=%s cache_hit=%t", event.Reference, alreadySeen)
		return nil
	} else if !errors.Is(err, store.ErrTransactionNotFound) {
		return fmt.Errorf("duplicate check for %s: %w", event.Reference, err)
	}

	account, err := s.ResolveAccount(ctx, event)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.cache.Forget(ctx, event.Reference)
			return ErrUserNotFound
		}
		s.cache.Forget(ctx, event.Reference)
		return err
	}

	gateway := "paystack"
	tx, err := s.repo.CreditWallet(ctx, store.CreditWalletParams{
		AccountID:  account.ID,
		UserID:     account.UserID,
		Reference:  event.Reference,
		AmountKobo: event.AmountKobo,
		Gateway:    gateway,
		Channel:    event.Channel,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateReference) {
			log.Printf("level=info component=service flow=webhook msg=\"duplicate reference at insert; already credited\" reference=%s", event.Reference)
			return nil
		}
		s.cache.Forget(ctx, event.Reference)
		return fmt.Errorf("credit wallet for %s: %w", event.Reference, err)
	}

	log.Printf("level=info component=service flow=webhook msg=\"wallet credited\" user_id=%s reference=%s amount=%s balance_after=%s",
		tx.UserID, tx.Reference, tx.Amount.String(), tx.BalanceAfter.String())

	if err := s.producer.PublishWalletCreditedEvent(ctx, rabbitmq.WalletCreditedEvent{
		UserID:     tx.UserID,
		AmountKobo: event.AmountKobo,
		Reference:  tx.Reference,
		Gateway:    gateway,
		Timestamp:  time.Now().UTC(),
	}); err != nil {
		// Delivery to the ledger service rides the durable sync job, so a
		// lost broker event costs a notification at most.
		log.Printf("level=warn component=service flow=webhook msg=\"wallet credited event publish failed\" reference=%s err=%v", tx.Reference, err)
	}

	return nil
}

// RecordVerificationFailure stores an audit row for a delivery that failed
// signature verification or payload parsing. Best effort only.
func (s *Service) RecordVerificationFailure(ctx context.Context, reference string, cause string) {
	if err := s.repo.RecordVerificationAttempt(ctx, reference, cause); err != nil {
		log.Printf("level=warn component=service flow=webhook msg=\"failed to record verification attempt\" reference=%s err=%v", reference, err)
	}
}

// GetWalletBalance returns the current balance for a user's wallet.
func (s *Service) GetWalletBalance(ctx context.Context, userID string) (*domain.WalletBalance, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	account, err := s.repo.FindAccountByUserID(ctx, parsed)
	if err != nil {
		return nil, err
	}
	return &domain.WalletBalance{
		UserID:   account.UserID,
		Balance:  account.Balance,
		Currency: "NGN",
	}, nil
}

// ListFailedSyncs exposes the failed-sync store for the internal
// reconciliation endpoint.
func (s *Service) ListFailedSyncs(ctx context.Context, limit int, offset int) ([]domain.FailedSync, error) {
	return s.repo.ListFailedSyncs(ctx, limit, offset)
}

// ListVerificationAttempts exposes the rejected-delivery audit trail for
// manual inspection over the internal API.
func (s *Service) ListVerificationAttempts(ctx context.Context, limit int, offset int) ([]domain.VerificationAttempt, error) {
	return s.repo.ListVerificationAttempts(ctx, limit, offset)
}
