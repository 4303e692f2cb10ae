package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/kudipay/wallet-service/internal/domain"
	"github.com/kudipay/wallet-service/internal/store"
	"github.com/kudipay/wallet-service/pkg/ledgerclient"
	"github.com/kudipay/wallet-service/pkg/rabbitmq"
	"github.com/shopspring/decimal"
)

type walletRepoStub struct {
	store.Repository

	accountByNumber *domain.Account
	accountByEmail  *domain.Account
	accountByUserID *domain.Account

	existingTx *domain.Transaction

	creditCalled bool
	creditParams store.CreditWalletParams
	creditErr    error
	creditResult *domain.Transaction

	verificationAttempts []string
}

func (s *walletRepoStub) FindAccountByLinkedNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	if s.accountByNumber == nil {
		return nil, store.ErrAccountNotFound
	}
	return s.accountByNumber, nil
}

func (s *walletRepoStub) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	if s.accountByEmail == nil {
		return nil, store.ErrAccountNotFound
	}
	return s.accountByEmail, nil
}

func (s *walletRepoStub) FindAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	if s.accountByUserID == nil {
		return nil, store.ErrAccountNotFound
	}
	return s.accountByUserID, nil
}

func (s *walletRepoStub) FindTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	if s.existingTx == nil {
		return nil, store.ErrTransactionNotFound
	}
	return s.existingTx, nil
}

func (s *walletRepoStub) CreditWallet(ctx context.Context, params store.CreditWalletParams) (*domain.Transaction, error) {
	s.creditCalled = true
	s.creditParams = params
	if s.creditErr != nil {
		return nil, s.creditErr
	}
	if s.creditResult != nil {
		return s.creditResult, nil
	}
	amount := domain.KoboToNaira(params.AmountKobo)
	return &domain.Transaction{
		ID:           uuid.New(),
		UserID:       params.UserID,
		Type:         "credit",
		Amount:       amount,
		BalanceAfter: amount,
		Reference:    params.Reference,
		Status:       domain.TransactionStatusSuccess,
		Gateway:      params.Gateway,
	}, nil
}

func (s *walletRepoStub) RecordVerificationAttempt(ctx context.Context, reference string, attemptError string) error {
	s.verificationAttempts = append(s.verificationAttempts, reference)
	return nil
}

type publisherStub struct {
	published  []rabbitmq.WalletCreditedEvent
	publishErr error
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	return nil
}

func (p *publisherStub) PublishWalletCreditedEvent(ctx context.Context, event rabbitmq.WalletCreditedEvent) error {
	p.published = append(p.published, event)
	return p.publishErr
}

func (p *publisherStub) Close() {}

type ledgerStub struct {
	err  error
	resp *ledgerclient.TopUpResponse
}

func (l *ledgerStub) TopUpWallet(ctx context.Context, req ledgerclient.TopUpRequest) (*ledgerclient.TopUpResponse, error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.resp != nil {
		return l.resp, nil
	}
	return &ledgerclient.TopUpResponse{Success: true}, nil
}

func successfulChargeEvent() *domain.PaymentEvent {
	return &domain.PaymentEvent{
		Type:          "charge.success",
		Reference:     "ref_abc123",
		AmountKobo:    500000,
		Status:        "success",
		Channel:       "card",
		CustomerEmail: "ada@example.com",
	}
}

func TestProcessPaymentEvent_CreditsWalletOnce(t *testing.T) {
	accountID := uuid.New()
	userID := uuid.New()
	repo := &walletRepoStub{
		accountByEmail: &domain.Account{ID: accountID, UserID: userID, Balance: decimal.NewFromInt(1000)},
	}
	publisher := &publisherStub{}
	service := NewService(repo, nil, publisher, &ledgerStub{})

	if err := service.ProcessPaymentEvent(context.Background(), successfulChargeEvent()); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	if !repo.creditCalled {
		t.Fatal("expected CreditWallet to be called")
	}
	if repo.creditParams.AccountID != accountID {
		t.Fatalf("expected credit on account %s, got %s", accountID, repo.creditParams.AccountID)
	}
	if repo.creditParams.AmountKobo != 500000 {
		t.Fatalf("expected amount 500000 kobo, got %d", repo.creditParams.AmountKobo)
	}
	if repo.creditParams.Reference != "ref_abc123" {
		t.Fatalf("unexpected reference %q", repo.creditParams.Reference)
	}
	if len(publisher.published) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(publisher.published))
	}
	if publisher.published[0].UserID != userID {
		t.Fatalf("published event has wrong user id: %s", publisher.published[0].UserID)
	}
}

func TestProcessPaymentEvent_DuplicateReferenceIsNoOp(t *testing.T) {
	repo := &walletRepoStub{
		accountByEmail: &domain.Account{ID: uuid.New(), UserID: uuid.New()},
		creditErr:      store.ErrDuplicateReference,
	}
	publisher := &publisherStub{}
	service := NewService(repo, nil, publisher, &ledgerStub{})

	if err := service.ProcessPaymentEvent(context.Background(), successfulChargeEvent()); err != nil {
		t.Fatalf("duplicate reference should be a no-op success, got: %v", err)
	}
	if len(publisher.published) != 0 {
		t.Fatalf("duplicate must not publish an event, got %d", len(publisher.published))
	}
}

func TestProcessPaymentEvent_ReplayedReferenceSkipsCredit(t *testing.T) {
	repo := &walletRepoStub{
		accountByEmail: &domain.Account{ID: uuid.New(), UserID: uuid.New()},
		existingTx: &domain.Transaction{
			ID:        uuid.New(),
			Reference: "ref_abc123",
			Status:    domain.TransactionStatusSuccess,
		},
	}
	publisher := &publisherStub{}
	service := NewService(repo, nil, publisher, &ledgerStub{})

	if err := service.ProcessPaymentEvent(context.Background(), successfulChargeEvent()); err != nil {
		t.Fatalf("replay should be a no-op success, got: %v", err)
	}
	if repo.creditCalled {
		t.Fatal("a replayed reference must not reach CreditWallet")
	}
	if len(publisher.published) != 0 {
		t.Fatalf("a replay must not publish an event, got %d", len(publisher.published))
	}
}

func TestProcessPaymentEvent_UserNotFound(t *testing.T) {
	repo := &walletRepoStub{}
	service := NewService(repo, nil, &publisherStub{}, &ledgerStub{})

	err := service.ProcessPaymentEvent(context.Background(), successfulChargeEvent())
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got: %v", err)
	}
	if repo.creditCalled {
		t.Fatal("no credit may happen when no account matched")
	}
}

func TestProcessPaymentEvent_IgnoresUnhandledEvents(t *testing.T) {
	tests := []struct {
		name  string
		event *domain.PaymentEvent
	}{
		{
			name:  "non charge event type",
			event: &domain.PaymentEvent{Type: "transfer.success", Reference: "ref_1", AmountKobo: 1000, Status: "success"},
		},
		{
			name:  "failed charge",
			event: &domain.PaymentEvent{Type: "charge.success", Reference: "ref_2", AmountKobo: 1000, Status: "failed"},
		},
		{
			name:  "pending charge",
			event: &domain.PaymentEvent{Type: "charge.success", Reference: "ref_3", AmountKobo: 1000, Status: "pending"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &walletRepoStub{
				accountByEmail: &domain.Account{ID: uuid.New(), UserID: uuid.New()},
			}
			service := NewService(repo, nil, &publisherStub{}, &ledgerStub{})

			if err := service.ProcessPaymentEvent(context.Background(), tt.event); err != nil {
				t.Fatalf("unhandled events should be acknowledged without error, got: %v", err)
			}
			if repo.creditCalled {
				t.Fatal("unhandled events must not credit a wallet")
			}
		})
	}
}

func TestProcessPaymentEvent_RejectsInvalidAmounts(t *testing.T) {
	repo := &walletRepoStub{
		accountByEmail: &domain.Account{ID: uuid.New(), UserID: uuid.New()},
	}
	service := NewService(repo, nil, &publisherStub{}, &ledgerStub{})

	event := successfulChargeEvent()
	event.AmountKobo = 0
	if err := service.ProcessPaymentEvent(context.Background(), event); err == nil {
		t.Fatal("expected error for non-positive amount")
	}
	if repo.creditCalled {
		t.Fatal("non-positive amounts must not credit a wallet")
	}
}

func TestNormalizeEventStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"success", domain.TransactionStatusSuccess},
		{"Successful", domain.TransactionStatusSuccess},
		{"COMPLETED", domain.TransactionStatusSuccess},
		{" pending ", domain.TransactionStatusPending},
		{"processing", domain.TransactionStatusPending},
		{"failed", domain.TransactionStatusFailed},
		{"abandoned", domain.TransactionStatusFailed},
		{"", domain.TransactionStatusFailed},
	}

	for _, tt := range tests {
		if got := normalizeEventStatus(tt.raw); got != tt.want {
			t.Errorf("normalizeEventStatus(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
