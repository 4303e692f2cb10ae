package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kudipay/wallet-service/internal/app"
	"github.com/kudipay/wallet-service/internal/domain"
	"github.com/kudipay/wallet-service/internal/store"
	"github.com/kudipay/wallet-service/pkg/rabbitmq"
)

const testWebhookSecret = "sk_test_webhook_secret"

type webhookRepoStub struct {
	store.Repository

	account *domain.Account

	credited             chan store.CreditWalletParams
	verificationRecorded chan string
}

func newWebhookRepoStub(account *domain.Account) *webhookRepoStub {
	return &webhookRepoStub{
		account:              account,
		credited:             make(chan store.CreditWalletParams, 1),
		verificationRecorded: make(chan string, 1),
	}
}

func (s *webhookRepoStub) FindAccountByLinkedNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	return nil, store.ErrAccountNotFound
}

func (s *webhookRepoStub) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	if s.account == nil {
		return nil, store.ErrAccountNotFound
	}
	return s.account, nil
}

func (s *webhookRepoStub) FindAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	return nil, store.ErrAccountNotFound
}

func (s *webhookRepoStub) FindTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	return nil, store.ErrTransactionNotFound
}

func (s *webhookRepoStub) CreditWallet(ctx context.Context, params store.CreditWalletParams) (*domain.Transaction, error) {
	s.credited <- params
	return &domain.Transaction{
		ID:        uuid.New(),
		UserID:    params.UserID,
		Reference: params.Reference,
		Status:    domain.TransactionStatusSuccess,
	}, nil
}

func (s *webhookRepoStub) RecordVerificationAttempt(ctx context.Context, reference string, attemptError string) error {
	select {
	case s.verificationRecorded <- attemptError:
	default:
	}
	return nil
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func newTestWebhookHandler(repo store.Repository) *WebhookHandler {
	service := app.NewService(repo, nil, &rabbitmq.EventProducerFallback{}, nil)
	return NewWebhookHandler(service, testWebhookSecret)
}

func validWebhookBody() []byte {
	return []byte(`{
		"event": "charge.success",
		"data": {
			"reference": "ref_webhook_1",
			"amount": 500000,
			"status": "success",
			"channel": "card",
			"customer": {"email": "ada@example.com"}
		}
	}`)
}

func postWebhook(t *testing.T, handler *WebhookHandler, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/wallet/webhook/paystack", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("x-paystack-signature", signature)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func TestWebhookHandler_ValidSignatureProcessesEvent(t *testing.T) {
	repo := newWebhookRepoStub(&domain.Account{ID: uuid.New(), UserID: uuid.New()})
	handler := newTestWebhookHandler(repo)

	body := validWebhookBody()
	recorder := postWebhook(t, handler, body, signBody(testWebhookSecret, body))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	select {
	case params := <-repo.credited:
		if params.Reference != "ref_webhook_1" {
			t.Fatalf("unexpected reference %q", params.Reference)
		}
		if params.AmountKobo != 500000 {
			t.Fatalf("unexpected amount %d", params.AmountKobo)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected the event to be processed")
	}
}

func TestWebhookHandler_TamperedBodyIsAcknowledgedButNotProcessed(t *testing.T) {
	repo := newWebhookRepoStub(&domain.Account{ID: uuid.New(), UserID: uuid.New()})
	handler := newTestWebhookHandler(repo)

	body := validWebhookBody()
	signature := signBody(testWebhookSecret, body)
	tampered := bytes.Replace(body, []byte("500000"), []byte("900000"), 1)

	recorder := postWebhook(t, handler, tampered, signature)

	if recorder.Code != http.StatusOK {
		t.Fatalf("invalid signatures must still be acknowledged with 200, got %d", recorder.Code)
	}

	select {
	case <-repo.credited:
		t.Fatal("a tampered delivery must never credit a wallet")
	case <-time.After(100 * time.Millisecond):
	}

	select {
	case cause := <-repo.verificationRecorded:
		if cause == "" {
			t.Fatal("verification attempt must carry a cause")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a verification attempt record")
	}
}

func TestWebhookHandler_MissingSignatureIsAcknowledgedButNotProcessed(t *testing.T) {
	repo := newWebhookRepoStub(&domain.Account{ID: uuid.New(), UserID: uuid.New()})
	handler := newTestWebhookHandler(repo)

	recorder := postWebhook(t, handler, validWebhookBody(), "")

	if recorder.Code != http.StatusOK {
		t.Fatalf("missing signatures must still be acknowledged with 200, got %d", recorder.Code)
	}
	select {
	case <-repo.credited:
		t.Fatal("an unsigned delivery must never credit a wallet")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWebhookHandler_MalformedPayloadIsAcknowledged(t *testing.T) {
	repo := newWebhookRepoStub(nil)
	handler := newTestWebhookHandler(repo)

	body := []byte(`{"event": "charge.success", "data":`)
	recorder := postWebhook(t, handler, body, signBody(testWebhookSecret, body))

	if recorder.Code != http.StatusOK {
		t.Fatalf("malformed payloads must still be acknowledged with 200, got %d", recorder.Code)
	}
	select {
	case <-repo.verificationRecorded:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a verification attempt record for the malformed payload")
	}
}

func TestIsValidSignature(t *testing.T) {
	handler := NewWebhookHandler(nil, testWebhookSecret)
	body := []byte(`{"event":"charge.success"}`)

	tests := []struct {
		name      string
		signature string
		want      bool
	}{
		{"valid", signBody(testWebhookSecret, body), true},
		{"wrong secret", signBody("other_secret", body), false},
		{"not hex", "zzzz", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := handler.isValidSignature(tt.signature, body); got != tt.want {
				t.Fatalf("isValidSignature() = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestIsValidSignature_EmptySecretRejects(t *testing.T) {
	handler := NewWebhookHandler(nil, "")
	body := []byte(`{}`)
	if handler.isValidSignature(signBody("", body), body) {
		t.Fatal("an unconfigured secret must reject every delivery")
	}
}
