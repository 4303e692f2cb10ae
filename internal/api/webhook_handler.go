/**
 * @description
 * This file contains the HTTP handler for processing incoming webhooks from
 * the payment provider. It is the single entry point for real-time payment
 * notifications.
 *
 * Key features:
 * - Security: Validates the HMAC-SHA512 signature of incoming webhooks to
 *   ensure authenticity before the payload is even parsed.
 * - Acknowledgment: Always responds 200 once the delivery has been received,
 *   including for invalid signatures and malformed payloads. The provider
 *   retries non-2xx responses aggressively, and retrying a delivery we have
 *   already rejected can never change the outcome.
 * - Async processing: The reconciliation pipeline runs in a background
 *   goroutine with its own timeout so a slow database never stalls the
 *   provider's delivery loop.
 *
 * @dependencies
 * - crypto/hmac, crypto/sha512, encoding/hex: For webhook signature validation.
 * - encoding/json: For handling JSON data.
 * - internal/app: The reconciliation pipeline.
 */
package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kudipay/wallet-service/internal/app"
	"github.com/kudipay/wallet-service/internal/domain"
)

const (
	signatureHeader          = "x-paystack-signature"
	webhookProcessingTimeout = 15 * time.Second
	maxWebhookBodyBytes      = 1 << 20 // 1 MiB
)

// WebhookHandler processes payment provider webhook deliveries.
type WebhookHandler struct {
	service *app.Service
	secret  string
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(service *app.Service, secret string) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		secret:  strings.TrimSpace(secret),
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The signature is computed over the exact raw bytes, so the body is
	// read before any decoding.
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		log.Printf("level=error component=webhook_handler msg=\"failed to read webhook body\" err=%v", err)
		http.Error(w, "Cannot read request body", http.StatusBadRequest)
		return
	}

	if !h.isValidSignature(r.Header.Get(signatureHeader), body) {
		log.Printf("level=warn component=webhook_handler msg=\"invalid webhook signature\" remote_addr=%s", r.RemoteAddr)
		h.recordVerificationFailure(body, "invalid signature")
		h.acknowledge(w)
		return
	}

	var envelope domain.WebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		log.Printf("level=warn component=webhook_handler msg=\"malformed webhook payload\" err=%v", err)
		h.recordVerificationFailure(nil, "malformed payload: "+err.Error())
		h.acknowledge(w)
		return
	}

	event := envelope.ToPaymentEvent()
	log.Printf("level=info component=webhook_handler msg=\"webhook received\" event_type=%s reference=%s", event.Type, event.Reference)

	// Acknowledge first; the pipeline's own durability (UNIQUE reference,
	// sync outbox) covers a crash between ack and commit because the
	// provider redelivers unacknowledged events anyway.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), webhookProcessingTimeout)
		defer cancel()

		if err := h.service.ProcessPaymentEvent(ctx, event); err != nil {
			if errors.Is(err, app.ErrUserNotFound) {
				log.Printf("level=warn component=webhook_handler msg=\"no account matched event\" reference=%s", event.Reference)
				return
			}
			log.Printf("level=error component=webhook_handler msg=\"event processing failed\" reference=%s err=%v", event.Reference, err)
		}
	}()

	h.acknowledge(w)
}

func (h *WebhookHandler) acknowledge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"received"}`))
}

// recordVerificationFailure best-effort persists an audit row for a rejected
// delivery. The reference is recovered from the body when it still parses.
func (h *WebhookHandler) recordVerificationFailure(body []byte, cause string) {
	reference := ""
	if len(body) > 0 {
		var envelope domain.WebhookEnvelope
		if err := json.Unmarshal(body, &envelope); err == nil {
			reference = strings.TrimSpace(envelope.Data.Reference)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.service.RecordVerificationFailure(ctx, reference, cause)
}

// isValidSignature validates the provider's HMAC-SHA512 hex signature over
// the raw request body.
func (h *WebhookHandler) isValidSignature(header string, body []byte) bool {
	if h.secret == "" {
		// Refuse everything rather than credit wallets off unverifiable input.
		log.Printf("level=error component=webhook_handler msg=\"webhook secret is not configured; rejecting delivery\"")
		return false
	}

	provided := strings.TrimSpace(header)
	if provided == "" {
		return false
	}

	providedBytes, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}

	mac := hmac.New(sha512.New, []byte(h.secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	return hmac.Equal(providedBytes, expected)
}
