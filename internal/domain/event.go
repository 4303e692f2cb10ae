/**
 * @description
 * This file defines the wire shape of incoming payment-provider webhook
 * payloads and the flattened PaymentEvent the pipeline consumes. The
 * envelope is only decoded after the raw body has passed signature
 * verification.
 */

package domain

import "strings"

// WebhookEnvelope mirrors the provider's webhook payload. Only the fields
// the pipeline needs are decoded; everything else is ignored.
type WebhookEnvelope struct {
	Event     string           `json:"event"`
	EventType string           `json:"eventType"` // some provider variants use this key instead
	Data      WebhookEventData `json:"data"`
}

// WebhookEventData is the `data` object of the provider envelope.
type WebhookEventData struct {
	Reference     string                `json:"reference"`
	Amount        int64                 `json:"amount"` // in kobo
	Status        string                `json:"status"`
	Channel       string                `json:"channel"`
	Customer      *WebhookCustomer      `json:"customer,omitempty"`
	Authorization *WebhookAuthorization `json:"authorization,omitempty"`
	Metadata      *WebhookMetadata      `json:"metadata,omitempty"`
}

// WebhookCustomer carries the paying customer's identity as known to the provider.
type WebhookCustomer struct {
	Email string `json:"email"`
}

// WebhookAuthorization carries the receiving virtual account details for
// dedicated-account (bank transfer) payments.
type WebhookAuthorization struct {
	ReceiverAccountNumber string `json:"receiver_bank_account_number"`
}

// WebhookMetadata carries pass-through metadata the service attached when
// initializing the charge, if any.
type WebhookMetadata struct {
	UserID string `json:"userId"`
}

// PaymentEvent is the flattened, transient event consumed exactly once by
// the reconciliation pipeline. It is never persisted verbatim.
type PaymentEvent struct {
	Type                  string
	Reference             string
	AmountKobo            int64
	Status                string
	Channel               string
	CustomerEmail         string
	ReceiverAccountNumber string
	EmbeddedUserID        string
}

// ToPaymentEvent flattens the provider envelope into the pipeline's event.
func (e *WebhookEnvelope) ToPaymentEvent() *PaymentEvent {
	eventType := strings.TrimSpace(e.Event)
	if eventType == "" {
		eventType = strings.TrimSpace(e.EventType)
	}

	event := &PaymentEvent{
		Type:       eventType,
		Reference:  strings.TrimSpace(e.Data.Reference),
		AmountKobo: e.Data.Amount,
		Status:     e.Data.Status,
		Channel:    e.Data.Channel,
	}
	if e.Data.Customer != nil {
		event.CustomerEmail = strings.TrimSpace(e.Data.Customer.Email)
	}
	if e.Data.Authorization != nil {
		event.ReceiverAccountNumber = strings.TrimSpace(e.Data.Authorization.ReceiverAccountNumber)
	}
	if e.Data.Metadata != nil {
		event.EmbeddedUserID = strings.TrimSpace(e.Data.Metadata.UserID)
	}
	return event
}
