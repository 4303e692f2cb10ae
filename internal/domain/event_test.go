package domain

import (
	"encoding/json"
	"testing"
)

func TestToPaymentEvent_FlattensEnvelope(t *testing.T) {
	payload := []byte(`{
		"event": "charge.success",
		"data": {
			"reference": " ref_123 ",
			"amount": 500000,
			"status": "success",
			"channel": "dedicated_nuban",
			"customer": {"email": " Ada@Example.com "},
			"authorization": {"receiver_bank_account_number": "9012345678"},
			"metadata": {"userId": "7f3f3f07-4a86-4a7d-9f6f-0d6e9d9d7a11"}
		}
	}`)

	var envelope WebhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	event := envelope.ToPaymentEvent()
	if event.Type != "charge.success" {
		t.Fatalf("unexpected type %q", event.Type)
	}
	if event.Reference != "ref_123" {
		t.Fatalf("reference must be trimmed, got %q", event.Reference)
	}
	if event.AmountKobo != 500000 {
		t.Fatalf("unexpected amount %d", event.AmountKobo)
	}
	if event.CustomerEmail != "Ada@Example.com" {
		t.Fatalf("unexpected customer email %q", event.CustomerEmail)
	}
	if event.ReceiverAccountNumber != "9012345678" {
		t.Fatalf("unexpected receiver account number %q", event.ReceiverAccountNumber)
	}
	if event.EmbeddedUserID != "7f3f3f07-4a86-4a7d-9f6f-0d6e9d9d7a11" {
		t.Fatalf("unexpected embedded user id %q", event.EmbeddedUserID)
	}
}

func TestToPaymentEvent_EventTypeFallback(t *testing.T) {
	envelope := WebhookEnvelope{EventType: "charge.success"}
	if got := envelope.ToPaymentEvent().Type; got != "charge.success" {
		t.Fatalf("expected eventType fallback, got %q", got)
	}
}

func TestToPaymentEvent_MissingOptionalSections(t *testing.T) {
	payload := []byte(`{"event": "charge.success", "data": {"reference": "ref_9", "amount": 100, "status": "success"}}`)

	var envelope WebhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	event := envelope.ToPaymentEvent()
	if event.CustomerEmail != "" || event.ReceiverAccountNumber != "" || event.EmbeddedUserID != "" {
		t.Fatalf("optional sections must default to empty, got %+v", event)
	}
}
