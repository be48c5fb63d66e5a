package dto

import (
	"time"

	"github.com/tradingbrain/licensing/internal/idempotency"
	"github.com/tradingbrain/licensing/internal/types"
)

// ProcessResult records what happened to a single notification.
// Downstream failures after verification are reported here, not as errors.
type ProcessResult struct {
	// State is the pipeline position; acknowledged once a verified notification is done
	State types.NotificationState `json:"state"`
	// Outcome is ignored or issued for verified notifications
	Outcome   types.NotificationState `json:"outcome,omitempty"`
	Reason    types.IgnoreReason      `json:"reason,omitempty"`
	PaymentID string                  `json:"payment_id,omitempty"`
	Status    types.PaymentStatus     `json:"payment_status,omitempty"`

	// Set once a key has been minted
	LicenseKey    string            `json:"license_key,omitempty"`
	Tier          types.LicenseTier `json:"tier,omitempty"`
	CustomerEmail string            `json:"customer_email,omitempty"`

	Persisted    bool  `json:"persisted"`
	PersistError error `json:"-"`

	Emailed        bool   `json:"emailed"`
	EmailMessageID string `json:"email_message_id,omitempty"`
	DeliveryError  error  `json:"-"`

	EventPublished bool `json:"event_published"`
}

// Issued reports whether a new license key was minted for this notification
func (r *ProcessResult) Issued() bool {
	return r.LicenseKey != ""
}

// Ignore records that no license is issued for this notification
func (r *ProcessResult) Ignore(reason types.IgnoreReason) {
	r.State = types.NotificationStateIgnored
	r.Outcome = types.NotificationStateIgnored
	r.Reason = reason
}

// WebhookAckResponse is returned for every verified notification
type WebhookAckResponse struct {
	Success bool `json:"success"`
}

// WebhookErrorResponse carries the failure message for rejected notifications
type WebhookErrorResponse struct {
	Error string `json:"error"`
}

// WebhookHealthResponse is returned by GET on the webhook path
type WebhookHealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// LicenseIssuedEvent is published to webhook subscribers after a license is stored
type LicenseIssuedEvent struct {
	LicenseID     string            `json:"license_id"`
	PaymentID     string            `json:"payment_id"`
	OrderID       string            `json:"order_id,omitempty"`
	Tier          types.LicenseTier `json:"tier"`
	CustomerEmail string            `json:"customer_email"`
	IssuedAt      time.Time         `json:"issued_at"`
}

// IdempotencyKey is stable per payment so a resent event is delivered once
func (e LicenseIssuedEvent) IdempotencyKey() string {
	return idempotency.NewGenerator().GenerateKey(idempotency.ScopeLicenseIssued, map[string]interface{}{
		"payment_id": e.PaymentID,
	})
}
