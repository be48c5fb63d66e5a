package interfaces

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/tradingbrain/licensing/internal/api/dto"
	"github.com/tradingbrain/licensing/internal/email"
	"github.com/tradingbrain/licensing/internal/types"
)

// WebhookProcessor authenticates a payment notification and issues at most
// one license per payment
type WebhookProcessor interface {
	// Process returns an error only when the notification is rejected: a body
	// that is not a JSON object, an invalid signature, or no usable key source.
	// Failures after verification are reported in the result.
	Process(ctx context.Context, body []byte, signature string) (*dto.ProcessResult, error)
}

// LicenseDispatcher delivers issued license keys
type LicenseDispatcher interface {
	SendLicenseEmail(ctx context.Context, req email.SendLicenseEmailRequest) (*email.SendLicenseEmailResponse, error)
}

// EventPublisher fans license events out to webhook subscribers
type EventPublisher interface {
	IsEnabled() bool
	SendMessage(ctx context.Context, eventType types.WebhookEventType, payload interface{}) error
}

// Monitor forwards failures and traces to the monitoring backend
type Monitor interface {
	CaptureException(ctx context.Context, err error, tags map[string]string)
	AddBreadcrumb(category, message string, data map[string]interface{})
	StartSpan(ctx context.Context, operation string, params map[string]interface{}) (*sentry.Span, context.Context)
}
