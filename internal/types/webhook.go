package types

// NotificationState tracks a single notification through the processing pipeline
type NotificationState string

const (
	NotificationStateReceived     NotificationState = "received"
	NotificationStateVerified     NotificationState = "verified"
	NotificationStateRejected     NotificationState = "rejected"
	NotificationStateIgnored      NotificationState = "ignored"
	NotificationStateIssuing      NotificationState = "issuing"
	NotificationStateIssued       NotificationState = "issued"
	NotificationStateAcknowledged NotificationState = "acknowledged"
)

// IgnoreReason explains why a verified notification did not issue a license
type IgnoreReason string

const (
	IgnoreReasonStatusNotIssuable IgnoreReason = "status_not_issuable"
	IgnoreReasonNoCustomerEmail   IgnoreReason = "no_customer_email"
	IgnoreReasonMissingPaymentID  IgnoreReason = "missing_payment_id"
	IgnoreReasonDuplicateDelivery IgnoreReason = "duplicate_delivery"
)

// WebhookEventType is the event name published to downstream subscribers
type WebhookEventType string

const (
	WebhookEventLicenseIssued WebhookEventType = "license.issued"
)

const (
	// HeaderNowPaymentsSignature is the default header carrying the IPN HMAC digest
	HeaderNowPaymentsSignature = "x-nowpayments-sig"
)
