package email

import "github.com/tradingbrain/licensing/internal/types"

// SendLicenseEmailRequest represents a request to deliver a license key
// Example:
//
//	{
//		"to_address": "buyer@example.com",
//		"license_key": "TB-1A2B-3C4D-5E6F-7A8B",
//		"tier": "FULL",
//		"payment_id": "5077125051"
//	}
type SendLicenseEmailRequest struct {
	ToAddress  string            `json:"to_address" validate:"required,email"`
	LicenseKey string            `json:"license_key" validate:"required"`
	Tier       types.LicenseTier `json:"tier" validate:"required,oneof=BOT_ONLY FULL"`
	PaymentID  string            `json:"payment_id,omitempty"`
}

// SendLicenseEmailResponse represents the response from sending a license email
type SendLicenseEmailResponse struct {
	MessageID string
	Success   bool
	Error     string
}

// Message is a fully rendered email ready for a transport
type Message struct {
	From    string
	To      string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
}
