package license

import (
	"time"

	ierr "github.com/tradingbrain/licensing/internal/errors"
	"github.com/tradingbrain/licensing/internal/types"
)

// Metadata keys stored alongside every license
const (
	MetadataPaymentID     = "payment_id"
	MetadataCustomerEmail = "customer_email"
	MetadataOrderID       = "order_id"
	MetadataPriceAmount   = "price_amount"
	MetadataPriceCurrency = "price_currency"
	MetadataPayCurrency   = "pay_currency"
	MetadataActuallyPaid  = "actually_paid"
)

// License is an issued product credential. It is created once per confirmed
// payment and never mutated by the issuance pipeline afterwards.
type License struct {
	// ID is the internal record identifier
	ID string `db:"id" json:"id"`

	// LicenseKey is the credential handed to the customer, ex TB-1A2B-3C4D-5E6F-7A8B
	LicenseKey string `db:"license_key" json:"license_key"`

	// Tier is the entitlement level granted by the key
	Tier types.LicenseTier `db:"tier" json:"tier"`

	// IsActive is true at creation; deactivation happens outside this service
	IsActive bool `db:"is_active" json:"is_active"`

	// PaymentID is the processor payment id and the idempotency key of the license
	PaymentID string `db:"payment_id" json:"payment_id"`

	// CustomerEmail is the address the key was issued to
	CustomerEmail string `db:"customer_email" json:"customer_email"`

	// Metadata holds at least payment_id and customer_email
	Metadata types.Metadata `db:"metadata" json:"metadata"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// New builds an active license for a payment. Extra metadata is merged
// under the mandatory payment_id and customer_email keys.
func New(key string, tier types.LicenseTier, paymentID, email string, extra types.Metadata) *License {
	metadata := make(types.Metadata, len(extra)+2)
	for k, v := range extra {
		metadata[k] = v
	}
	metadata[MetadataPaymentID] = paymentID
	metadata[MetadataCustomerEmail] = email

	return &License{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LICENSE),
		LicenseKey:    key,
		Tier:          tier,
		IsActive:      true,
		PaymentID:     paymentID,
		CustomerEmail: email,
		Metadata:      metadata,
		CreatedAt:     time.Now().UTC(),
	}
}

// Validate checks the invariants every persisted license must hold
func (l *License) Validate() error {
	if l.LicenseKey == "" || !IsValidKey(l.LicenseKey) {
		return ierr.NewError("invalid license key").
			WithHint("License key must match TB-XXXX-XXXX-XXXX-XXXX").
			Mark(ierr.ErrValidation)
	}
	if err := l.Tier.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Invalid license tier").
			Mark(ierr.ErrValidation)
	}
	if l.PaymentID == "" {
		return ierr.NewError("payment id is required").
			WithHint("License must reference a payment").
			Mark(ierr.ErrValidation)
	}
	if !types.IsValidEmail(l.CustomerEmail) {
		return ierr.NewError("invalid customer email").
			WithHint("License must reference a valid customer email").
			Mark(ierr.ErrValidation)
	}
	return nil
}
