package dto

import (
	"bytes"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"github.com/tradingbrain/licensing/internal/domain/license"
	ierr "github.com/tradingbrain/licensing/internal/errors"
	"github.com/tradingbrain/licensing/internal/types"
	"github.com/tradingbrain/licensing/internal/validator"
)

// orderDescriptionSeparator splits the order description; the email is the last segment
const orderDescriptionSeparator = "|"

// FlexibleID holds an identifier the processor may send as a JSON string or number.
// Numbers keep their literal text, ex 5077125051 becomes "5077125051".
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := jsoniter.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexibleID(strings.TrimSpace(s))
		return nil
	}
	*f = FlexibleID(data)
	return nil
}

func (f FlexibleID) String() string {
	return string(f)
}

// Notification is the typed view of an IPN body. Unknown fields are ignored
// here but still take part in signature verification, which runs on the raw map.
type Notification struct {
	PaymentID        FlexibleID          `json:"payment_id"`
	PaymentStatus    types.PaymentStatus `json:"payment_status"`
	OrderID          string              `json:"order_id"`
	OrderDescription string              `json:"order_description"`
	CustomerEmail    string              `json:"customer_email"`
	PriceAmount      *decimal.Decimal    `json:"price_amount"`
	PriceCurrency    string              `json:"price_currency"`
	PayAmount        *decimal.Decimal    `json:"pay_amount"`
	PayCurrency      string              `json:"pay_currency"`
	ActuallyPaid     *decimal.Decimal    `json:"actually_paid"`
	PurchaseID       FlexibleID          `json:"purchase_id"`
}

// ParseNotification decodes a verified IPN body into a Notification
func ParseNotification(body []byte) (*Notification, error) {
	var n Notification
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(body, &n); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Notification fields have unexpected types").
			Mark(ierr.ErrValidation)
	}
	return &n, nil
}

// Tier returns the license tier ordered by this notification
func (n *Notification) Tier() types.LicenseTier {
	return types.TierFromOrderID(n.OrderID)
}

// ResolveCustomerEmail returns the address a license should be sent to.
// customer_email wins when it is a valid address; otherwise the last
// "|"-delimited segment of order_description is used if it is one.
// ok is false when no usable address exists.
func (n *Notification) ResolveCustomerEmail() (email string, ok bool) {
	if candidate := strings.TrimSpace(n.CustomerEmail); validator.IsEmail(candidate) {
		return candidate, true
	}

	if n.OrderDescription == "" {
		return "", false
	}
	segments := strings.Split(n.OrderDescription, orderDescriptionSeparator)
	candidate := strings.TrimSpace(segments[len(segments)-1])
	if validator.IsEmail(candidate) {
		return candidate, true
	}
	return "", false
}

// LicenseMetadata returns the optional payment attributes recorded on an issued license
func (n *Notification) LicenseMetadata() types.Metadata {
	m := make(types.Metadata)
	m.SetIfNotEmpty(license.MetadataOrderID, n.OrderID)
	m.SetIfNotEmpty(license.MetadataPriceCurrency, n.PriceCurrency)
	m.SetIfNotEmpty(license.MetadataPayCurrency, n.PayCurrency)
	if n.PriceAmount != nil {
		m[license.MetadataPriceAmount] = n.PriceAmount.String()
	}
	if n.ActuallyPaid != nil {
		m[license.MetadataActuallyPaid] = n.ActuallyPaid.String()
	}
	return m
}
