package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	domainLicense "github.com/tradingbrain/licensing/internal/domain/license"
	ierr "github.com/tradingbrain/licensing/internal/errors"
	"github.com/tradingbrain/licensing/internal/types"
)

// licenseInsert is the row posted to the licenses table. The hosted schema keeps
// the payment id and customer email inside the metadata column.
type licenseInsert struct {
	LicenseKey string            `json:"license_key"`
	Tier       types.LicenseTier `json:"tier"`
	IsActive   bool              `json:"is_active"`
	Metadata   types.Metadata    `json:"metadata"`
}

type licenseRow struct {
	ID         rowID                  `json:"id"`
	LicenseKey string                 `json:"license_key"`
	Tier       types.LicenseTier      `json:"tier"`
	IsActive   bool                   `json:"is_active"`
	Metadata   map[string]interface{} `json:"metadata"`
	CreatedAt  timestamp              `json:"created_at"`
}

func (r licenseRow) toLicense() *domainLicense.License {
	metadata := make(types.Metadata, len(r.Metadata))
	for k, v := range r.Metadata {
		if v == nil {
			continue
		}
		metadata[k] = fmt.Sprint(v)
	}
	return &domainLicense.License{
		ID:            string(r.ID),
		LicenseKey:    r.LicenseKey,
		Tier:          r.Tier,
		IsActive:      r.IsActive,
		PaymentID:     metadata[domainLicense.MetadataPaymentID],
		CustomerEmail: metadata[domainLicense.MetadataCustomerEmail],
		Metadata:      metadata,
		CreatedAt:     r.CreatedAt.Time,
	}
}

type licenseRepository struct {
	client *Client
}

func NewLicenseRepository(client *Client) domainLicense.Repository {
	return &licenseRepository{client: client}
}

func (r *licenseRepository) Create(ctx context.Context, l *domainLicense.License) error {
	if !r.client.IsConfigured() {
		return r.client.errNotConfigured()
	}
	if err := l.Validate(); err != nil {
		return err
	}

	var rows []licenseRow
	err := r.client.insert(ctx, licensesTable, licenseInsert{
		LicenseKey: l.LicenseKey,
		Tier:       l.Tier,
		IsActive:   l.IsActive,
		Metadata:   l.Metadata,
	}, &rows)
	if statusOf(err) == http.StatusConflict {
		return ierr.WithError(err).
			WithHintf("A license was already issued for payment %s", l.PaymentID).
			Mark(ierr.ErrAlreadyExists)
	}
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to store license in supabase").
			Mark(ierr.ErrHTTPClient)
	}

	if len(rows) > 0 {
		stored := rows[0]
		if stored.ID != "" {
			l.ID = string(stored.ID)
		}
		if !stored.CreatedAt.IsZero() {
			l.CreatedAt = stored.CreatedAt.Time
		}
	}
	return nil
}

func (r *licenseRepository) GetByPaymentID(ctx context.Context, paymentID string) (*domainLicense.License, error) {
	if !r.client.IsConfigured() {
		return nil, r.client.errNotConfigured()
	}

	query := url.Values{}
	query.Set("select", "*")
	query.Set("metadata->>"+domainLicense.MetadataPaymentID, "eq."+paymentID)
	query.Set("limit", "1")

	var rows []licenseRow
	if err := r.client.selectRows(ctx, licensesTable, query, &rows); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to look up license in supabase").
			Mark(ierr.ErrHTTPClient)
	}
	if len(rows) == 0 {
		return nil, ierr.NewError("license not found").
			WithHintf("No license issued for payment %s", paymentID).
			Mark(ierr.ErrNotFound)
	}
	return rows[0].toLicense(), nil
}
