package postgres

import (
	"context"
	"database/sql"
	"errors"

	domainLicense "github.com/tradingbrain/licensing/internal/domain/license"
	ierr "github.com/tradingbrain/licensing/internal/errors"
	"github.com/tradingbrain/licensing/internal/logger"
	"github.com/tradingbrain/licensing/internal/postgres"
)

const licenseColumns = `id, license_key, tier, is_active, payment_id, customer_email, metadata, created_at`

type licenseRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewLicenseRepository(db *postgres.DB, logger *logger.Logger) domainLicense.Repository {
	return &licenseRepository{db: db, logger: logger}
}

func (r *licenseRepository) Create(ctx context.Context, l *domainLicense.License) error {
	if err := l.Validate(); err != nil {
		return err
	}

	r.logger.Debugw("creating license",
		"license_id", l.ID,
		"payment_id", l.PaymentID,
		"tier", l.Tier,
	)

	// a conflicting payment id inserts nothing and returns no row
	query := `INSERT INTO licenses (` + licenseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (payment_id) DO NOTHING
		RETURNING id`

	var id string
	err := r.db.GetQuerier(ctx).GetContext(ctx, &id, query,
		l.ID,
		l.LicenseKey,
		l.Tier,
		l.IsActive,
		l.PaymentID,
		l.CustomerEmail,
		l.Metadata,
		l.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ierr.NewError("license already exists for payment").
			WithHintf("A license was already issued for payment %s", l.PaymentID).
			WithReportableDetails(map[string]any{"payment_id": l.PaymentID}).
			Mark(ierr.ErrAlreadyExists)
	}
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to store license").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *licenseRepository) GetByPaymentID(ctx context.Context, paymentID string) (*domainLicense.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE payment_id = $1`

	var l domainLicense.License
	err := r.db.GetQuerier(ctx).GetContext(ctx, &l, query, paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ierr.NewError("license not found").
			WithHintf("No license issued for payment %s", paymentID).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to look up license").
			Mark(ierr.ErrDatabase)
	}
	return &l, nil
}
