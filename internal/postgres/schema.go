package postgres

import (
	"context"
	"io"
	"strings"

	ierr "github.com/tradingbrain/licensing/internal/errors"
)

// schema is applied in order. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id         VARCHAR(50)  PRIMARY KEY,
		email      VARCHAR(320) NOT NULL,
		created_at TIMESTAMPTZ  NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_customers_email ON customers (email)`,
	`CREATE TABLE IF NOT EXISTS licenses (
		id             VARCHAR(50)  PRIMARY KEY,
		license_key    VARCHAR(32)  NOT NULL,
		tier           VARCHAR(20)  NOT NULL,
		is_active      BOOLEAN      NOT NULL DEFAULT TRUE,
		payment_id     VARCHAR(100) NOT NULL,
		customer_email VARCHAR(320) NOT NULL,
		metadata       JSONB        NOT NULL DEFAULT '{}'::jsonb,
		created_at     TIMESTAMPTZ  NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_licenses_payment_id ON licenses (payment_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_licenses_license_key ON licenses (license_key)`,
	`CREATE INDEX IF NOT EXISTS idx_licenses_customer_email ON licenses (customer_email)`,
}

// Migrate creates the license tables in a single transaction
func (db *DB) Migrate(ctx context.Context) error {
	return db.WithTx(ctx, func(ctx context.Context) error {
		q := db.GetQuerier(ctx)
		for _, stmt := range schema {
			if _, err := q.ExecContext(ctx, stmt); err != nil {
				return ierr.WithError(err).
					WithHint("Failed to apply schema").
					Mark(ierr.ErrDatabase)
			}
		}
		return nil
	})
}

// WriteSchema writes the statements Migrate would run
func WriteSchema(w io.Writer) error {
	for _, stmt := range schema {
		if _, err := io.WriteString(w, strings.TrimSpace(stmt)+";\n\n"); err != nil {
			return err
		}
	}
	return nil
}
