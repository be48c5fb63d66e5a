package postgres

import (
	"context"

	domainCustomer "github.com/tradingbrain/licensing/internal/domain/customer"
	ierr "github.com/tradingbrain/licensing/internal/errors"
	"github.com/tradingbrain/licensing/internal/logger"
	"github.com/tradingbrain/licensing/internal/postgres"
	"github.com/tradingbrain/licensing/internal/types"
)

type customerRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewCustomerRepository(db *postgres.DB, logger *logger.Logger) domainCustomer.Repository {
	return &customerRepository{db: db, logger: logger}
}

// EnsureByEmail upserts on the unique email so concurrent deliveries converge on one row
func (r *customerRepository) EnsureByEmail(ctx context.Context, email string) (*domainCustomer.Customer, error) {
	email = types.NormalizeEmail(email)
	if !types.IsValidEmail(email) {
		return nil, ierr.NewError("invalid customer email").
			WithHint("A valid email is required to register a customer").
			Mark(ierr.ErrValidation)
	}

	c := domainCustomer.New(email)
	r.logger.Debugw("ensuring customer", "email", types.MaskEmail(c.Email))

	query := `INSERT INTO customers (id, email, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, email, created_at`

	var out domainCustomer.Customer
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &out, query, c.ID, c.Email, c.CreatedAt); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to register customer").
			Mark(ierr.ErrDatabase)
	}
	return &out, nil
}
