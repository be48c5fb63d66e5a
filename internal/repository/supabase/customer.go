package supabase

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/tradingbrain/licensing/internal/cache"
	domainCustomer "github.com/tradingbrain/licensing/internal/domain/customer"
	ierr "github.com/tradingbrain/licensing/internal/errors"
	"github.com/tradingbrain/licensing/internal/types"
)

type userRow struct {
	ID        rowID     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt timestamp `json:"created_at"`
}

func (r userRow) toCustomer() *domainCustomer.Customer {
	return &domainCustomer.Customer{
		ID:        string(r.ID),
		Email:     r.Email,
		CreatedAt: r.CreatedAt.Time,
	}
}

type customerRepository struct {
	client *Client
	cache  cache.Cache
	ttl    time.Duration
}

// NewCustomerRepository returns a repository over the users table. Known
// customers are cached so repeat buyers skip the insert round trip.
func NewCustomerRepository(client *Client, c cache.Cache, ttl time.Duration) domainCustomer.Repository {
	return &customerRepository{client: client, cache: c, ttl: ttl}
}

func (r *customerRepository) EnsureByEmail(ctx context.Context, email string) (*domainCustomer.Customer, error) {
	if !r.client.IsConfigured() {
		return nil, r.client.errNotConfigured()
	}

	email = types.NormalizeEmail(email)
	if !types.IsValidEmail(email) {
		return nil, ierr.NewError("invalid customer email").
			WithHint("A valid email is required to register a customer").
			Mark(ierr.ErrValidation)
	}

	key := cache.GenerateKey(cache.PrefixCustomer, email)
	if cached, ok := r.cache.Get(ctx, key); ok {
		if c, ok := cached.(*domainCustomer.Customer); ok {
			copied := *c
			return &copied, nil
		}
	}

	var rows []userRow
	err := r.client.insert(ctx, usersTable, map[string]string{"email": email}, &rows)
	switch {
	case err == nil && len(rows) > 0:
		c := rows[0].toCustomer()
		r.cache.Set(ctx, key, c, r.ttl)
		return c, nil
	case err == nil:
		// representation suppressed by a table policy; the insert still happened
		return &domainCustomer.Customer{Email: email}, nil
	case statusOf(err) == http.StatusConflict:
		c := r.lookup(ctx, email)
		r.cache.Set(ctx, key, c, r.ttl)
		return c, nil
	default:
		return nil, ierr.WithError(err).
			WithHint("Failed to register customer in supabase").
			Mark(ierr.ErrHTTPClient)
	}
}

// lookup resolves an existing user row. A failed lookup still yields a
// customer reference since the row is known to exist.
func (r *customerRepository) lookup(ctx context.Context, email string) *domainCustomer.Customer {
	query := url.Values{}
	query.Set("select", "id,email,created_at")
	query.Set("email", "eq."+email)
	query.Set("limit", "1")

	var rows []userRow
	if err := r.client.selectRows(ctx, usersTable, query, &rows); err != nil || len(rows) == 0 {
		r.client.logger.Debugw("existing supabase user not resolved",
			"email", types.MaskEmail(email),
			"error", err,
		)
		return &domainCustomer.Customer{Email: email}
	}
	return rows[0].toCustomer()
}
