package repository

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tradingbrain/licensing/internal/config"
	"github.com/tradingbrain/licensing/internal/domain/customer"
	"github.com/tradingbrain/licensing/internal/domain/license"
	ierr "github.com/tradingbrain/licensing/internal/errors"
	"github.com/tradingbrain/licensing/internal/logger"
)

// retrier runs store operations with exponential backoff. Outcomes that a
// retry cannot change are returned immediately.
type retrier struct {
	cfg    config.RetryConfig
	logger *logger.Logger
}

func isPermanent(err error) bool {
	return ierr.IsAlreadyExists(err) ||
		ierr.IsNotFound(err) ||
		ierr.IsValidation(err) ||
		ierr.IsNotConfigured(err)
}

func (r *retrier) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if r.cfg.InitialInterval > 0 {
		b.InitialInterval = r.cfg.InitialInterval
	}
	if r.cfg.MaxInterval > 0 {
		b.MaxInterval = r.cfg.MaxInterval
	}
	// the caller's context deadline bounds the total time
	b.MaxElapsedTime = 0

	attempts := r.cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

func (r *retrier) do(ctx context.Context, op string, fn func(attempt int) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := fn(attempt)
		if err != nil && isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Warnw("store operation failed, retrying",
			"operation", op,
			"attempt", attempt,
			"wait", wait.String(),
			"error", err,
		)
	}
	return backoff.RetryNotify(operation, r.backOff(ctx), notify)
}

// RetryingCustomerRepository retries transient customer store failures
type RetryingCustomerRepository struct {
	next  customer.Repository
	retry *retrier
}

func NewRetryingCustomerRepository(next customer.Repository, cfg config.RetryConfig, logger *logger.Logger) *RetryingCustomerRepository {
	return &RetryingCustomerRepository{next: next, retry: &retrier{cfg: cfg, logger: logger}}
}

func (r *RetryingCustomerRepository) EnsureByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	var out *customer.Customer
	err := r.retry.do(ctx, "customer.ensure", func(int) error {
		c, err := r.next.EnsureByEmail(ctx, email)
		out = c
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RetryingLicenseRepository retries transient license store failures.
// A create that timed out may still have been committed, so every retry first
// checks whether this exact license is already stored.
type RetryingLicenseRepository struct {
	next  license.Repository
	retry *retrier
}

func NewRetryingLicenseRepository(next license.Repository, cfg config.RetryConfig, logger *logger.Logger) *RetryingLicenseRepository {
	return &RetryingLicenseRepository{next: next, retry: &retrier{cfg: cfg, logger: logger}}
}

func (r *RetryingLicenseRepository) Create(ctx context.Context, l *license.License) error {
	return r.retry.do(ctx, "license.create", func(attempt int) error {
		if attempt > 1 {
			existing, err := r.next.GetByPaymentID(ctx, l.PaymentID)
			if err == nil {
				if existing.LicenseKey == l.LicenseKey {
					return nil
				}
				return ierr.NewError("license already exists for payment").
					WithHintf("A license was already issued for payment %s", l.PaymentID).
					Mark(ierr.ErrAlreadyExists)
			}
		}
		return r.next.Create(ctx, l)
	})
}

func (r *RetryingLicenseRepository) GetByPaymentID(ctx context.Context, paymentID string) (*license.License, error) {
	var out *license.License
	err := r.retry.do(ctx, "license.get_by_payment_id", func(int) error {
		l, err := r.next.GetByPaymentID(ctx, paymentID)
		out = l
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
