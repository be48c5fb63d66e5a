package memory

import (
	"context"
	"sync"

	"github.com/tradingbrain/licensing/internal/domain/customer"
	"github.com/tradingbrain/licensing/internal/domain/license"
	ierr "github.com/tradingbrain/licensing/internal/errors"
	"github.com/tradingbrain/licensing/internal/types"
)

// Store keeps customers and licenses in process memory. It enforces the same
// uniqueness rules as the persistent drivers: one customer per email and one
// license per payment id.
type Store struct {
	mu        sync.RWMutex
	customers map[string]*customer.Customer
	licenses  map[string]*license.License
}

func NewStore() *Store {
	return &Store{
		customers: make(map[string]*customer.Customer),
		licenses:  make(map[string]*license.License),
	}
}

func (s *Store) EnsureByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	email = types.NormalizeEmail(email)
	if !types.IsValidEmail(email) {
		return nil, ierr.NewError("invalid customer email").
			WithHint("A valid email is required to register a customer").
			Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.customers[email]; ok {
		copied := *c
		return &copied, nil
	}
	c := customer.New(email)
	s.customers[email] = c
	copied := *c
	return &copied, nil
}

func (s *Store) Create(ctx context.Context, l *license.License) error {
	if l == nil {
		return ierr.NewError("license cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if err := l.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.licenses[l.PaymentID]; ok {
		return ierr.NewError("license already exists for payment").
			WithHintf("A license was already issued for payment %s", l.PaymentID).
			Mark(ierr.ErrAlreadyExists)
	}
	for _, existing := range s.licenses {
		if existing.LicenseKey == l.LicenseKey {
			return ierr.NewError("license key collision").
				WithHint("License key is already in use").
				Mark(ierr.ErrDatabase)
		}
	}

	copied := *l
	s.licenses[l.PaymentID] = &copied
	return nil
}

func (s *Store) GetByPaymentID(ctx context.Context, paymentID string) (*license.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.licenses[paymentID]
	if !ok {
		return nil, ierr.NewError("license not found").
			WithHintf("No license issued for payment %s", paymentID).
			Mark(ierr.ErrNotFound)
	}
	copied := *l
	return &copied, nil
}

// Licenses returns a snapshot of every stored license
func (s *Store) Licenses() []*license.License {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*license.License, 0, len(s.licenses))
	for _, l := range s.licenses {
		copied := *l
		out = append(out, &copied)
	}
	return out
}

// CustomerCount returns the number of distinct customers
func (s *Store) CustomerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.customers)
}
