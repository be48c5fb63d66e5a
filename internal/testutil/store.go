package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/tradingbrain/licensing/internal/domain/customer"
	"github.com/tradingbrain/licensing/internal/domain/license"
	ierr "github.com/tradingbrain/licensing/internal/errors"
	"github.com/tradingbrain/licensing/internal/repository/memory"
)

// FaultyStore wraps the in-memory store with injectable failures and latency
type FaultyStore struct {
	*memory.Store

	mu          sync.Mutex
	createErr   error
	lookupErr   error
	customerErr error
	delay       time.Duration
	customerLag time.Duration
	lostCreate  bool
	creates     int
}

var (
	_ customer.Repository = (*FaultyStore)(nil)
	_ license.Repository  = (*FaultyStore)(nil)
)

func NewFaultyStore() *FaultyStore {
	return &FaultyStore{Store: memory.NewStore()}
}

// SetCreateError makes license inserts fail with err
func (s *FaultyStore) SetCreateError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createErr = err
}

// SetLookupError makes payment id lookups fail with err
func (s *FaultyStore) SetLookupError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookupErr = err
}

// SetCustomerError makes customer upserts fail with err
func (s *FaultyStore) SetCustomerError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customerErr = err
}

// SetDelay makes every call block for delay or until ctx is done
func (s *FaultyStore) SetDelay(delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = delay
}

// SetCustomerDelay makes customer upserts block for delay or until ctx is done
func (s *FaultyStore) SetCustomerDelay(delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customerLag = delay
}

// SetLostCreateResponse makes license inserts commit and then report a
// conflict, as a resent insert does after its first response was dropped
func (s *FaultyStore) SetLostCreateResponse(lost bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lostCreate = lost
}

// CreateCalls returns how many license inserts were attempted
func (s *FaultyStore) CreateCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates
}

func (s *FaultyStore) wait(ctx context.Context) error {
	s.mu.Lock()
	delay := s.delay
	s.mu.Unlock()
	return sleep(ctx, delay)
}

func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *FaultyStore) EnsureByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	err := s.customerErr
	lag := s.customerLag
	s.mu.Unlock()
	if err := sleep(ctx, lag); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return s.Store.EnsureByEmail(ctx, email)
}

func (s *FaultyStore) Create(ctx context.Context, l *license.License) error {
	s.mu.Lock()
	s.creates++
	err := s.createErr
	lost := s.lostCreate
	s.mu.Unlock()
	if err := s.wait(ctx); err != nil {
		return err
	}
	if err != nil {
		return err
	}
	if err := s.Store.Create(ctx, l); err != nil || !lost {
		return err
	}
	return ierr.NewError("duplicate key value violates unique constraint").
		WithHintf("A license was already issued for payment %s", l.PaymentID).
		Mark(ierr.ErrAlreadyExists)
}

func (s *FaultyStore) GetByPaymentID(ctx context.Context, paymentID string) (*license.License, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	err := s.lookupErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Store.GetByPaymentID(ctx, paymentID)
}

// Clear drops stored rows and injected failures
func (s *FaultyStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Store = memory.NewStore()
	s.createErr = nil
	s.lookupErr = nil
	s.customerErr = nil
	s.delay = 0
	s.customerLag = 0
	s.lostCreate = false
	s.creates = 0
}
