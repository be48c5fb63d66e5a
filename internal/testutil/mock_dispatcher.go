package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tradingbrain/licensing/internal/email"
	ierr "github.com/tradingbrain/licensing/internal/errors"
	"github.com/tradingbrain/licensing/internal/interfaces"
)

// MockDispatcher records license emails instead of sending them
type MockDispatcher struct {
	mu       sync.Mutex
	sent     []email.SendLicenseEmailRequest
	err      error
	disabled bool
	delay    time.Duration
}

var _ interfaces.LicenseDispatcher = (*MockDispatcher)(nil)

func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{}
}

// SetError makes subsequent sends fail with err
func (d *MockDispatcher) SetError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

// SetDisabled simulates a dispatcher with no transport credentials
func (d *MockDispatcher) SetDisabled(disabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disabled = disabled
}

// SetDelay makes every send block for delay or until ctx is done
func (d *MockDispatcher) SetDelay(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delay = delay
}

func (d *MockDispatcher) SendLicenseEmail(ctx context.Context, req email.SendLicenseEmailRequest) (*email.SendLicenseEmailResponse, error) {
	d.mu.Lock()
	delay, err, disabled := d.delay, d.err, d.disabled
	d.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ierr.WithError(ctx.Err()).
				WithHint("Timed out sending license email").
				Mark(ierr.ErrDelivery)
		}
	}
	if disabled {
		return &email.SendLicenseEmailResponse{Success: false, Error: "email client is disabled"}, nil
	}
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, req)
	return &email.SendLicenseEmailResponse{
		MessageID: fmt.Sprintf("msg-%d", len(d.sent)),
		Success:   true,
	}, nil
}

// Sent returns a copy of the delivered requests
func (d *MockDispatcher) Sent() []email.SendLicenseEmailRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]email.SendLicenseEmailRequest, len(d.sent))
	copy(out, d.sent)
	return out
}

// Clear resets recorded sends and injected behavior
func (d *MockDispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = nil
	d.err = nil
	d.disabled = false
	d.delay = 0
}
