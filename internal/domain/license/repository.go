package license

import "context"

// Repository defines the interface for license persistence
type Repository interface {
	// Create persists a new license. It returns an ErrAlreadyExists marked error
	// when a license for the same payment id is already stored.
	Create(ctx context.Context, l *License) error

	// GetByPaymentID returns the license issued for a payment, or an
	// ErrNotFound marked error when none exists.
	GetByPaymentID(ctx context.Context, paymentID string) (*License, error)
}
