package customer

import "context"

// Repository defines the interface for customer data access
type Repository interface {
	// EnsureByEmail returns the customer with the given email, creating it when absent.
	// A concurrent creation of the same email is not an error.
	EnsureByEmail(ctx context.Context, email string) (*Customer, error)
}
