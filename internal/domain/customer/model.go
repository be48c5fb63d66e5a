package customer

import (
	"time"

	"github.com/tradingbrain/licensing/internal/types"
)

// Customer is the purchaser a license is issued to, keyed by email
type Customer struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// New returns a customer record for the given address with a fresh id
func New(email string) *Customer {
	return &Customer{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CUSTOMER),
		Email:     types.NormalizeEmail(email),
		CreatedAt: time.Now().UTC(),
	}
}
