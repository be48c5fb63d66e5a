package license

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ierr "github.com/tradingbrain/licensing/internal/errors"
	"github.com/tradingbrain/licensing/internal/types"
)

func TestNew(t *testing.T) {
	extra := types.Metadata{
		MetadataOrderID:   "TB-FULL-1",
		MetadataPaymentID: "spoofed",
	}
	l := New("TB-1A2B-3C4D-5E6F-7A8B", types.LicenseTierFull, "5077125051", "buyer@example.com", extra)

	assert.Contains(t, l.ID, types.UUID_PREFIX_LICENSE+"_")
	assert.True(t, l.IsActive)
	assert.Equal(t, types.LicenseTierFull, l.Tier)
	assert.Equal(t, "5077125051", l.Metadata[MetadataPaymentID])
	assert.Equal(t, "buyer@example.com", l.Metadata[MetadataCustomerEmail])
	assert.Equal(t, "TB-FULL-1", l.Metadata[MetadataOrderID])
	assert.False(t, l.CreatedAt.IsZero())
	require.NoError(t, l.Validate())

	// caller map is not aliased
	assert.Equal(t, "spoofed", extra[MetadataPaymentID])
}

func TestLicense_Validate(t *testing.T) {
	valid := func() *License {
		return New("TB-1A2B-3C4D-5E6F-7A8B", types.LicenseTierBotOnly, "1", "a@b.co", nil)
	}

	tests := []struct {
		name   string
		mutate func(l *License)
	}{
		{"bad key", func(l *License) { l.LicenseKey = "TB-XYZ" }},
		{"bad tier", func(l *License) { l.Tier = "PLATINUM" }},
		{"missing payment id", func(l *License) { l.PaymentID = "" }},
		{"bad email", func(l *License) { l.CustomerEmail = "nope" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := valid()
			tt.mutate(l)
			err := l.Validate()
			require.Error(t, err)
			assert.True(t, ierr.IsValidation(err))
		})
	}
}
