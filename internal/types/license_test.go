package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierFromOrderID(t *testing.T) {
	tests := []struct {
		orderID string
		want    LicenseTier
	}{
		{"TB-FULL-1700000000", LicenseTierFull},
		{"FULL", LicenseTierFull},
		{"order-FULLSYSTEM", LicenseTierFull},
		{"TB-BOT-1700000000", LicenseTierBotOnly},
		{"tb-full-lowercase", LicenseTierBotOnly},
		{"", LicenseTierBotOnly},
	}
	for _, tt := range tests {
		t.Run(tt.orderID, func(t *testing.T) {
			assert.Equal(t, tt.want, TierFromOrderID(tt.orderID))
		})
	}
}

func TestLicenseTier_DisplayName(t *testing.T) {
	assert.Equal(t, "Full System License", LicenseTierFull.DisplayName())
	assert.Equal(t, "Bot-Only License", LicenseTierBotOnly.DisplayName())
}

func TestLicenseTier_Validate(t *testing.T) {
	assert.NoError(t, LicenseTierFull.Validate())
	assert.NoError(t, LicenseTierBotOnly.Validate())
	assert.Error(t, LicenseTier("ENTERPRISE").Validate())
}
