package types

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// LicenseTier is the product entitlement level encoded in an issued license
type LicenseTier string

const (
	LicenseTierBotOnly LicenseTier = "BOT_ONLY"
	LicenseTierFull    LicenseTier = "FULL"
)

// fullTierMarker is the order-system convention for full-system purchases.
const fullTierMarker = "FULL"

// TierFromOrderID derives the license tier from the processor order id.
// An order id containing the FULL marker selects LicenseTierFull, anything
// else (including an empty id) selects LicenseTierBotOnly.
func TierFromOrderID(orderID string) LicenseTier {
	if strings.Contains(orderID, fullTierMarker) {
		return LicenseTierFull
	}
	return LicenseTierBotOnly
}

func (t LicenseTier) String() string {
	return string(t)
}

// DisplayName returns the customer facing product name for the tier
func (t LicenseTier) DisplayName() string {
	if t == LicenseTierBotOnly {
		return "Bot-Only License"
	}
	return "Full System License"
}

func (t LicenseTier) Validate() error {
	allowed := []LicenseTier{
		LicenseTierBotOnly,
		LicenseTierFull,
	}
	if !lo.Contains(allowed, t) {
		return fmt.Errorf("invalid license tier: %s", t)
	}
	return nil
}
