package types

import (
	"github.com/samber/lo"
)

// PaymentStatus is the payment state reported by the processor in an IPN
type PaymentStatus string

const (
	PaymentStatusWaiting       PaymentStatus = "waiting"
	PaymentStatusConfirming    PaymentStatus = "confirming"
	PaymentStatusConfirmed     PaymentStatus = "confirmed"
	PaymentStatusSending       PaymentStatus = "sending"
	PaymentStatusPartiallyPaid PaymentStatus = "partially_paid"
	PaymentStatusFinished      PaymentStatus = "finished"
	PaymentStatusFailed        PaymentStatus = "failed"
	PaymentStatusRefunded      PaymentStatus = "refunded"
	PaymentStatusExpired       PaymentStatus = "expired"
	PaymentStatusPending       PaymentStatus = "pending"
)

// issuableStatuses are the only statuses that mint a license.
var issuableStatuses = []PaymentStatus{
	PaymentStatusConfirmed,
	PaymentStatusFinished,
}

func (s PaymentStatus) String() string {
	return string(s)
}

// IsIssuable reports whether a notification with this status should issue a license.
// The comparison is exact: the processor sends lowercase statuses.
func (s PaymentStatus) IsIssuable() bool {
	return lo.Contains(issuableStatuses, s)
}
