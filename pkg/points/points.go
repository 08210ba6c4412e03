// Package points implements the Point Ledger (C8): an append-only balance
// ledger linked 1:1 to settling payments, with time-bounded referral
// attribution support and periodic expiry.
package points

import (
	"time"

	"github.com/google/uuid"
)

// Ledger entry types.
const (
	TypeEarnedReferral = "earned_referral"
	TypeEarnedBonus    = "earned_bonus"
	TypeSpent          = "spent"
	TypeRefunded       = "refunded"
	TypeExpired        = "expired"
)

// Transaction is a single append-only ledger row. Its amount and type are
// never updated; reversal and expiry write new inverse rows, and expiry also
// stamps expired_at on the source row.
type Transaction struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Amount         int64 // positive for credits, negative for debits
	Type           string
	PaymentID      *uuid.UUID
	ReferrerUserID *uuid.UUID
	ExpiresAt      *time.Time
	ExpiredAt      *time.Time // set once an inverse "expired" row has been written for this row
	CreatedAt      time.Time
}

// Summary is the per-user aggregate exposed to the UI.
type Summary struct {
	Balance     int64
	TotalEarned int64
	TotalSpent  int64
	TodayEarned int64
}
