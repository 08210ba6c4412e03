// Package referral implements Referral Attribution (C9): code issuance,
// acyclic-chain enforcement, and commission computation on settled payments.
package referral

import (
	"time"

	"github.com/google/uuid"
)

// Referral relationship status.
const (
	StatusActive = "active"
)

// Referrer tiers, each carrying its own commission rate.
const (
	TierStandard   = "standard"
	TierInfluencer = "influencer"
)

// maxChainDepth bounds the backward walk used to detect cycles when a user
// sets referredByCode.
const maxChainDepth = 32

// Referral is the relationship between a referrer and the user they
// referred.
type Referral struct {
	ReferrerID  uuid.UUID
	ReferredID  uuid.UUID
	Status      string
	BonusAmount int64
	CreatedAt   time.Time
}

// Code is a user's stable referral identity: the code they hand out, and
// the code (if any) that referred them.
type Code struct {
	UserID                uuid.UUID
	ReferralCode          string
	ReferredByCode        *string
	Tier                  string // standard | influencer
	IsInfluencer          bool
	InfluencerQualifiedAt *time.Time
}

// InfluencerThreshold is the configured bar for automatic promotion:
// reaching both a successful-referral count and a lifetime commission
// total sets is_influencer idempotently.
type InfluencerThreshold struct {
	MinReferrals          int
	MinLifetimeCommission int64
}

// RateFor returns the commission rate for tier, as a fraction of
// eligibleAmount.
func RateFor(tier string, standardRate, influencerRate float64) float64 {
	if tier == TierInfluencer {
		return influencerRate
	}
	return standardRate
}

// ComputeBonus computes floor(eligibleAmount * rate). eligibleAmount
// excludes any portion paid with points, per spec.
func ComputeBonus(eligibleAmount int64, rate float64) int64 {
	if eligibleAmount <= 0 || rate <= 0 {
		return 0
	}
	return int64(float64(eligibleAmount) * rate)
}
