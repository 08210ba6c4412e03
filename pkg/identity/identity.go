// Package identity implements the Identity Verification handshake (C10):
// prepare, out-of-band broker flow, verify, and duplicate prevention on CI
// (DI is stored but not checked for duplicates).
package identity

import (
	"time"

	"github.com/google/uuid"
)

// Verification status values.
const (
	StatusReady    = "ready"
	StatusVerified = "verified"
	StatusFailed   = "failed"
)

// Gender values the broker reports.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Verification is the C10 aggregate. CI (connecting information) is the
// broker's stable per-person identifier; uniqueness on CI across all users
// is the duplicate-prevention invariant.
type Verification struct {
	ID           uuid.UUID
	UserID       *uuid.UUID // nil until attached on verified
	Status       string
	CI           *string
	DI           *string
	Name         *string
	BirthDate    *string
	Gender       *string
	Operator     *string
	BrokerToken  string
	MinAge       int
	CarrierOnly  string // empty, or a carrier restriction passed to the broker
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PrepareInput is the body of prepare(verificationId, customer, restrictions).
type PrepareInput struct {
	Customer    CustomerInfo
	MinAge      int
	CarrierOnly string
	Title       string
}

// CustomerInfo is the subject the broker handshake is being prepared for.
type CustomerInfo struct {
	Name  string
	Phone string
}

// BrokerResult is the broker's authoritative answer to a verify() poll.
type BrokerResult struct {
	Verified  bool
	CI        string
	DI        string
	Name      string
	BirthDate string
	Gender    string
	Operator  string
}
