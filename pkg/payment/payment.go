// Package payment implements the Payment Orchestrator (C7): initiation,
// gateway webhook intake, idempotent state transitions, and refunds.
package payment

import (
	"time"

	"github.com/google/uuid"
)

// Payment status values.
const (
	StatusPending      = "pending"
	StatusDepositPaid  = "deposit_paid"
	StatusFullyPaid    = "fully_paid"
	StatusFailed       = "failed"
	StatusCancelled    = "cancelled"
	StatusRefunded     = "refunded"
	StatusDisputed     = "disputed"
)

// Gateway event names the webhook intake recognizes.
const (
	EventApproved = "approved"
	EventFailed   = "failed"
	EventCanceled = "cancelled"
	EventRefund   = "refund"
	EventDispute  = "dispute"
)

// Payment is the C7 aggregate. Weak reference to reservation: a payment may
// outlive its reservation for audit purposes.
type Payment struct {
	ID            uuid.UUID
	ReservationID uuid.UUID
	ShopID        uuid.UUID
	UserID        uuid.UUID
	Amount        int64
	PointsUsed    int64
	Method        string
	Status        string
	GatewayTxID   *string
	PaidAt        *time.Time
	RefundOfID    *uuid.UUID // set on refund payment records, pointing at the original
	DisputeDue    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ClientParameters is the opaque bag of fields the gateway's client SDK
// needs to render a checkout/payment sheet; shape left to the concrete
// gateway, never inspected by the orchestrator itself.
type ClientParameters map[string]any
