// Package reservation implements the Reservation Engine (C6): slot-conflict
// detection, advisory-locked creation, and the reservation status machine.
package reservation

import (
	"time"

	"github.com/google/uuid"
)

// Status values a Reservation can hold.
const (
	StatusRequested       = "requested"
	StatusConfirmed       = "confirmed"
	StatusInProgress      = "in_progress"
	StatusCompleted       = "completed"
	StatusCancelledByUser = "cancelled_by_user"
	StatusCancelledByShop = "cancelled_by_shop"
	StatusNoShow          = "no_show"
	StatusExpired         = "expired"
)

// allowedTransitions is the tabular status machine from C6: no transition
// is permitted unless it appears here.
var allowedTransitions = map[string][]string{
	StatusRequested:  {StatusConfirmed, StatusCancelledByUser, StatusCancelledByShop, StatusExpired},
	StatusConfirmed:  {StatusInProgress, StatusCancelledByUser, StatusCancelledByShop, StatusNoShow},
	StatusInProgress: {StatusCompleted},
}

// CanTransition reports whether from -> to is a permitted status change.
func CanTransition(from, to string) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether status has no further outgoing transitions.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusCancelledByUser, StatusCancelledByShop, StatusNoShow, StatusExpired:
		return true
	default:
		return false
	}
}

// Reservation is the booked-slot aggregate.
type Reservation struct {
	ID              uuid.UUID
	ShopID          uuid.UUID
	CustomerID      uuid.UUID
	ServiceIDs      []uuid.UUID
	Datetime        time.Time
	DurationMinutes int
	TotalAmount     int64
	DepositAmount   int64
	PointsUsed      int64
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EndTime returns the reservation's computed end time.
func (r Reservation) EndTime() time.Time {
	return r.Datetime.Add(time.Duration(r.DurationMinutes) * time.Minute)
}

// StatusLog is a single reservation_status_log row (supplemented entity).
type StatusLog struct {
	ID            uuid.UUID
	ReservationID uuid.UUID
	From          string
	To            string
	Actor         uuid.UUID
	Reason        string
	At            time.Time
}
