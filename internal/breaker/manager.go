// Package breaker provides per-dependency circuit breakers for the external
// collaborators this backend calls out to: the payment gateway, the identity
// verification broker, and the push notification gateway. Isolating each
// behind its own breaker means an outage in one (say, the broker) cannot
// exhaust connections or retries meant for another.
package breaker

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Service identifies an external dependency for breaker isolation.
type Service string

const (
	ServicePaymentGateway Service = "payment_gateway"
	ServiceIdentityBroker Service = "identity_broker"
	ServicePushGateway    Service = "push_gateway"
)

// Manager holds one circuit breaker per external Service.
type Manager struct {
	breakers map[Service]*gobreaker.CircuitBreaker
}

// NewManager creates a Manager with a breaker for each known Service, logging
// state transitions via logger.
func NewManager(logger *slog.Logger) *Manager {
	m := &Manager{breakers: make(map[Service]*gobreaker.CircuitBreaker, 3)}
	for _, svc := range []Service{ServicePaymentGateway, ServiceIdentityBroker, ServicePushGateway} {
		svc := svc
		m.breakers[svc] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        string(svc),
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.ConsecutiveFailures >= 5 {
					return true
				}
				if counts.Requests >= 10 {
					failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
					return failureRatio >= 0.5
				}
				return false
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change", "service", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return m
}

// Execute runs fn protected by the breaker for svc. If the breaker is open,
// fn is not called and gobreaker.ErrOpenState is returned.
func (m *Manager) Execute(svc Service, fn func() (any, error)) (any, error) {
	b, ok := m.breakers[svc]
	if !ok {
		return fn()
	}
	return b.Execute(fn)
}

// State returns the current breaker state for svc ("closed", "open", "half-open").
func (m *Manager) State(svc Service) string {
	b, ok := m.breakers[svc]
	if !ok {
		return "not_configured"
	}
	return b.State().String()
}
