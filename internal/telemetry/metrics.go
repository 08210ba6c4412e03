package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration records handler latency by method, route pattern, and status.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "beautymarket",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"method", "route", "status"},
)

var ReservationTransitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "beautymarket",
		Subsystem: "reservation",
		Name:      "transitions_total",
		Help:      "Total reservation status transitions by target status.",
	},
	[]string{"to_status"},
)

var PaymentWebhooksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "beautymarket",
		Subsystem: "payment",
		Name:      "webhooks_total",
		Help:      "Total payment gateway webhook deliveries received, by event and result.",
	},
	[]string{"event", "result"},
)

var PaymentWebhookDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "beautymarket",
		Subsystem: "payment",
		Name:      "webhook_processing_duration_seconds",
		Help:      "Payment webhook processing duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"event"},
)

var PointsExpiredTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "beautymarket",
		Subsystem: "points",
		Name:      "expired_total",
		Help:      "Total point-transaction amount expired by the sweep worker.",
	},
)

var ReferralCommissionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "beautymarket",
		Subsystem: "referral",
		Name:      "commissions_total",
		Help:      "Total referral commissions credited, by tier.",
	},
	[]string{"tier"},
)

var NotificationsSentTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "beautymarket",
		Subsystem: "notification",
		Name:      "sent_total",
		Help:      "Total push notifications attempted, by template and result.",
	},
	[]string{"template", "result"},
)

var SecurityEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "beautymarket",
		Subsystem: "security",
		Name:      "events_total",
		Help:      "Total security events recorded, by kind.",
	},
	[]string{"kind"},
)

var RateLimitBlocksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "beautymarket",
		Subsystem: "ratelimit",
		Name:      "blocks_total",
		Help:      "Total requests rejected by the rate limiter, by route family.",
	},
	[]string{"family"},
)

// All returns all application-specific metrics for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestDuration,
		ReservationTransitionsTotal,
		PaymentWebhooksTotal,
		PaymentWebhookDuration,
		PointsExpiredTotal,
		ReferralCommissionsTotal,
		NotificationsSentTotal,
		SecurityEventsTotal,
		RateLimitBlocksTotal,
	}
}

// NewMetricsRegistry creates a Prometheus registry with the standard Go and
// process collectors plus the application metrics passed in.
func NewMetricsRegistry(appCollectors ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	for _, c := range appCollectors {
		reg.MustRegister(c)
	}
	return reg
}
