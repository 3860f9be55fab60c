// Package metrics holds the Prometheus collectors of the checkout service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

type Metrics struct {
	checkoutAttempts  *prometheus.CounterVec
	checkoutDuration  *prometheus.HistogramVec
	gatewayRequests   *prometheus.CounterVec
	compensations     *prometheus.CounterVec
	outboxDispatched  *prometheus.CounterVec
	reconciledRelease *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers every collector on reg. Pass prometheus.NewRegistry() in tests
// so that repeated construction does not panic on duplicate registration.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		checkoutAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "checkout", Name: "attempts_total",
			Help: "Checkout attempts by final outcome.",
		}, []string{"outcome"}),
		checkoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "checkout", Name: "duration_seconds",
			Help:    "End-to-end checkout latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "gateway", Name: "requests_total",
			Help: "Payment gateway calls by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "inventory", Name: "compensations_total",
			Help: "Stock releases issued as compensation.",
		}, []string{"outcome"}),
		outboxDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "outbox", Name: "dispatched_total",
			Help: "Outbox events handed to the broker.",
		}, []string{"type", "outcome"}),
		reconciledRelease: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "reconciliation", Name: "releases_total",
			Help: "Out-of-band stock releases.",
		}, []string{"outcome"}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.checkoutAttempts,
		m.checkoutDuration,
		m.gatewayRequests,
		m.compensations,
		m.outboxDispatched,
		m.reconciledRelease,
	)
	return m
}

func (m *Metrics) ObserveCheckout(outcome string, started time.Time) {
	m.checkoutAttempts.WithLabelValues(outcome).Inc()
	m.checkoutDuration.WithLabelValues(outcome).Observe(time.Since(started).Seconds())
}

func (m *Metrics) GatewayRequest(endpoint, outcome string) {
	m.gatewayRequests.WithLabelValues(endpoint, outcome).Inc()
}

func (m *Metrics) Compensation(outcome string) {
	m.compensations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) OutboxDispatched(eventType, outcome string) {
	m.outboxDispatched.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) Reconciled(outcome string) {
	m.reconciledRelease.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
