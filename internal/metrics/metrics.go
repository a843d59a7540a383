package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so tests can build as many as they like.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	bookingsCreated     prometheus.Counter
	reservationFailures *prometheus.CounterVec
	webhookEvents       *prometheus.CounterVec
	availabilityChecks  *prometheus.CounterVec
	subscriberFailures  *prometheus.CounterVec
	stuckWebhooks       *prometheus.GaugeVec
}

func New(namespace string) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		bookingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Bookings confirmed by the reservation transaction.",
		}),
		reservationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_failures_total",
			Help:      "Failed reservation attempts by reason.",
		}, []string{"reason"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Inbound payment notifications by outcome.",
		}, []string{"outcome"}),
		availabilityChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_checks_total",
			Help:      "Availability checks by result.",
		}, []string{"result"}),
		subscriberFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_subscriber_failures_total",
			Help:      "Event deliveries that failed or panicked, by subscriber.",
		}, []string{"subscriber"}),
		stuckWebhooks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "webhook_events_stuck",
			Help:      "Ledger entries not PROCESSED after the stale threshold.",
		}, []string{"status"}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.bookingsCreated,
		m.reservationFailures,
		m.webhookEvents,
		m.availabilityChecks,
		m.subscriberFailures,
		m.stuckWebhooks,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) BookingCreated() {
	if m == nil {
		return
	}
	m.bookingsCreated.Inc()
}

func (m *Metrics) ReservationFailed(reason string) {
	if m == nil {
		return
	}
	m.reservationFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) WebhookOutcome(outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AvailabilityChecked(result string) {
	if m == nil {
		return
	}
	m.availabilityChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) SubscriberFailed(subscriber string) {
	if m == nil {
		return
	}
	m.subscriberFailures.WithLabelValues(subscriber).Inc()
}

func (m *Metrics) SetStuckWebhooks(status string, n int) {
	if m == nil {
		return
	}
	m.stuckWebhooks.WithLabelValues(status).Set(float64(n))
}
