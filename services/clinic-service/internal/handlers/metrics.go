package handlers

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts business events next to the generic HTTP metrics.
type Metrics struct {
	bookings      *prometheus.CounterVec
	confirmations prometheus.Counter
	webhooks      *prometheus.CounterVec
	logins        *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetcare",
			Name:      "bookings_total",
			Help:      "Appointments booked by channel.",
		}, []string{"channel"}),
		confirmations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vetcare",
			Name:      "appointments_confirmed_total",
			Help:      "Appointments moved to CONFIRMED by a payment webhook.",
		}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetcare",
			Name:      "webhooks_total",
			Help:      "Payment provider webhooks by provider and outcome.",
		}, []string{"provider", "outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetcare",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.bookings, m.confirmations, m.webhooks, m.logins)
	}
	return m
}

func (m *Metrics) booked(channel string) { m.bookings.WithLabelValues(channel).Inc() }

func (m *Metrics) webhook(provider, outcome string) {
	m.webhooks.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) login(outcome string) { m.logins.WithLabelValues(outcome).Inc() }
