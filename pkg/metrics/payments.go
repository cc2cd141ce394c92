package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics tracks gateway charges by method and outcome.
type PaymentMetrics struct {
	charges  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	charges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_charges_total",
		Help: "Gateway charge attempts by method and outcome.",
	}, []string{"method", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_charge_duration_seconds",
		Help:    "Time spent waiting on the payment gateway.",
		Buckets: []float64{0.1, 0.5, 1, 2, 3, 5, 10},
	}, []string{"method"})
	reg.MustRegister(charges, duration)
	return &PaymentMetrics{charges: charges, duration: duration}
}

func (m *PaymentMetrics) ObserveCharge(method, outcome string, d time.Duration) {
	if m == nil || m.charges == nil {
		return
	}
	method = normalizeLabel(method)
	m.charges.WithLabelValues(method, normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(method).Observe(d.Seconds())
}
