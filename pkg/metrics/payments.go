package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Label values for payment_attempts_total.
const (
	AttemptNew      = "new"
	AttemptExisting = "existing"
)

// Label values for payment_confirmations_total.
const (
	ConfirmationConfirmed = "confirmed"
	ConfirmationFailed    = "failed"
	ConfirmationReplayed  = "replayed"
)

// PaymentMetrics records invoice and payment attempt activity. A nil
// *PaymentMetrics is valid and records nothing.
type PaymentMetrics struct {
	invoicesCreated prometheus.Counter
	attempts        *prometheus.CounterVec
	confirmations   *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	invoicesCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "invoices_created_total",
		Help: "Invoices successfully created.",
	})
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_attempts_total",
		Help: "Payment attempt create calls by result (new or existing).",
	}, []string{"result"})
	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_confirmations_total",
		Help: "Payment attempt confirmations by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(invoicesCreated, attempts, confirmations)
	return &PaymentMetrics{
		invoicesCreated: invoicesCreated,
		attempts:        attempts,
		confirmations:   confirmations,
	}
}

// IncInvoiceCreated counts one created invoice.
func (m *PaymentMetrics) IncInvoiceCreated() {
	if m == nil || m.invoicesCreated == nil {
		return
	}
	m.invoicesCreated.Inc()
}

// IncAttempt counts one create-attempt call; created=false means an idempotent replay.
func (m *PaymentMetrics) IncAttempt(created bool) {
	if m == nil || m.attempts == nil {
		return
	}
	result := AttemptExisting
	if created {
		result = AttemptNew
	}
	m.attempts.WithLabelValues(result).Inc()
}

// IncConfirmation counts one confirmation with the given outcome label.
func (m *PaymentMetrics) IncConfirmation(outcome string) {
	if m == nil || m.confirmations == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.confirmations.WithLabelValues(outcome).Inc()
}
