package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the polling engine's counters. Collectors are registered on
// the given registry so tests can use an isolated one.
type Metrics struct {
	CyclesTotal        prometheus.Counter
	CheckoutsProcessed *prometheus.CounterVec
	AmountMismatches   prometheus.Counter
	ProviderErrors     prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payment_polling_cycles_total",
			Help: "Number of polling cycles executed.",
		}),
		CheckoutsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_checkouts_processed_total",
			Help: "Checkouts processed per cycle outcome.",
		}, []string{"result"}),
		AmountMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payment_amount_mismatches_total",
			Help: "Paid amounts that did not match the expected order total.",
		}),
		ProviderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payment_provider_errors_total",
			Help: "Transient provider failures during status polling.",
		}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.CheckoutsProcessed,
		m.AmountMismatches,
		m.ProviderErrors,
	)

	return m
}
