package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "referral_ledger"

// Metrics counts lifecycle outcomes. It implements ledger.Recorder.
type Metrics struct {
	created     *prometheus.CounterVec
	replayed    prometheus.Counter
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
}

// NewMetrics registers the ledger collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rewards_created_total",
			Help:      "Rewards created, by currency.",
		}, []string{"currency"}),
		replayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rewards_replayed_total",
			Help:      "Create requests answered from the idempotency index.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Successful reward status transitions, by operation.",
		}, []string{"operation"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Failed ledger operations, by error kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.created, m.replayed, m.transitions, m.failures)
	return m
}

func (m *Metrics) RewardCreated(currency string) { m.created.WithLabelValues(currency).Inc() }
func (m *Metrics) RewardReplayed()               { m.replayed.Inc() }
func (m *Metrics) Transition(op string)          { m.transitions.WithLabelValues(op).Inc() }
func (m *Metrics) Failure(kind string)           { m.failures.WithLabelValues(kind).Inc() }
