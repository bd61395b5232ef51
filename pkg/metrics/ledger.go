package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/tradevouch/pkg/enums"
)

// LedgerMetrics counts ticket transitions and feedback outcomes.
type LedgerMetrics struct {
	transitions *prometheus.CounterVec
	vouches     *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger counters on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradevouch_trade_transitions_total",
		Help: "Committed trade ticket transitions by target status.",
	}, []string{"to"})
	vouches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradevouch_vouches_total",
		Help: "Feedback attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(transitions, vouches)
	return &LedgerMetrics{
		transitions: transitions,
		vouches:     vouches,
	}
}

// RecordTransition counts a committed move into the given status.
func (m *LedgerMetrics) RecordTransition(to enums.TicketStatus) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(string(to))).Inc()
}

// RecordVouch counts a feedback attempt.
func (m *LedgerMetrics) RecordVouch(outcome string) {
	if m == nil || m.vouches == nil {
		return
	}
	m.vouches.WithLabelValues(normalizeLabel(outcome)).Inc()
}
