package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/tradevouch/pkg/enums"
)

func TestLedgerMetricsCountsTransitionsAndVouches(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewLedgerMetrics(reg)

	metrics.RecordTransition(enums.TicketStatusActive)
	metrics.RecordTransition(enums.TicketStatusCompleted)
	metrics.RecordTransition(enums.TicketStatusCompleted)
	metrics.RecordVouch("recorded")
	metrics.RecordVouch("already_rated")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "tradevouch_trade_transitions_total", "to", "completed"); err != nil {
		t.Fatalf("fetch transitions: %v", err)
	} else if got != 2 {
		t.Fatalf("expected completed=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "tradevouch_vouches_total", "outcome", "already_rated"); err != nil {
		t.Fatalf("fetch vouches: %v", err)
	} else if got != 1 {
		t.Fatalf("expected already_rated=1, got %f", got)
	}
}
