package metric

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/agentgate/agentgate/protocol"
)

type fixedSource protocol.MetricsReport

func (f fixedSource) Metrics() protocol.MetricsReport { return protocol.MetricsReport(f) }

func TestCollectorExportsCounters(t *testing.T) {
	src := fixedSource{Processed: 10, Blocked: 3, Allowed: 6, Errors: 1, Active: 2, UptimeSeconds: 12.5}
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(src)); err != nil {
		t.Fatalf("register: %v", err)
	}

	expected := `
# HELP agentgate_decisions_blocked_total Blocking decisions emitted.
# TYPE agentgate_decisions_blocked_total counter
agentgate_decisions_blocked_total 3
# HELP agentgate_events_processed_total Events dispatched to the capability.
# TYPE agentgate_events_processed_total counter
agentgate_events_processed_total 10
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"agentgate_decisions_blocked_total", "agentgate_events_processed_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	if n := testutil.CollectAndCount(NewCollector(src)); n != 8 {
		t.Fatalf("metric count = %d, want 8", n)
	}
}
