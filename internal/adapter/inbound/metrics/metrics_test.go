package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	if m.ToolCallsTotal == nil {
		t.Error("ToolCallsTotal not initialized")
	}
	if m.ToolCallDuration == nil {
		t.Error("ToolCallDuration not initialized")
	}
	if m.HTTPRequestsTotal == nil {
		t.Error("HTTPRequestsTotal not initialized")
	}
	if m.StoreOpsTotal == nil {
		t.Error("StoreOpsTotal not initialized")
	}
	if m.ActiveMissions == nil {
		t.Error("ActiveMissions not initialized")
	}
}

func TestMetricsRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ToolCallsTotal.WithLabelValues("http_request", "ok").Inc()
	count := testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("http_request", "ok"))
	if count != 1 {
		t.Errorf("ToolCallsTotal = %v, want 1", count)
	}

	m.ActiveMissions.Set(3)
	if got := testutil.ToFloat64(m.ActiveMissions); got != 3 {
		t.Errorf("ActiveMissions = %v, want 3", got)
	}

	m.ToolCallDuration.WithLabelValues("http_request").Observe(0.05)
	gathered, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	found := false
	for _, mf := range gathered {
		if mf.GetName() == "hiro_tool_call_duration_seconds" {
			found = true
		}
	}
	if !found {
		t.Error("hiro_tool_call_duration_seconds not found in gathered metrics")
	}
}
