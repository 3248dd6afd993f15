package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SetPopulation(3, 2)
	m.FrameReceived("chat")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}
	if got := testutil.ToFloat64(m.Connections); got != 3 {
		t.Errorf("connections = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.OnlineUsers); got != 2 {
		t.Errorf("online users = %v, want 2", got)
	}
}

func TestDelivery(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Delivery(true)
	m.Delivery(true)
	m.Delivery(false)

	expected := `
		# HELP labflow_ws_deliveries_total Point-to-point deliveries by result
		# TYPE labflow_ws_deliveries_total counter
		labflow_ws_deliveries_total{result="delivered"} 2
		labflow_ws_deliveries_total{result="unreachable"} 1
	`
	if err := testutil.CollectAndCompare(m.Deliveries, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metric value: %v", err)
	}
}

func TestStepNotification(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.StepNotification(true)
	m.StepNotification(false)
	m.StepNotification(false)

	if got := testutil.ToFloat64(m.StepNotifications.WithLabelValues(StepNotified)); got != 1 {
		t.Errorf("created = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.StepNotifications.WithLabelValues(StepSkipped)); got != 2 {
		t.Errorf("skipped = %v, want 2", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.SetPopulation(1, 1)
	m.FrameReceived("chat")
	m.Delivery(true)
	m.SendFailed()
	m.HandshakeRejected("missing_token")
	m.StepNotification(true)
}
