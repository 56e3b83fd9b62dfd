package telemetry

import (
	"context"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, set func(int), read func(*dto.Metric) error, n int) float64 {
	t.Helper()
	set(n)
	var m dto.Metric
	if err := read(&m); err != nil {
		t.Fatalf("failed to read metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestHelpersAreNoopBeforeInit(t *testing.T) {
	if PendingTasksGauge != nil {
		t.Skip("metrics already initialized by another test")
	}
	RecordPresenceEvent("join")
	RecordNotificationSent("join")
	RecordNotificationDropped("cancelled")
	RecordLogWriteFailure()
	RecordPruned(3)
	ObserveDispatch(0.5)
	SetActiveSessions(2)
	SetPendingTasks(1)
}

func TestGaugesReflectLatestValue(t *testing.T) {
	Init()

	if got := gaugeValue(t, SetPendingTasks, PendingTasksGauge.Write, 3); got != 3 {
		t.Fatalf("expected pending tasks 3, got %v", got)
	}
	if got := gaugeValue(t, SetActiveSessions, ActiveSessionsGauge.Write, 2); got != 2 {
		t.Fatalf("expected active sessions 2, got %v", got)
	}
}

func TestRecordPrunedIgnoresZero(t *testing.T) {
	Init()

	var before dto.Metric
	if err := LogRowsPruned.Write(&before); err != nil {
		t.Fatalf("failed to read metric: %v", err)
	}
	RecordPruned(0)
	RecordPruned(4)
	var after dto.Metric
	if err := LogRowsPruned.Write(&after); err != nil {
		t.Fatalf("failed to read metric: %v", err)
	}
	if diff := after.GetCounter().GetValue() - before.GetCounter().GetValue(); diff != 4 {
		t.Fatalf("expected pruned counter to grow by 4, got %v", diff)
	}
}

func TestInitTracingWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := InitTracing("", "vcdelay", "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	shutdown()

	_, span := StartSpan(context.Background(), "test.span")
	RecordError(span, nil)
	span.End()
}
