package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	first := WorkEnqueued
	Init()
	if WorkEnqueued != first {
		t.Fatal("Init re-registered metrics")
	}
	if EventsTotal == nil || WorkDroppedTotal == nil || QueueDepthGauge == nil {
		t.Fatal("metrics not initialized")
	}
}

func TestDroppedCounterByReason(t *testing.T) {
	Init()
	before := testutil.ToFloat64(WorkDroppedTotal.WithLabelValues("disconnected"))
	RecordDropped("disconnected")
	RecordDropped("disconnected")
	RecordDropped("send_failed")

	if got := testutil.ToFloat64(WorkDroppedTotal.WithLabelValues("disconnected")) - before; got != 2 {
		t.Errorf("disconnected drops = %v, want 2", got)
	}
}

func TestGauges(t *testing.T) {
	Init()
	SetQueueDepth(7)
	SetChannelsJoined(3)
	SetConnectionState(2)

	m := &dto.Metric{}
	if err := QueueDepthGauge.Write(m); err != nil {
		t.Fatalf("write gauge: %v", err)
	}
	if m.GetGauge().GetValue() != 7 {
		t.Errorf("queue depth = %v, want 7", m.GetGauge().GetValue())
	}
	if v := testutil.ToFloat64(ChannelsJoinedGauge); v != 3 {
		t.Errorf("channels joined = %v, want 3", v)
	}
	if v := testutil.ToFloat64(ConnectionState); v != 2 {
		t.Errorf("connection state = %v, want 2", v)
	}
}

func TestReloadCounter(t *testing.T) {
	Init()
	ok := testutil.ToFloat64(ConfigReloads.WithLabelValues("success"))
	bad := testutil.ToFloat64(ConfigReloads.WithLabelValues("failure"))
	RecordReload(true)
	RecordReload(false)
	RecordReload(false)
	if d := testutil.ToFloat64(ConfigReloads.WithLabelValues("success")) - ok; d != 1 {
		t.Errorf("success delta = %v", d)
	}
	if d := testutil.ToFloat64(ConfigReloads.WithLabelValues("failure")) - bad; d != 2 {
		t.Errorf("failure delta = %v", d)
	}
}

func TestCorrelation(t *testing.T) {
	ctx := context.Background()
	if GetCorrelation(ctx) != "" {
		t.Fatal("expected empty correlation")
	}
	ctx = WithCorrelation(ctx, "abc")
	if GetCorrelation(ctx) != "abc" {
		t.Fatalf("correlation = %q", GetCorrelation(ctx))
	}
	if LoggerWithCorr(ctx) == nil {
		t.Fatal("nil logger")
	}
}

func TestTracingDisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracing("chanop", "test", "", 1)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	shutdown()
	if IsTracingEnabled() {
		t.Error("tracing should stay disabled")
	}
	_, span := StartSpan(WithCorrelation(context.Background(), "x"), "noop")
	span.End()
}
