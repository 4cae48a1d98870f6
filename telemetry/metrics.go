// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	EventsTotal      *prometheus.CounterVec // by kind
	NumericsTotal    *prometheus.CounterVec // by numeric name
	WorkEnqueued     prometheus.Counter
	WorkExecuted     prometheus.Counter
	WorkDroppedTotal *prometheus.CounterVec // by reason
	OpGrantsTotal    *prometheus.CounterVec // by channel
	ConfigReloads    *prometheus.CounterVec // by result
	AuditDropped     prometheus.Counter

	// Gauges
	QueueDepthGauge     prometheus.Gauge
	ChannelsJoinedGauge prometheus.Gauge
	ConnectionState     prometheus.Gauge // 0=disconnected,1=connecting,2=connected
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chanop_events_total", Help: "Gateway events handled by kind"}, []string{"kind"})
		NumericsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chanop_numerics_total", Help: "Numeric replies received by name"}, []string{"name"})
		WorkEnqueued = promauto.NewCounter(prometheus.CounterOpts{Name: "chanop_work_enqueued_total", Help: "Work items added to the deferred queue"})
		WorkExecuted = promauto.NewCounter(prometheus.CounterOpts{Name: "chanop_work_executed_total", Help: "Work items sent to the server"})
		WorkDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chanop_work_dropped_total", Help: "Work items drained without being executed"}, []string{"reason"})
		OpGrantsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chanop_op_grants_total", Help: "Operator grants issued"}, []string{"channel"})
		ConfigReloads = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chanop_config_reloads_total", Help: "Configuration reload attempts by result"}, []string{"result"})
		AuditDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "chanop_audit_dropped_total", Help: "Audit records dropped because the buffer was full or the sink failed"})
		QueueDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chanop_queue_depth", Help: "Current number of deferred work items"})
		ChannelsJoinedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chanop_channels_joined", Help: "Channels currently occupied"})
		ConnectionState = promauto.NewGauge(prometheus.GaugeOpts{Name: "chanop_connection_state", Help: "Connection state 0=disconnected 1=connecting 2=connected"})
	})
}

// ObserveEvent counts a gateway event.
func ObserveEvent(kind string) {
	if EventsTotal != nil {
		EventsTotal.WithLabelValues(kind).Inc()
	}
}

// ObserveNumeric counts a numeric reply by its symbolic name.
func ObserveNumeric(name string) {
	if NumericsTotal != nil {
		NumericsTotal.WithLabelValues(name).Inc()
	}
}

// RecordEnqueued counts a work item accepted by the queue.
func RecordEnqueued() {
	if WorkEnqueued != nil {
		WorkEnqueued.Inc()
	}
}

// RecordExecuted counts a work item sent to the server.
func RecordExecuted() {
	if WorkExecuted != nil {
		WorkExecuted.Inc()
	}
}

// RecordDropped counts a drained work item that was discarded.
func RecordDropped(reason string) {
	if WorkDroppedTotal != nil {
		WorkDroppedTotal.WithLabelValues(reason).Inc()
	}
}

// RecordOpGrant counts a +o issued in channel.
func RecordOpGrant(channel string) {
	if OpGrantsTotal != nil {
		OpGrantsTotal.WithLabelValues(channel).Inc()
	}
}

// RecordReload counts a reload attempt.
func RecordReload(ok bool) {
	if ConfigReloads == nil {
		return
	}
	if ok {
		ConfigReloads.WithLabelValues("success").Inc()
	} else {
		ConfigReloads.WithLabelValues("failure").Inc()
	}
}

// RecordAuditDropped counts a lost audit record.
func RecordAuditDropped() {
	if AuditDropped != nil {
		AuditDropped.Inc()
	}
}

// SetQueueDepth records the current deferred queue length.
func SetQueueDepth(n int) {
	if QueueDepthGauge != nil {
		QueueDepthGauge.Set(float64(n))
	}
}

// SetChannelsJoined records the current membership size.
func SetChannelsJoined(n int) {
	if ChannelsJoinedGauge != nil {
		ChannelsJoinedGauge.Set(float64(n))
	}
}

// SetConnectionState records the controller state as its ordinal.
func SetConnectionState(state int) {
	if ConnectionState != nil {
		ConnectionState.Set(float64(state))
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context carrying the correlation id (session id or request id).
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
