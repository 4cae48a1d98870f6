package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/chanop/telemetry"
)

// writeTimeout bounds a single Write call.
const writeTimeout = 5 * time.Second

// Async buffers records in memory and writes them from a single goroutine started by Run.
// When the buffer is full, Emit drops the record and counts it.
type Async struct {
	w    Writer
	ch   chan Record
	once sync.Once
	done chan struct{}
}

// NewAsync wraps w with a buffer of size records.
func NewAsync(w Writer, size int) *Async {
	if size <= 0 {
		size = 256
	}
	return &Async{w: w, ch: make(chan Record, size), done: make(chan struct{})}
}

// Emit implements Sink. It never blocks.
func (a *Async) Emit(r Record) {
	select {
	case <-a.done:
		telemetry.RecordAuditDropped()
		return
	default:
	}
	select {
	case a.ch <- r:
	default:
		telemetry.RecordAuditDropped()
		slog.Warn("audit buffer full; record dropped", slog.String("kind", string(r.Kind)), slog.String("component", "audit"))
	}
}

// Run writes buffered records until ctx is cancelled, then flushes what is left and closes the writer.
func (a *Async) Run(ctx context.Context) error {
	defer a.once.Do(func() { close(a.done) })
	for {
		select {
		case r := <-a.ch:
			a.write(context.Background(), r)
		case <-ctx.Done():
			a.flush()
			if err := a.w.Close(); err != nil {
				slog.Warn("audit writer close", slog.Any("err", err), slog.String("component", "audit"))
			}
			return nil
		}
	}
}

func (a *Async) flush() {
	for {
		select {
		case r := <-a.ch:
			a.write(context.Background(), r)
		default:
			return
		}
	}
}

func (a *Async) write(parent context.Context, r Record) {
	ctx, cancel := context.WithTimeout(parent, writeTimeout)
	defer cancel()
	if err := a.w.Write(ctx, r); err != nil {
		telemetry.RecordAuditDropped()
		slog.Warn("audit write failed", slog.String("kind", string(r.Kind)), slog.Any("err", err), slog.String("component", "audit"))
	}
}
