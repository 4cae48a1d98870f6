// Package audit records what the bot did: joins, parts, operator grants, reloads and session
// boundaries. Emitting never blocks the controller; records are handed to an Async buffer which
// forwards them to one or more Writers (SQL table, Kafka topic).
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Kind classifies a record.
type Kind string

const (
	KindConnect    Kind = "connect"
	KindDisconnect Kind = "disconnect"
	KindJoin       Kind = "join"
	KindPart       Kind = "part"
	KindOpGrant    Kind = "op_grant"
	KindReload     Kind = "reload"
)

// Record is one audited action.
type Record struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Session string    `json:"session,omitempty"`
	Kind    Kind      `json:"kind"`
	Channel string    `json:"channel,omitempty"`
	Subject string    `json:"subject,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

// JSON encodes the record for wire sinks.
func (r Record) JSON() ([]byte, error) {
	return json.Marshal(r)
}

// Sink accepts records without blocking.
type Sink interface {
	Emit(Record)
}

// Nop discards records.
type Nop struct{}

// Emit implements Sink.
func (Nop) Emit(Record) {}

// Writer persists records. Implementations may block on I/O.
type Writer interface {
	Write(ctx context.Context, r Record) error
	Close() error
}

// Multi fans a record out to every writer. All writers are attempted; errors are joined.
type Multi []Writer

// Write implements Writer.
func (m Multi) Write(ctx context.Context, r Record) error {
	var errs []error
	for _, w := range m {
		if err := w.Write(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Writer.
func (m Multi) Close() error {
	var errs []error
	for _, w := range m {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
