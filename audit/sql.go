package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/onnwee/chanop/db"
)

// SQLWriter stores records in the audit_log table.
type SQLWriter struct {
	DB      *sql.DB
	Dialect db.Dialect
}

// OpenSQL connects to dsn, applies the schema and returns a writer that owns the pool.
func OpenSQL(ctx context.Context, dsn string) (*SQLWriter, error) {
	dbx, dialect, err := db.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, dbx, dialect); err != nil {
		dbx.Close()
		return nil, fmt.Errorf("audit schema: %w", err)
	}
	return &SQLWriter{DB: dbx, Dialect: dialect}, nil
}

// Write implements Writer.
func (w *SQLWriter) Write(ctx context.Context, r Record) error {
	return db.InsertAudit(ctx, w.DB, w.Dialect, db.AuditRow{
		ID:      r.ID,
		At:      r.At,
		Session: r.Session,
		Kind:    string(r.Kind),
		Channel: r.Channel,
		Subject: r.Subject,
		Detail:  r.Detail,
	})
}

// Recent returns the newest rows for the admin API.
func (w *SQLWriter) Recent(ctx context.Context, channel string, limit int) ([]db.AuditRow, error) {
	return db.RecentAudit(ctx, w.DB, w.Dialect, channel, limit)
}

// Close implements Writer.
func (w *SQLWriter) Close() error { return w.DB.Close() }
