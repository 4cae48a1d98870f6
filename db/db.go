// Package db provides database connection helpers, schema migration and the audit log queries.
//
// Two backends are supported, chosen by DSN: Postgres through pgx (postgres:// or postgresql://)
// and an embedded SQLite file through modernc.org/sqlite (sqlite:path or file:path).
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
	_ "modernc.org/sqlite"             // pure Go sqlite driver registered as 'sqlite'
)

// Dialect selects SQL syntax differences between backends.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ErrUnsupportedDSN is returned for DSNs with an unknown scheme.
var ErrUnsupportedDSN = errors.New("unsupported database dsn")

// Connect opens a pool for dsn and reports its dialect. The connection is verified with a ping.
func Connect(ctx context.Context, dsn string) (*sql.DB, Dialect, error) {
	driver, source, dialect, err := parseDSN(dsn)
	if err != nil {
		return nil, "", err
	}
	dbx, err := sql.Open(driver, source)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == SQLite {
		// One writer; sqlite serializes anyway and this avoids SQLITE_BUSY under the async sink.
		dbx.SetMaxOpenConns(1)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := dbx.PingContext(pingCtx); err != nil {
		dbx.Close()
		return nil, "", fmt.Errorf("ping %s: %w", dialect, err)
	}
	return dbx, dialect, nil
}

func parseDSN(dsn string) (driver, source string, dialect Dialect, err error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "pgx", dsn, Postgres, nil
	case strings.HasPrefix(dsn, "sqlite:"):
		return "sqlite", strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite:"), "//"), SQLite, nil
	case strings.HasPrefix(dsn, "file:"):
		return "sqlite", dsn, SQLite, nil
	default:
		return "", "", "", fmt.Errorf("%w: %q", ErrUnsupportedDSN, redact(dsn))
	}
}

func redact(dsn string) string {
	if i := strings.Index(dsn, "@"); i >= 0 {
		if j := strings.Index(dsn, "://"); j >= 0 && j < i {
			return dsn[:j+3] + "***" + dsn[i:]
		}
	}
	return dsn
}

// Migrate applies idempotent schema changes for the audit log.
func Migrate(ctx context.Context, dbx *sql.DB, dialect Dialect) error {
	var stmts []string
	switch dialect {
	case Postgres:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS audit_log (
				id TEXT PRIMARY KEY,
				at TIMESTAMPTZ NOT NULL,
				session TEXT,
				kind TEXT NOT NULL,
				channel TEXT,
				subject TEXT,
				detail TEXT,
				created_at TIMESTAMPTZ DEFAULT NOW()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_at ON audit_log(at)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_channel_at ON audit_log(channel, at)`,
		}
	case SQLite:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS audit_log (
				id TEXT PRIMARY KEY,
				at TIMESTAMP NOT NULL,
				session TEXT,
				kind TEXT NOT NULL,
				channel TEXT,
				subject TEXT,
				detail TEXT,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_at ON audit_log(at)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_channel_at ON audit_log(channel, at)`,
		}
	default:
		return fmt.Errorf("migrate: unknown dialect %q", dialect)
	}
	for i, s := range stmts {
		if _, err := dbx.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("%s migrate step %d failed: %w", dialect, i, err)
		}
	}
	return nil
}

// AuditRow is one persisted audit record.
type AuditRow struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Session string    `json:"session,omitempty"`
	Kind    string    `json:"kind"`
	Channel string    `json:"channel,omitempty"`
	Subject string    `json:"subject,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

// rebind rewrites ? placeholders to $n for Postgres.
func rebind(dialect Dialect, q string) string {
	if dialect != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// InsertAudit stores a row. Re-inserting the same id is a no-op.
func InsertAudit(ctx context.Context, dbx *sql.DB, dialect Dialect, r AuditRow) error {
	q := rebind(dialect, `INSERT INTO audit_log(id, at, session, kind, channel, subject, detail)
		VALUES(?,?,?,?,?,?,?) ON CONFLICT(id) DO NOTHING`)
	_, err := dbx.ExecContext(ctx, q, r.ID, r.At.UTC(), r.Session, r.Kind, r.Channel, r.Subject, r.Detail)
	return err
}

// RecentAudit returns up to limit rows, newest first. An empty channel matches all channels.
func RecentAudit(ctx context.Context, dbx *sql.DB, dialect Dialect, channel string, limit int) ([]AuditRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q := `SELECT id, at, COALESCE(session,''), kind, COALESCE(channel,''), COALESCE(subject,''), COALESCE(detail,'') FROM audit_log`
	args := []any{}
	if channel != "" {
		q += ` WHERE channel = ?`
		args = append(args, channel)
	}
	q += ` ORDER BY at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := dbx.QueryContext(ctx, rebind(dialect, q), args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var out []AuditRow
	for rows.Next() {
		var r AuditRow
		if err := rows.Scan(&r.ID, &r.At, &r.Session, &r.Kind, &r.Channel, &r.Subject, &r.Detail); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
