// Package sqlite is the default recipient store: a single local database
// file, compatible with the users.db files written by earlier releases of
// the bot.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"telegram-storefront-bot/internal/config"
	"telegram-storefront-bot/internal/infra/metrics"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// tsLayout is fixed-width so that text ordering equals time ordering.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// legacyColumns are added to users tables created by older releases.
var legacyColumns = []struct{ name, ddl string }{
	{"username", "TEXT NOT NULL DEFAULT ''"},
	{"first_name", "TEXT NOT NULL DEFAULT ''"},
	{"last_name", "TEXT NOT NULL DEFAULT ''"},
	{"first_seen", "TEXT"},
	{"last_seen", "TEXT"},
}

type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (creating if needed) the database at cfg.Path and brings the
// schema up to date.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zerolog.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer; transactions hold the only connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &Store{db: db, log: zerolog.Nop()}
	if logger != nil {
		st.log = logger.With().Str("component", "sqlite").Logger()
	}

	if cfg.BusyTimeout > 0 {
		_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")

	if err := st.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	have, err := s.columns(ctx, "users")
	if err != nil {
		return err
	}
	for _, c := range legacyColumns {
		if have[c.name] {
			continue
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE users ADD COLUMN %s %s", c.name, c.ddl)); err != nil {
			return fmt.Errorf("add column %s: %w", c.name, err)
		}
		s.log.Info().Str("column", c.name).Msg("upgraded legacy users table")
	}

	if err := s.normalizeTimestamps(ctx); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_users_first_seen ON users(first_seen, user_id)`)
	return err
}

func (s *Store) columns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]bool{}
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		out[strings.ToLower(name)] = true
	}
	return out, rows.Err()
}

// normalizeTimestamps rewrites first_seen/last_seen values written in other
// formats (Python isoformat with offset, missing values) to tsLayout.
func (s *Store) normalizeTimestamps(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, first_seen, last_seen FROM users
		  WHERE first_seen IS NULL OR last_seen IS NULL
		     OR length(first_seen) != ? OR length(last_seen) != ?`, len(tsLayout), len(tsLayout))
	if err != nil {
		return err
	}
	type fix struct {
		id          int64
		first, last string
	}
	var fixes []fix
	now := time.Now().UTC()
	for rows.Next() {
		var (
			id          int64
			first, last sql.NullString
		)
		if err := rows.Scan(&id, &first, &last); err != nil {
			rows.Close()
			return err
		}
		ft, ok := parseTime(first.String)
		if !ok {
			ft = now
		}
		lt, ok := parseTime(last.String)
		if !ok || lt.Before(ft) {
			lt = ft
		}
		fixes = append(fixes, fix{id: id, first: formatTime(ft), last: formatTime(lt)})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(fixes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, f := range fixes {
		if _, err := tx.ExecContext(ctx, `UPDATE users SET first_seen = ?, last_seen = ? WHERE user_id = ?`, f.first, f.last, f.id); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Info().Int("rows", len(fixes)).Msg("normalized legacy timestamps")
	return nil
}

// Snapshot writes a consistent copy of the database to w (VACUUM INTO).
func (s *Store) Snapshot(ctx context.Context, w io.Writer) error {
	dir, err := os.MkdirTemp("", "storefront-snapshot-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("vacuum into: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// ReportPoolStats publishes database/sql pool gauges.
func (s *Store) ReportPoolStats() {
	st := s.db.Stats()
	metrics.SetRecipientStorePool("sqlite", st.OpenConnections, st.Idle, st.InUse, st.WaitCount)
}

func formatTime(t time.Time) string { return t.UTC().Format(tsLayout) }

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05Z07:00", "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
