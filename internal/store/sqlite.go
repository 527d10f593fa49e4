package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteLog implements RefreshLog using modernc.org/sqlite.
type SQLiteLog struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given DSN and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		// Every pooled connection to a private in-memory database is a new
		// empty database.
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteLog{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS refresh_log (
	id           TEXT PRIMARY KEY,
	triggered_by TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	pages        INTEGER NOT NULL DEFAULT 0,
	requests     INTEGER NOT NULL DEFAULT 0,
	petitions    INTEGER NOT NULL DEFAULT 0,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_refresh_log_started_at ON refresh_log(started_at);
`

func (s *SQLiteLog) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteLog) Close() error {
	return s.db.Close()
}

func (s *SQLiteLog) Start(ctx context.Context, trigger string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO refresh_log (id, triggered_by, status, started_at) VALUES (?, ?, ?, ?)`,
		id, trigger, StatusRunning, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert refresh")
	}
	return id, nil
}

func (s *SQLiteLog) Complete(ctx context.Context, id string, result RefreshResult) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE refresh_log
		 SET status = ?, completed_at = ?, pages = ?, requests = ?, petitions = ?, error = ?
		 WHERE id = ?`,
		result.Status(), time.Now().UTC(), result.Pages, result.Requests, result.Petitions,
		nullString(result.Error), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete refresh %s", id)
	}
	return checkRowsAffected(res, "refresh", id)
}

func (s *SQLiteLog) Fail(ctx context.Context, id string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE refresh_log SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		StatusFailed, time.Now().UTC(), errMsg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail refresh %s", id)
	}
	return checkRowsAffected(res, "refresh", id)
}

func (s *SQLiteLog) List(ctx context.Context, limit int) ([]RefreshEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, triggered_by, status, started_at, completed_at, pages, requests, petitions, error
		 FROM refresh_log ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list refreshes")
	}
	defer rows.Close() //nolint:errcheck

	var entries []RefreshEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: iterate refreshes")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (*RefreshEntry, error) {
	var (
		e         RefreshEntry
		completed sql.NullTime
		errMsg    sql.NullString
	)
	err := row.Scan(&e.ID, &e.Trigger, &e.Status, &e.StartedAt, &completed,
		&e.Pages, &e.Requests, &e.Petitions, &errMsg)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan refresh")
	}
	if completed.Valid {
		t := completed.Time.UTC()
		e.CompletedAt = &t
	}
	e.StartedAt = e.StartedAt.UTC()
	e.Error = errMsg.String
	return &e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
