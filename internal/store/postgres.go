package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/petition-cli/internal/db"
)

// PostgresLog implements RefreshLog using pgxpool.
type PostgresLog struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresLog with a small connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresLog, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresLog{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS refresh_log (
	id           TEXT PRIMARY KEY,
	triggered_by TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ,
	pages        INTEGER NOT NULL DEFAULT 0,
	requests     INTEGER NOT NULL DEFAULT 0,
	petitions    INTEGER NOT NULL DEFAULT 0,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_refresh_log_started_at ON refresh_log(started_at DESC);
`

func (s *PostgresLog) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresLog) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresLog) Start(ctx context.Context, trigger string) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO refresh_log (id, triggered_by, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, trigger, StatusRunning, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert refresh")
	}
	return id, nil
}

func (s *PostgresLog) Complete(ctx context.Context, id string, result RefreshResult) error {
	var errMsg *string
	if result.Error != "" {
		errMsg = &result.Error
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE refresh_log
		 SET status = $1, completed_at = now(), pages = $2, requests = $3, petitions = $4, error = $5
		 WHERE id = $6`,
		result.Status(), result.Pages, result.Requests, result.Petitions, errMsg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete refresh %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("refresh not found: %s", id)
	}
	return nil
}

func (s *PostgresLog) Fail(ctx context.Context, id string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE refresh_log SET status = $1, completed_at = now(), error = $2 WHERE id = $3`,
		StatusFailed, errMsg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail refresh %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("refresh not found: %s", id)
	}
	return nil
}

func (s *PostgresLog) List(ctx context.Context, limit int) ([]RefreshEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, triggered_by, status, started_at, completed_at, pages, requests, petitions, error
		 FROM refresh_log ORDER BY started_at DESC LIMIT $1`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list refreshes")
	}
	defer rows.Close()

	var entries []RefreshEntry
	for rows.Next() {
		var (
			e      RefreshEntry
			errMsg *string
		)
		if err := rows.Scan(&e.ID, &e.Trigger, &e.Status, &e.StartedAt, &e.CompletedAt,
			&e.Pages, &e.Requests, &e.Petitions, &errMsg); err != nil {
			return nil, eris.Wrap(err, "postgres: scan refresh")
		}
		if errMsg != nil {
			e.Error = *errMsg
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: iterate refreshes")
}
