// Package store records refresh runs. Petition rows are rebuilt from the
// API on every refresh and are never written here.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Refresh run statuses.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusPartial  = "partial"
	StatusFailed   = "failed"
)

// RefreshEntry is one row of the refresh log.
type RefreshEntry struct {
	ID          string     `json:"id" yaml:"id"`
	Trigger     string     `json:"trigger" yaml:"trigger"`
	Status      string     `json:"status" yaml:"status"`
	StartedAt   time.Time  `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Pages       int        `json:"pages" yaml:"pages"`
	Requests    int        `json:"requests" yaml:"requests"`
	Petitions   int        `json:"petitions" yaml:"petitions"`
	Error       string     `json:"error,omitempty" yaml:"error,omitempty"`
}

// RefreshResult is passed to Complete when a build finishes. A build that
// stopped paging early is recorded as partial with its cause.
type RefreshResult struct {
	Pages     int
	Requests  int
	Petitions int
	Complete  bool
	Error     string
}

// Status returns the log status for r.
func (r RefreshResult) Status() string {
	if r.Complete {
		return StatusComplete
	}
	return StatusPartial
}

// RefreshLog persists refresh run metadata.
type RefreshLog interface {
	Start(ctx context.Context, trigger string) (string, error)
	Complete(ctx context.Context, id string, result RefreshResult) error
	Fail(ctx context.Context, id string, errMsg string) error
	List(ctx context.Context, limit int) ([]RefreshEntry, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures the refresh log backend.
type Config struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// DefaultSQLiteDSN keeps the log in memory for the life of the process.
const DefaultSQLiteDSN = "file::memory:?cache=shared"

// New opens the configured backend and runs its migration.
func New(ctx context.Context, cfg Config) (RefreshLog, error) {
	var (
		log RefreshLog
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = DefaultSQLiteDSN
		}
		log, err = NewSQLite(dsn)
	case "postgres", "postgresql":
		if cfg.DatabaseURL == "" {
			return nil, eris.New("store: postgres requires database_url")
		}
		log, err = NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := log.Migrate(ctx); err != nil {
		_ = log.Close()
		return nil, err
	}
	return log, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 50
	}
	return limit
}
