// Package service caches the derived petition table and rebuilds it on
// expiry or on demand.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/petition-cli/internal/model"
	"github.com/sells-group/petition-cli/internal/monitoring"
	"github.com/sells-group/petition-cli/internal/pipeline"
	"github.com/sells-group/petition-cli/internal/store"
)

// DefaultTTL is how long a snapshot is served before it is rebuilt.
const DefaultTTL = time.Hour

// DefaultBuildTimeout bounds a single rebuild.
const DefaultBuildTimeout = 10 * time.Minute

// Refresh triggers recorded in the refresh log.
const (
	TriggerStartup  = "startup"
	TriggerExpired  = "ttl"
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
)

// ErrEmpty is returned when a build produced no petitions at all.
var ErrEmpty = eris.New("service: no petition data")

// Builder produces a fresh table.
type Builder interface {
	Run(ctx context.Context) *pipeline.Table
}

// Snapshot is one published table. It is never mutated after publication.
type Snapshot struct {
	Rows          []model.Row
	RunID         string
	FetchedAt     time.Time
	NextRefreshAt time.Time
	Pages         int
	Requests      int
	Complete      bool
	// Err is why paging stopped early; nil when Complete.
	Err error
}

// Options configures a Service.
type Options struct {
	TTL time.Duration
	// BuildTimeout bounds a rebuild independently of the callers waiting on
	// it. Default: DefaultBuildTimeout.
	BuildTimeout time.Duration
	// Now is the clock used for expiry. Default: time.Now.
	Now func() time.Time
}

// Service serves the current snapshot and coordinates rebuilds.
type Service struct {
	builder Builder
	log     store.RefreshLog
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time

	group singleflight.Group
	mu    sync.RWMutex
	snap  *Snapshot
}

// New creates a Service. refreshLog may be nil.
func New(builder Builder, refreshLog store.RefreshLog, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.BuildTimeout <= 0 {
		opts.BuildTimeout = DefaultBuildTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{builder: builder, log: refreshLog, ttl: opts.TTL, timeout: opts.BuildTimeout, now: opts.Now}
}

// Snapshot returns the cached table while it is fresh and rebuilds it
// otherwise. Concurrent callers share one rebuild.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	if snap := s.current(); snap != nil && s.now().Before(snap.NextRefreshAt) {
		return snap, nil
	}
	trigger := TriggerExpired
	if s.current() == nil {
		trigger = TriggerStartup
	}
	return s.rebuild(ctx, trigger)
}

// Refresh discards the cached table and rebuilds it.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	return s.rebuild(ctx, TriggerManual)
}

// Current returns the last published snapshot without rebuilding, or nil.
func (s *Service) Current() *Snapshot {
	return s.current()
}

// Runs returns the most recent refresh log entries.
func (s *Service) Runs(ctx context.Context, limit int) ([]store.RefreshEntry, error) {
	if s.log == nil {
		return []store.RefreshEntry{}, nil
	}
	return s.log.List(ctx, limit)
}

// Loop rebuilds the table every interval until ctx is done. Build failures
// are logged and the loop continues.
func (s *Service) Loop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = s.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.rebuild(ctx, TriggerSchedule); err != nil {
				zap.L().Warn("service: scheduled refresh failed", zap.Error(err))
			}
		}
	}
}

func (s *Service) current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// rebuild runs one shared build. The build is detached from ctx so a caller
// that gives up does not cut paging short for everyone else; the caller
// itself stops waiting when ctx is done.
func (s *Service) rebuild(ctx context.Context, trigger string) (*Snapshot, error) {
	ch := s.group.DoChan("refresh", func() (any, error) {
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.build(bctx, trigger)
	})
	select {
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "service: waiting for refresh")
	case res := <-ch:
		if res.Shared {
			zap.L().Debug("service: joined in-flight refresh", zap.String("trigger", trigger))
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

// interrupted reports whether paging stopped because the build itself ran
// out of time or was cancelled, rather than on a transport failure.
func interrupted(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (s *Service) build(ctx context.Context, trigger string) (*Snapshot, error) {
	log := zap.L().With(zap.String("component", "service"), zap.String("trigger", trigger))

	runID := s.startRun(ctx, trigger)
	start := time.Now()
	tbl := s.builder.Run(ctx)

	if len(tbl.Rows) == 0 || interrupted(ctx, tbl.Err) {
		monitoring.ObserveRefresh(monitoring.Refresh{
			Trigger:  trigger,
			Status:   store.StatusFailed,
			Duration: time.Since(start),
		})
		msg := ErrEmpty.Error()
		if tbl.Err != nil {
			msg = tbl.Err.Error()
		}
		// The log write gets its own budget; ctx may be the expired build.
		logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		s.failRun(logCtx, runID, msg)

		if len(tbl.Rows) > 0 {
			log.Warn("service: refresh interrupted; keeping previous snapshot",
				zap.Int("rows_discarded", len(tbl.Rows)), zap.Error(tbl.Err))
			return nil, eris.Wrap(tbl.Err, "service: refresh interrupted")
		}
		log.Warn("service: refresh produced no petitions", zap.Error(tbl.Err))
		if tbl.Err != nil {
			return nil, eris.Wrap(ErrEmpty, tbl.Err.Error())
		}
		return nil, ErrEmpty
	}

	snap := &Snapshot{
		Rows:          tbl.Rows,
		RunID:         runID,
		FetchedAt:     tbl.FetchedAt,
		NextRefreshAt: s.now().Add(s.ttl),
		Pages:         tbl.Pages,
		Requests:      tbl.Requests,
		Complete:      tbl.Complete,
		Err:           tbl.Err,
	}
	s.completeRun(ctx, runID, tbl)
	status := store.StatusComplete
	if !tbl.Complete {
		status = store.StatusPartial
	}
	monitoring.ObserveRefresh(monitoring.Refresh{
		Trigger:   trigger,
		Status:    status,
		Duration:  time.Since(start),
		Rows:      len(snap.Rows),
		Pages:     snap.Pages,
		Complete:  snap.Complete,
		FetchedAt: snap.FetchedAt,
	})

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	log.Info("service: snapshot published",
		zap.Int("rows", len(snap.Rows)),
		zap.Bool("complete", snap.Complete),
		zap.Time("next_refresh_at", snap.NextRefreshAt),
	)
	return snap, nil
}

// The refresh log is advisory: write failures are logged and never block
// publishing a snapshot.

func (s *Service) startRun(ctx context.Context, trigger string) string {
	if s.log == nil {
		return ""
	}
	id, err := s.log.Start(ctx, trigger)
	if err != nil {
		zap.L().Warn("service: failed to record refresh start", zap.Error(err))
		return ""
	}
	return id
}

func (s *Service) completeRun(ctx context.Context, id string, tbl *pipeline.Table) {
	if s.log == nil || id == "" {
		return
	}
	res := store.RefreshResult{
		Pages:     tbl.Pages,
		Requests:  tbl.Requests,
		Petitions: len(tbl.Rows),
		Complete:  tbl.Complete,
	}
	if tbl.Err != nil {
		res.Error = tbl.Err.Error()
	}
	if err := s.log.Complete(ctx, id, res); err != nil {
		zap.L().Warn("service: failed to record refresh result", zap.String("run_id", id), zap.Error(err))
	}
}

func (s *Service) failRun(ctx context.Context, id, msg string) {
	if s.log == nil || id == "" {
		return
	}
	if err := s.log.Fail(ctx, id, msg); err != nil {
		zap.L().Warn("service: failed to record refresh failure", zap.String("run_id", id), zap.Error(err))
	}
}
