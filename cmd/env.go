package main

import (
	"context"
	"net/url"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/petition-cli/internal/config"
	"github.com/sells-group/petition-cli/internal/fetcher"
	"github.com/sells-group/petition-cli/internal/ingest"
	"github.com/sells-group/petition-cli/internal/pipeline"
	"github.com/sells-group/petition-cli/internal/service"
	"github.com/sells-group/petition-cli/internal/store"
	"github.com/sells-group/petition-cli/pkg/parliament"
)

// appEnv holds the wired service and the refresh log behind it.
type appEnv struct {
	Service *service.Service
	Log     store.RefreshLog
}

// Close releases the refresh log.
func (e *appEnv) Close() {
	if e.Log != nil {
		_ = e.Log.Close()
	}
}

// newPipeline wires fetcher, listing client and ingest into a pipeline.
func newPipeline(c *config.Config) *pipeline.Pipeline {
	limiters := map[string]*rate.Limiter{}
	if c.API.RatePerSec > 0 {
		if u, err := url.Parse(c.API.BaseURL); err == nil && u.Host != "" {
			burst := int(c.API.RatePerSec)
			if burst < 1 {
				burst = 1
			}
			limiters[u.Host] = rate.NewLimiter(rate.Limit(c.API.RatePerSec), burst)
		}
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    c.API.UserAgent,
		Timeout:      c.API.Timeout(),
		MaxRetries:   c.API.MaxRetries,
		RateLimiters: limiters,
	})
	client := parliament.NewClient(c.API.BaseURL, f)
	source := ingest.New(client, ingest.Options{
		State:      c.API.State,
		Unassigned: c.Petitions.UnassignedDepartment,
		MaxPages:   c.API.MaxPages,
	})
	return pipeline.New(source, nil)
}

// initEnv opens the refresh log and builds the service. A refresh log that
// cannot be opened is logged and skipped; the table works without it.
func initEnv(ctx context.Context, c *config.Config) *appEnv {
	env := &appEnv{}
	log, err := store.New(ctx, store.Config{Driver: c.Store.Driver, DatabaseURL: c.Store.DatabaseURL})
	if err != nil {
		zap.L().Warn("refresh log unavailable", zap.Error(err))
	} else {
		env.Log = log
	}

	env.Service = service.New(newPipeline(c), env.Log, service.Options{TTL: c.Refresh.TTL()})
	return env
}
