// Package api serves the petition table over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/petition-cli/internal/model"
	"github.com/sells-group/petition-cli/internal/service"
	"github.com/sells-group/petition-cli/internal/store"
	"github.com/sells-group/petition-cli/internal/table"
)

// Snapshots is the service surface the handlers need.
type Snapshots interface {
	Snapshot(ctx context.Context) (*service.Snapshot, error)
	Refresh(ctx context.Context) (*service.Snapshot, error)
	Runs(ctx context.Context, limit int) ([]store.RefreshEntry, error)
}

// Options configures the handler.
type Options struct {
	PageSize    int
	TopN        int
	CORSOrigins []string
}

type server struct {
	svc  Snapshots
	opts Options
}

// NewHandler returns the API router.
func NewHandler(svc Snapshots, opts Options) http.Handler {
	if opts.PageSize <= 0 {
		opts.PageSize = table.DefaultPageSize
	}
	if opts.TopN <= 0 {
		opts.TopN = table.DefaultTopN
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	s := &server{svc: svc, opts: opts}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/petitions", s.handleList)
	r.Get("/petitions/options", s.handleOptions)
	r.Get("/petitions/{id}", s.handleGet)
	r.Get("/petitions.csv", s.handleCSV)
	r.Get("/petitions.xlsx", s.handleXLSX)
	r.Get("/summary", s.handleSummary)
	r.Get("/chart", s.handleChart)
	r.Post("/refresh", s.handleRefresh)
	r.Get("/runs", s.handleRuns)

	return gziphandler.GzipHandler(r)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listResponse is the body of GET /petitions.
type listResponse struct {
	*table.Page
	Loaded        int       `json:"loaded"`
	Complete      bool      `json:"complete"`
	FetchedAt     time.Time `json:"fetched_at"`
	NextRefreshAt time.Time `json:"next_refresh_at"`
	Warning       string    `json:"warning,omitempty"`
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	f, err := parseFilter(q)
	if err != nil {
		httpError(w, http.StatusBadRequest, "%v", err)
		return
	}
	rows, err := table.Apply(snap.Rows, f)
	if err != nil {
		httpError(w, http.StatusBadRequest, "%v", err)
		return
	}

	sortKey := q.Get("sort")
	if sortKey == "" {
		sortKey = table.SignaturesKey
	}
	rows, err = table.Sort(rows, sortKey, q.Get("order") != "asc")
	if err != nil {
		httpError(w, http.StatusBadRequest, "%v", err)
		return
	}

	page, err := intParam(q.Get("page"), 1)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid page: %v", err)
		return
	}
	size, err := intParam(q.Get("page_size"), s.opts.PageSize)
	if err != nil || size <= 0 || size > 1000 {
		httpError(w, http.StatusBadRequest, "page_size must be between 1 and 1000")
		return
	}
	p, err := table.Paginate(rows, page, size)
	if err != nil {
		httpError(w, http.StatusBadRequest, "%v", err)
		return
	}

	resp := listResponse{
		Page:          p,
		Loaded:        len(snap.Rows),
		Complete:      snap.Complete,
		FetchedAt:     snap.FetchedAt,
		NextRefreshAt: snap.NextRefreshAt,
	}
	if f.SearchIgnored() {
		resp.Warning = "both petition and q given; only petition is used"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleOptions(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	resp := struct {
		table.FilterOptions
		Suggestions []string `json:"suggestions,omitempty"`
	}{FilterOptions: table.Options(snap.Rows)}

	if q := r.URL.Query().Get("q"); q != "" {
		resp.Suggestions = table.Suggest(snap.Rows, q, 20)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid petition id")
		return
	}
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	for i := range snap.Rows {
		if snap.Rows[i].ID == id {
			writeJSON(w, http.StatusOK, snap.Rows[i])
			return
		}
	}
	httpError(w, http.StatusNotFound, "petition %d not found", id)
}

func (s *server) handleCSV(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.filtered(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, table.ExportFileName))
	if err := table.WriteCSV(w, rows); err != nil {
		zap.L().Warn("api: csv export failed", zap.Error(err))
	}
}

func (s *server) handleXLSX(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.filtered(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, table.ExportFileName))
	if err := table.WriteXLSX(w, rows); err != nil {
		zap.L().Warn("api: xlsx export failed", zap.Error(err))
	}
}

func (s *server) handleSummary(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.filtered(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, table.Summarize(rows))
}

func (s *server) handleChart(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.filtered(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	metric := q.Get("metric")
	if metric == "" {
		metric = table.SignaturesKey
	}
	n, err := intParam(q.Get("n"), s.opts.TopN)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid n: %v", err)
		return
	}
	chart, err := table.TopN(rows, metric, n, q.Get("order") != "asc")
	if err != nil {
		httpError(w, http.StatusBadRequest, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Refresh(r.Context())
	if err != nil {
		snapshotError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "refreshed",
		"run_id":          snap.RunID,
		"petitions":       len(snap.Rows),
		"complete":        snap.Complete,
		"fetched_at":      snap.FetchedAt,
		"next_refresh_at": snap.NextRefreshAt,
	})
}

func (s *server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), 20)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid limit: %v", err)
		return
	}
	runs, err := s.svc.Runs(r.Context(), limit)
	if err != nil {
		zap.L().Error("api: list runs failed", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to list refresh runs")
		return
	}
	if runs == nil {
		runs = []store.RefreshEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *server) snapshot(w http.ResponseWriter, r *http.Request) (*service.Snapshot, bool) {
	snap, err := s.svc.Snapshot(r.Context())
	if err != nil {
		snapshotError(w, err)
		return nil, false
	}
	return snap, true
}

// filtered returns the snapshot rows narrowed by the request's filter
// parameters.
func (s *server) filtered(w http.ResponseWriter, r *http.Request) ([]model.Row, bool) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		httpError(w, http.StatusBadRequest, "%v", err)
		return nil, false
	}
	if err := f.Validate(); err != nil {
		httpError(w, http.StatusBadRequest, "%v", err)
		return nil, false
	}
	snap, ok := s.snapshot(w, r)
	if !ok {
		return nil, false
	}
	rows, err := table.Apply(snap.Rows, f)
	if err != nil {
		httpError(w, http.StatusBadRequest, "%v", err)
		return nil, false
	}
	return rows, true
}

func snapshotError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrEmpty) {
		httpError(w, http.StatusServiceUnavailable, "no petition data found; refresh or check API availability")
		return
	}
	zap.L().Error("api: snapshot failed", zap.Error(err))
	httpError(w, http.StatusInternalServerError, "failed to load petitions")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"status":  code,
		},
	})
}
