package api

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/petition-cli/internal/model"
	"github.com/sells-group/petition-cli/internal/pipeline"
	"github.com/sells-group/petition-cli/internal/service"
	"github.com/sells-group/petition-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var ref = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func sig(n int64) *int64 { return &n }

type stubService struct {
	snap      *service.Snapshot
	err       error
	refreshed int
	runs      []store.RefreshEntry
	runsErr   error
	limit     int
}

func (s *stubService) Snapshot(context.Context) (*service.Snapshot, error) {
	return s.snap, s.err
}

func (s *stubService) Refresh(context.Context) (*service.Snapshot, error) {
	s.refreshed++
	return s.snap, s.err
}

func (s *stubService) Runs(_ context.Context, limit int) ([]store.RefreshEntry, error) {
	s.limit = limit
	return s.runs, s.runsErr
}

func newStub() *stubService {
	rows := pipeline.Derive([]model.Petition{
		{
			ID: 1, Action: "Fund more school crossings", State: "open", Signatures: sig(12_000),
			Department: "Department for Transport",
			OpenedAt:   at("2024-01-01T00:00:00Z"), ResponseThresholdReachedAt: at("2024-01-11T00:00:00Z"),
		},
		{
			ID: 2, Action: "Protect hedgehogs", State: "closed", Signatures: sig(150_000),
			Department: "Department for Environment, Food and Rural Affairs",
			OpenedAt:   at("2024-01-01T00:00:00Z"), ResponseThresholdReachedAt: at("2024-01-05T00:00:00Z"),
			DebateThresholdReachedAt: at("2024-01-20T00:00:00Z"),
		},
		{ID: 3, Action: "Ban fireworks", State: "rejected", Signatures: sig(40), Department: model.UnassignedDepartment},
	}, ref)
	return &stubService{snap: &service.Snapshot{
		Rows:          rows,
		RunID:         "run-1",
		FetchedAt:     ref,
		NextRefreshAt: ref.Add(time.Hour),
		Complete:      true,
	}}
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func rowIDs(t *testing.T, body map[string]any) []float64 {
	t.Helper()
	rows, ok := body["rows"].([]any)
	require.True(t, ok)
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.(map[string]any)["id"].(float64))
	}
	return out
}

func TestHealth(t *testing.T) {
	w := do(t, NewHandler(newStub(), Options{}), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestList_DefaultSortSignaturesDesc(t *testing.T) {
	w := do(t, NewHandler(newStub(), Options{}), http.MethodGet, "/petitions")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, []float64{2, 1, 3}, rowIDs(t, body))
	assert.Equal(t, float64(3), body["total"])
	assert.Equal(t, float64(3), body["loaded"])
	assert.Equal(t, float64(1), body["page"])
	assert.Equal(t, float64(1), body["total_pages"])
	assert.Equal(t, true, body["complete"])
}

func TestList_FilterSortPaginate(t *testing.T) {
	h := NewHandler(newStub(), Options{})

	w := do(t, h, http.MethodGet, "/petitions?state=open,closed&sort=id&order=asc&page_size=1&page=2")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, []float64{2}, rowIDs(t, body))
	assert.Equal(t, float64(2), body["total"])
	assert.Equal(t, float64(2), body["total_pages"])
	assert.Equal(t, float64(3), body["loaded"])
}

func TestList_SignatureRangeAndSearch(t *testing.T) {
	h := NewHandler(newStub(), Options{})

	w := do(t, h, http.MethodGet, "/petitions?min_signatures=100&max_signatures=20000")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []float64{1}, rowIDs(t, decode(t, w)))

	w = do(t, h, http.MethodGet, "/petitions?q=HEDGE")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []float64{2}, rowIDs(t, decode(t, w)))
}

func TestList_PetitionWinsOverSearch(t *testing.T) {
	w := do(t, NewHandler(newStub(), Options{}), http.MethodGet, "/petitions?petition=Ban+fireworks&q=hedgehogs")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, []float64{3}, rowIDs(t, body))
	assert.NotEmpty(t, body["warning"])
}

func TestList_BadRequests(t *testing.T) {
	h := NewHandler(newStub(), Options{})
	for _, target := range []string{
		"/petitions?min_signatures=abc",
		"/petitions?min_signatures=500&max_signatures=10",
		"/petitions?sort=link",
		"/petitions?sort=nope",
		"/petitions?page=9",
		"/petitions?page_size=0",
		"/petitions?fuzzy=maybe",
	} {
		w := do(t, h, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		body := decode(t, w)
		assert.Contains(t, body, "error", target)
	}
}

func TestList_EmptyTableIs503(t *testing.T) {
	svc := &stubService{err: eris.Wrap(service.ErrEmpty, "fetch failed")}
	w := do(t, NewHandler(svc, Options{}), http.MethodGet, "/petitions")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "no petition data found")
}

func TestList_OtherErrorsAre500(t *testing.T) {
	svc := &stubService{err: eris.New("boom")}
	w := do(t, NewHandler(svc, Options{}), http.MethodGet, "/summary")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestOptions(t *testing.T) {
	w := do(t, NewHandler(newStub(), Options{}), http.MethodGet, "/petitions/options?q=hedg")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, []any{"closed", "open", "rejected"}, body["states"])
	assert.Equal(t, float64(40), body["min_signatures"])
	assert.Equal(t, float64(150_000), body["max_signatures"])
	assert.Equal(t, []any{"Protect hedgehogs"}, body["suggestions"])
}

func TestGet(t *testing.T) {
	h := NewHandler(newStub(), Options{})

	w := do(t, h, http.MethodGet, "/petitions/1")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Fund more school crossings", body["petition"])
	assert.Equal(t, float64(10), body["opened_to_response_threshold_days"])

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/petitions/99").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/petitions/abc").Code)
}

func TestCSVExport(t *testing.T) {
	w := do(t, NewHandler(newStub(), Options{}), http.MethodGet, "/petitions.csv?state=open")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="uk_parliament_petitions.csv"`, w.Header().Get("Content-Disposition"))

	lines := strings.Split(strings.TrimRight(w.Body.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], `"1","Fund more school crossings"`))
}

func TestXLSXExport(t *testing.T) {
	w := do(t, NewHandler(newStub(), Options{}), http.MethodGet, "/petitions.xlsx")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	// xlsx files are zip archives.
	assert.True(t, strings.HasPrefix(w.Body.String(), "PK"))
}

func TestSummary(t *testing.T) {
	w := do(t, NewHandler(newStub(), Options{}), http.MethodGet, "/summary")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, float64(3), body["petitions"])
	counts := body["counts"].(map[string]any)
	assert.Equal(t, float64(2), counts["response_threshold_reached"])
	assert.Equal(t, float64(1), counts["debate_threshold_reached"])
	assert.Equal(t, float64(2), counts["open_or_closed"])
	assert.Len(t, body["timelines"], 6)
}

func TestChart(t *testing.T) {
	h := NewHandler(newStub(), Options{})

	w := do(t, h, http.MethodGet, "/chart?n=2")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	bars := body["bars"].([]any)
	require.Len(t, bars, 2)
	assert.Equal(t, float64(2), bars[0].(map[string]any)["id"])

	w = do(t, h, http.MethodGet, "/chart?metric=opened_to_response_threshold_days&order=asc")
	require.Equal(t, http.StatusOK, w.Code)
	bars = decode(t, w)["bars"].([]any)
	require.Len(t, bars, 2)
	assert.Equal(t, float64(4), bars[0].(map[string]any)["value"])

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/chart?metric=state").Code)
}

func TestRefresh(t *testing.T) {
	svc := newStub()
	w := do(t, NewHandler(svc, Options{}), http.MethodPost, "/refresh")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, svc.refreshed)

	body := decode(t, w)
	assert.Equal(t, "run-1", body["run_id"])
	assert.Equal(t, float64(3), body["petitions"])
}

func TestRuns(t *testing.T) {
	svc := newStub()
	svc.runs = []store.RefreshEntry{{ID: "run-1", Trigger: "manual", Status: store.StatusComplete, StartedAt: ref}}

	w := do(t, NewHandler(svc, Options{}), http.MethodGet, "/runs?limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, svc.limit)
	runs := decode(t, w)["runs"].([]any)
	require.Len(t, runs, 1)

	svc.runs = nil
	w = do(t, NewHandler(svc, Options{}), http.MethodGet, "/runs")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 20, svc.limit)
	assert.JSONEq(t, `{"runs":[]}`, w.Body.String())

	svc.runsErr = eris.New("db down")
	assert.Equal(t, http.StatusInternalServerError, do(t, NewHandler(svc, Options{}), http.MethodGet, "/runs").Code)
}

func TestCORS(t *testing.T) {
	h := NewHandler(newStub(), Options{CORSOrigins: []string{"https://example.org"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.org")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "https://example.org", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	w := do(t, NewHandler(newStub(), Options{}), http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestGzipWhenAccepted(t *testing.T) {
	petitions := make([]model.Petition, 50)
	for i := range petitions {
		petitions[i] = model.Petition{ID: int64(i + 1), Action: fmt.Sprintf("Petition number %d", i+1), State: "open", Department: model.UnassignedDepartment}
	}
	h := NewHandler(&stubService{snap: &service.Snapshot{Rows: pipeline.Derive(petitions, ref), Complete: true}}, Options{})

	req := httptest.NewRequest(http.MethodGet, "/petitions.csv", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), `"ID","Petition"`))
}
