package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/petition-cli/internal/model"
	"github.com/sells-group/petition-cli/internal/pipeline"
	"github.com/sells-group/petition-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeBuilder struct {
	calls   atomic.Int32
	release chan struct{}
	table   func() *pipeline.Table
}

func (b *fakeBuilder) Run(ctx context.Context) *pipeline.Table {
	b.calls.Add(1)
	if b.release != nil {
		<-b.release
	}
	return b.table()
}

func rowsTable(n int) func() *pipeline.Table {
	return func() *pipeline.Table {
		rows := make([]model.Row, n)
		for i := range rows {
			rows[i].ID = int64(i + 1)
		}
		return &pipeline.Table{Rows: rows, Pages: 1, Requests: 1, Complete: true}
	}
}

type mockLog struct {
	mock.Mock
}

func (m *mockLog) Start(ctx context.Context, trigger string) (string, error) {
	args := m.Called(ctx, trigger)
	return args.String(0), args.Error(1)
}

func (m *mockLog) Complete(ctx context.Context, id string, result store.RefreshResult) error {
	return m.Called(ctx, id, result).Error(0)
}

func (m *mockLog) Fail(ctx context.Context, id string, errMsg string) error {
	return m.Called(ctx, id, errMsg).Error(0)
}

func (m *mockLog) List(ctx context.Context, limit int) ([]store.RefreshEntry, error) {
	args := m.Called(ctx, limit)
	entries, _ := args.Get(0).([]store.RefreshEntry)
	return entries, args.Error(1)
}

func (m *mockLog) Migrate(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockLog) Close() error                      { return m.Called().Error(0) }

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func TestSnapshot_CachedWithinTTL(t *testing.T) {
	b := &fakeBuilder{table: rowsTable(3)}
	c := newClock()
	svc := New(b, nil, Options{TTL: time.Hour, Now: c.Now})

	first, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, first.Rows, 3)
	assert.Equal(t, c.Now().Add(time.Hour), first.NextRefreshAt)

	c.Advance(59 * time.Minute)
	second, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), b.calls.Load())
}

func TestSnapshot_RebuildsAfterTTL(t *testing.T) {
	b := &fakeBuilder{table: rowsTable(2)}
	c := newClock()
	log := &mockLog{}
	log.On("Start", mock.Anything, TriggerStartup).Return("run-1", nil).Once()
	log.On("Start", mock.Anything, TriggerExpired).Return("run-2", nil).Once()
	log.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(nil).Twice()

	svc := New(b, log, Options{TTL: time.Hour, Now: c.Now})

	first, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", first.RunID)

	c.Advance(time.Hour)
	second, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, "run-2", second.RunID)
	assert.Equal(t, int32(2), b.calls.Load())
	log.AssertExpectations(t)
}

func TestRefresh_ForcesRebuild(t *testing.T) {
	b := &fakeBuilder{table: rowsTable(1)}
	log := &mockLog{}
	log.On("Start", mock.Anything, TriggerStartup).Return("run-1", nil).Once()
	log.On("Start", mock.Anything, TriggerManual).Return("run-2", nil).Once()
	log.On("Complete", mock.Anything, "run-1", mock.Anything).Return(nil).Once()
	log.On("Complete", mock.Anything, "run-2", store.RefreshResult{Pages: 1, Requests: 1, Petitions: 1, Complete: true}).Return(nil).Once()

	svc := New(b, log, Options{})
	_, err := svc.Snapshot(context.Background())
	require.NoError(t, err)

	snap, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-2", snap.RunID)
	assert.Same(t, snap, svc.Current())
	assert.Equal(t, int32(2), b.calls.Load())
	log.AssertExpectations(t)
}

func TestSnapshot_EmptyIsErrEmpty(t *testing.T) {
	cause := eris.New("parliament: list page 1: unexpected status 503")
	b := &fakeBuilder{table: func() *pipeline.Table {
		return &pipeline.Table{Rows: []model.Row{}, Requests: 1, Err: cause}
	}}
	log := &mockLog{}
	log.On("Start", mock.Anything, TriggerStartup).Return("run-1", nil).Once()
	log.On("Fail", mock.Anything, "run-1", cause.Error()).Return(nil).Once()

	svc := New(b, log, Options{})
	snap, err := svc.Snapshot(context.Background())

	assert.Nil(t, snap)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmpty))
	assert.Nil(t, svc.Current())
	log.AssertExpectations(t)
}

func TestSnapshot_PartialIsPublished(t *testing.T) {
	cause := eris.New("page 3 failed")
	b := &fakeBuilder{table: func() *pipeline.Table {
		return &pipeline.Table{Rows: make([]model.Row, 100), Pages: 2, Requests: 3, Err: cause}
	}}
	log := &mockLog{}
	log.On("Start", mock.Anything, TriggerStartup).Return("run-1", nil)
	log.On("Complete", mock.Anything, "run-1", store.RefreshResult{
		Pages: 2, Requests: 3, Petitions: 100, Error: "page 3 failed",
	}).Return(nil).Once()

	snap, err := New(b, log, Options{}).Snapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Complete)
	assert.Equal(t, cause, snap.Err)
	log.AssertExpectations(t)
}

func TestSnapshot_LogFailuresDoNotBlock(t *testing.T) {
	b := &fakeBuilder{table: rowsTable(1)}
	log := &mockLog{}
	log.On("Start", mock.Anything, mock.Anything).Return("", eris.New("disk full"))

	snap, err := New(b, log, Options{}).Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Rows, 1)
	assert.Empty(t, snap.RunID)
	log.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestSnapshot_ConcurrentCallersShareBuild(t *testing.T) {
	b := &fakeBuilder{table: rowsTable(5), release: make(chan struct{})}
	svc := New(b, nil, Options{})

	var wg sync.WaitGroup
	results := make([]*Snapshot, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := svc.Snapshot(context.Background())
			assert.NoError(t, err)
			results[i] = snap
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(b.release)
	wg.Wait()

	assert.Equal(t, int32(1), b.calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestRuns(t *testing.T) {
	entries, err := New(&fakeBuilder{}, nil, Options{}).Runs(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	log := &mockLog{}
	log.On("List", mock.Anything, 5).Return([]store.RefreshEntry{{ID: "a"}}, nil)
	entries, err = New(&fakeBuilder{}, log, Options{}).Runs(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].ID)
}

func TestLoop_StopsOnCancel(t *testing.T) {
	b := &fakeBuilder{table: rowsTable(1)}
	svc := New(b, nil, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Loop(ctx, 10*time.Millisecond) }()

	assert.Eventually(t, func() bool { return b.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

// pagingBuilder returns one page of rows, then waits for its context to end
// and reports the rows gathered so far along with the context error.
type pagingBuilder struct {
	calls   atomic.Int32
	release chan struct{}
	sawDone atomic.Bool
}

func (b *pagingBuilder) Run(ctx context.Context) *pipeline.Table {
	b.calls.Add(1)
	select {
	case <-ctx.Done():
		b.sawDone.Store(true)
		return &pipeline.Table{Rows: make([]model.Row, 1), Pages: 1, Requests: 2, Err: eris.Wrap(ctx.Err(), "parliament: list page 2")}
	case <-b.release:
		return rowsTable(4)()
	}
}

func TestSnapshot_CallerCancelDoesNotTruncateSharedBuild(t *testing.T) {
	b := &pagingBuilder{release: make(chan struct{})}
	svc := New(b, nil, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := svc.Snapshot(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	// The build keeps paging for the next caller.
	done := make(chan *Snapshot, 1)
	go func() {
		snap, err := svc.Snapshot(context.Background())
		assert.NoError(t, err)
		done <- snap
	}()
	close(b.release)

	select {
	case snap := <-done:
		require.NotNil(t, snap)
		assert.Len(t, snap.Rows, 4)
		assert.True(t, snap.Complete)
	case <-time.After(time.Second):
		t.Fatal("shared build did not finish")
	}
	assert.False(t, b.sawDone.Load())
	assert.Equal(t, int32(1), b.calls.Load())
}

func TestSnapshot_BuildTimeoutKeepsPreviousSnapshot(t *testing.T) {
	c := newClock()
	first := &fakeBuilder{table: rowsTable(3)}
	svc := New(first, nil, Options{TTL: time.Hour, BuildTimeout: 20 * time.Millisecond, Now: c.Now})

	prev, err := svc.Snapshot(context.Background())
	require.NoError(t, err)

	b := &pagingBuilder{release: make(chan struct{})}
	svc.builder = b
	c.Advance(time.Hour)

	snap, err := svc.Snapshot(context.Background())
	assert.Nil(t, snap)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, errors.Is(err, ErrEmpty))
	assert.True(t, b.sawDone.Load())
	assert.Same(t, prev, svc.Current())
}

func TestSnapshot_InterruptedBuildIsLoggedAsFailed(t *testing.T) {
	log := &mockLog{}
	log.On("Start", mock.Anything, TriggerStartup).Return("run-1", nil).Once()
	log.On("Fail", mock.Anything, "run-1", mock.AnythingOfType("string")).Return(nil).Once()

	b := &pagingBuilder{release: make(chan struct{})}
	svc := New(b, log, Options{BuildTimeout: 20 * time.Millisecond})

	_, err := svc.Snapshot(context.Background())
	require.Error(t, err)
	assert.Nil(t, svc.Current())
	log.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
	log.AssertExpectations(t)
}
