package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nyashahama/parenting-anxiety-backend/internal/db"
	"github.com/nyashahama/parenting-anxiety-backend/internal/export"
	"github.com/nyashahama/parenting-anxiety-backend/internal/store"
	"github.com/sqlc-dev/pqtype"
)

// ─── TEST DOUBLES ─────────────────────────────────────────────────────────────

type stubQuerier struct {
	db.Querier

	mu       sync.Mutex
	results  map[uuid.UUID]db.Result
	exported []uuid.UUID
	failures []db.SetExportErrorParams
	pending  []db.Result
	listArgs []db.ListPendingExportsParams
	purged   []time.Time
}

func (s *stubQuerier) GetResultByID(_ context.Context, id uuid.UUID) (db.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[id]
	if !ok {
		return db.Result{}, sql.ErrNoRows
	}
	return r, nil
}

func (s *stubQuerier) MarkResultExported(_ context.Context, id uuid.UUID) (db.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exported = append(s.exported, id)
	r := s.results[id]
	r.ExportedAt = sql.NullTime{Time: time.Now(), Valid: true}
	s.results[id] = r
	return r, nil
}

func (s *stubQuerier) SetExportError(_ context.Context, arg db.SetExportErrorParams) (db.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, arg)
	return db.Result{ID: arg.ID}, nil
}

func (s *stubQuerier) ListPendingExports(_ context.Context, arg db.ListPendingExportsParams) ([]db.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listArgs = append(s.listArgs, arg)
	return s.pending, nil
}

func (s *stubQuerier) DeleteExpiredShares(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purged = append(s.purged, before)
	return 2, nil
}

type stubPublisher struct {
	mu   sync.Mutex
	rows []export.Row
	err  error
}

func (p *stubPublisher) Publish(_ context.Context, row export.Row) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.rows = append(p.rows, row)
	return nil
}

func (p *stubPublisher) Close() error { return nil }

type funcJob func(ctx context.Context, id uuid.UUID) error

func (f funcJob) Run(ctx context.Context, id uuid.UUID) error { return f(ctx, id) }

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func storedResult(t *testing.T) db.Result {
	t.Helper()
	profile, err := json.Marshal(store.Profile{Name: "Kim", ChildAge: "5", Region: "Seoul"})
	if err != nil {
		t.Fatal(err)
	}
	return db.Result{
		ID:              uuid.New(),
		Phone:           "+821012345678",
		Answers:         json.RawMessage(`{"pe1":3}`),
		Profile:         pqtype.NullRawMessage{RawMessage: profile, Valid: true},
		CategoryResults: json.RawMessage(`{"A":{"mean":3,"label":"High","description":"a"}}`),
		GlobalResult:    json.RawMessage(`{"mean":3,"label":"Watchful","description":"g"}`),
		BaiResult:       json.RawMessage(`{"mean":1,"sum":21,"label":"Mild","description":"b"}`),
		CreatedAt:       time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC),
	}
}

// ─── Job ──────────────────────────────────────────────────────────────────────

func TestJob_Run_PublishesAndMarks(t *testing.T) {
	res := storedResult(t)
	q := &stubQuerier{results: map[uuid.UUID]db.Result{res.ID: res}}
	pub := &stubPublisher{}
	job := NewJob(q, store.New(nil, q), pub, []string{"A"}, discardLogger())

	if err := job.Run(context.Background(), res.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(pub.rows) != 1 {
		t.Fatalf("published %d rows, want 1", len(pub.rows))
	}
	row := pub.rows[0]
	if row.ResultID != res.ID || row.Name != "Kim" || row.GlobalLabel != "Watchful" || row.BAILabel != "Mild" {
		t.Errorf("row = %+v", row)
	}
	if len(row.Categories) != 1 || row.Categories[0].Label != "High" {
		t.Errorf("categories = %+v", row.Categories)
	}
	if len(q.exported) != 1 || q.exported[0] != res.ID {
		t.Errorf("exported = %v", q.exported)
	}

	// Second run is a no-op: already exported.
	if err := job.Run(context.Background(), res.ID); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(pub.rows) != 1 {
		t.Errorf("re-published an exported result")
	}
}

func TestJob_Run_PublishError(t *testing.T) {
	res := storedResult(t)
	q := &stubQuerier{results: map[uuid.UUID]db.Result{res.ID: res}}
	pubErr := errors.New("broker unavailable")
	job := NewJob(q, store.New(nil, q), &stubPublisher{err: pubErr}, []string{"A"}, discardLogger())

	if err := job.Run(context.Background(), res.ID); !errors.Is(err, pubErr) {
		t.Fatalf("err = %v, want publish error", err)
	}
	if len(q.exported) != 0 {
		t.Error("result must not be marked exported on publish failure")
	}
}

func TestJob_Run_MissingResult(t *testing.T) {
	q := &stubQuerier{results: map[uuid.UUID]db.Result{}}
	job := NewJob(q, store.New(nil, q), &stubPublisher{}, nil, discardLogger())
	if err := job.Run(context.Background(), uuid.New()); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestJob_Run_CorruptReport(t *testing.T) {
	res := storedResult(t)
	res.GlobalResult = json.RawMessage(`not json`)
	q := &stubQuerier{results: map[uuid.UUID]db.Result{res.ID: res}}
	pub := &stubPublisher{}
	job := NewJob(q, store.New(nil, q), pub, nil, discardLogger())
	if err := job.Run(context.Background(), res.ID); err == nil {
		t.Fatal("expected decode error")
	}
	if len(pub.rows) != 0 {
		t.Error("nothing should be published")
	}
}

// ─── Runner ───────────────────────────────────────────────────────────────────

func TestNewRunner_Defaults(t *testing.T) {
	r := newRunner(funcJob(nil), nil, nil, RunnerConfig{}, discardLogger())
	if r.cfg != DefaultRunnerConfig() {
		t.Errorf("cfg = %+v, want defaults", r.cfg)
	}
	if cap(r.queue) != r.cfg.Workers*16 {
		t.Errorf("queue cap = %d", cap(r.queue))
	}
}

func TestRunner_EnqueueDedupAndFull(t *testing.T) {
	r := newRunner(funcJob(nil), nil, nil, RunnerConfig{Workers: 1}, discardLogger())
	ctx := context.Background()

	id := uuid.New()
	if err := r.Enqueue(ctx, id); err != nil {
		t.Fatal(err)
	}
	if err := r.Enqueue(ctx, id); err != nil {
		t.Fatal(err)
	}
	if len(r.queue) != 1 {
		t.Fatalf("queue len = %d, duplicate should not be queued twice", len(r.queue))
	}

	for len(r.queue) < cap(r.queue) {
		if err := r.Enqueue(ctx, uuid.New()); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Enqueue(ctx, uuid.New()); err == nil {
		t.Error("expected error from a full queue")
	}
}

func TestRunner_RunWithRetry_RecordsFailure(t *testing.T) {
	q := &stubQuerier{}
	var calls int
	job := funcJob(func(context.Context, uuid.UUID) error {
		calls++
		return errors.New("boom")
	})
	r := newRunner(job, store.New(nil, q), q, RunnerConfig{MaxRetries: 1}, discardLogger())

	id := uuid.New()
	r.runWithRetry(context.Background(), id, discardLogger())

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if len(q.failures) != 1 || q.failures[0].ID != id || q.failures[0].ExportError.String != "boom" {
		t.Errorf("failures = %+v", q.failures)
	}
}

func TestRunner_RunWithRetry_Success(t *testing.T) {
	q := &stubQuerier{}
	r := newRunner(funcJob(func(context.Context, uuid.UUID) error { return nil }), store.New(nil, q), q, RunnerConfig{}, discardLogger())
	r.runWithRetry(context.Background(), uuid.New(), discardLogger())
	if len(q.failures) != 0 {
		t.Errorf("failures = %+v, want none", q.failures)
	}
}

func TestRunner_PollOnce(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	q := &stubQuerier{pending: []db.Result{{ID: a}, {ID: b}}}
	r := newRunner(funcJob(nil), store.New(nil, q), q, RunnerConfig{Workers: 1, MaxFailures: 4, PollBatch: 10}, discardLogger())

	r.pollOnce(context.Background())

	if len(q.listArgs) != 1 || q.listArgs[0].ExportAttempts != 4 || q.listArgs[0].Limit != 10 {
		t.Errorf("list args = %+v", q.listArgs)
	}
	if got := []uuid.UUID{<-r.queue, <-r.queue}; got[0] != a || got[1] != b {
		t.Errorf("queued = %v", got)
	}
}

func TestRunner_SweepShares(t *testing.T) {
	q := &stubQuerier{}
	r := newRunner(funcJob(nil), store.New(nil, q), q, RunnerConfig{ShareGrace: time.Hour}, discardLogger())

	before := time.Now()
	r.sweepShares(context.Background())

	if len(q.purged) != 1 {
		t.Fatalf("purged = %v", q.purged)
	}
	if cutoff := q.purged[0]; cutoff.After(before.Add(-time.Hour + time.Second)) {
		t.Errorf("cutoff %v should be about an hour before %v", cutoff, before)
	}
}

func TestRunner_StartProcessesQueue(t *testing.T) {
	q := &stubQuerier{}
	done := make(chan uuid.UUID, 1)
	job := funcJob(func(_ context.Context, id uuid.UUID) error {
		done <- id
		return nil
	})
	r := newRunner(job, store.New(nil, q), q, RunnerConfig{Workers: 1, PollInterval: time.Hour}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(stopped)
	}()

	id := uuid.New()
	if err := r.Enqueue(ctx, id); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-done:
		if got != id {
			t.Errorf("processed %v, want %v", got, id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job never ran")
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
	}
}
