// Package worker contains the background pipeline that exports every saved
// result to the downstream stream. It is decoupled from the HTTP layer: the
// api package holds a worker.Enqueuer interface and calls Enqueue; it never
// imports the concrete Runner or Job types.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nyashahama/parenting-anxiety-backend/internal/db"
	"github.com/nyashahama/parenting-anxiety-backend/internal/store"
)

// ─── ENQUEUER INTERFACE ───────────────────────────────────────────────────────

// Enqueuer is the narrow interface the api package uses to hand off a freshly
// saved result. The concrete implementation is *Runner; in tests any struct
// with an Enqueue method satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, resultID uuid.UUID) error
}

// ─── RUNNER ───────────────────────────────────────────────────────────────────

// RunnerConfig holds tuning parameters for the Runner. Zero fields take the
// values from DefaultRunnerConfig.
type RunnerConfig struct {
	// Workers is the number of concurrent job goroutines. Default: 2.
	Workers int

	// PollInterval is how often the fallback poller checks ListPendingExports
	// for results missed by the in-process channel (e.g. after a restart).
	// Default: 30s.
	PollInterval time.Duration

	// JobTimeout is the per-attempt context deadline. Default: 30s.
	JobTimeout time.Duration

	// MaxRetries is the number of in-process attempts before the failure is
	// recorded on the row. Default: 3.
	MaxRetries int

	// MaxFailures is how many recorded failures a result may accumulate
	// before the poller gives up on it. Default: 5.
	MaxFailures int

	// PollBatch caps how many pending results one poll enqueues. Default: 100.
	PollBatch int

	// ShareGrace is how long an expired share snapshot is kept before the
	// sweep deletes it. Default: 7 days.
	ShareGrace time.Duration

	// SweepInterval is how often expired shares are purged. Default: 1h.
	SweepInterval time.Duration
}

// DefaultRunnerConfig returns safe production defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Workers:       2,
		PollInterval:  30 * time.Second,
		JobTimeout:    30 * time.Second,
		MaxRetries:    3,
		MaxFailures:   5,
		PollBatch:     100,
		ShareGrace:    7 * 24 * time.Hour,
		SweepInterval: time.Hour,
	}
}

// jobRunner is the part of *Job the Runner depends on.
type jobRunner interface {
	Run(ctx context.Context, resultID uuid.UUID) error
}

// Runner manages a pool of worker goroutines. It accepts jobs via an
// in-process channel (fast path, used right after a result is saved) and also
// polls the database periodically for results whose export is still pending
// (recovery path).
type Runner struct {
	job    jobRunner
	store  *store.Store
	q      db.Querier
	cfg    RunnerConfig
	logger *slog.Logger

	queue chan uuid.UUID
	wg    sync.WaitGroup

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
}

// NewRunner constructs a Runner. Call Start() to begin processing.
func NewRunner(
	job *Job,
	st *store.Store,
	q db.Querier,
	cfg RunnerConfig,
	logger *slog.Logger,
) *Runner {
	return newRunner(job, st, q, cfg, logger)
}

func newRunner(job jobRunner, st *store.Store, q db.Querier, cfg RunnerConfig, logger *slog.Logger) *Runner {
	def := DefaultRunnerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.PollBatch <= 0 {
		cfg.PollBatch = def.PollBatch
	}
	if cfg.ShareGrace <= 0 {
		cfg.ShareGrace = def.ShareGrace
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}

	return &Runner{
		job:    job,
		store:  st,
		q:      q,
		cfg:    cfg,
		logger: logger,
		// Buffer = Workers*16 so Enqueue never blocks under normal load.
		queue:    make(chan uuid.UUID, cfg.Workers*16),
		inflight: make(map[uuid.UUID]struct{}),
	}
}

// Enqueue pushes a resultID onto the in-process channel. If the channel is
// full it returns an error rather than blocking the HTTP response; the poller
// picks the result up later.
func (r *Runner) Enqueue(_ context.Context, resultID uuid.UUID) error {
	if !r.tryEnqueue(resultID) {
		return errors.New("worker: queue is full, result will be picked up by poller")
	}
	r.logger.Debug("worker: enqueued result", "result_id", resultID)
	return nil
}

// tryEnqueue claims resultID and queues it. A result already queued or
// running counts as enqueued.
func (r *Runner) tryEnqueue(resultID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inflight[resultID]; busy {
		return true
	}
	select {
	case r.queue <- resultID:
		r.inflight[resultID] = struct{}{}
		return true
	default:
		return false
	}
}

func (r *Runner) release(resultID uuid.UUID) {
	r.mu.Lock()
	delete(r.inflight, resultID)
	r.mu.Unlock()
}

// Start launches the worker pool, the fallback poller and the share sweep. It
// blocks until ctx is cancelled. Call it in a goroutine from main:
//
//	go runner.Start(ctx)
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("worker: starting", "workers", r.cfg.Workers, "poll_interval", r.cfg.PollInterval)

	for i := range r.cfg.Workers {
		r.wg.Add(1)
		go r.work(ctx, i)
	}

	r.wg.Add(1)
	go r.poll(ctx)

	r.wg.Wait()
	r.logger.Info("worker: stopped")
}

// work is the inner loop for each worker goroutine.
func (r *Runner) work(ctx context.Context, id int) {
	defer r.wg.Done()
	log := r.logger.With("worker_id", id)

	for {
		select {
		case <-ctx.Done():
			return
		case resultID := <-r.queue:
			r.runWithRetry(ctx, resultID, log)
			r.release(resultID)
		}
	}
}

// poll checks ListPendingExports on PollInterval and purges expired shares on
// SweepInterval.
func (r *Runner) poll(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	sweep := time.NewTicker(r.cfg.SweepInterval)
	defer sweep.Stop()

	// Run once immediately on startup to pick up anything from before restart.
	r.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pollOnce(ctx)
		case <-sweep.C:
			r.sweepShares(ctx)
		}
	}
}

func (r *Runner) pollOnce(ctx context.Context) {
	pending, err := r.q.ListPendingExports(ctx, db.ListPendingExportsParams{
		ExportAttempts: int32(r.cfg.MaxFailures),
		Limit:          int32(r.cfg.PollBatch),
	})
	if err != nil {
		r.logger.Error("worker: poll failed", "error", err)
		return
	}
	for _, res := range pending {
		if !r.tryEnqueue(res.ID) {
			// Queue full; the next poll cycle will pick up the rest.
			return
		}
	}
	if len(pending) > 0 {
		r.logger.Debug("worker: poller enqueued results", "count", len(pending))
	}
}

func (r *Runner) sweepShares(ctx context.Context) {
	n, err := r.store.PurgeExpiredShares(ctx, r.cfg.ShareGrace)
	if err != nil {
		r.logger.Error("worker: share sweep failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("worker: purged expired shares", "count", n)
	}
}

// runWithRetry executes the job up to MaxRetries times. After exhausting
// retries it records the failure with store.MarkExportFailed; the poller
// retries the result later until MaxFailures is reached.
func (r *Runner) runWithRetry(ctx context.Context, resultID uuid.UUID, log *slog.Logger) {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		jobCtx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
		lastErr = r.job.Run(jobCtx, resultID)
		cancel()

		if lastErr == nil {
			return
		}

		log.Warn("worker: job attempt failed",
			"result_id", resultID,
			"attempt", attempt,
			"max", r.cfg.MaxRetries,
			"error", lastErr,
		)

		if attempt < r.cfg.MaxRetries {
			// Exponential back-off: 2s, 4s, 8s.
			backoff := time.Duration(1<<attempt) * time.Second
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}
	}

	log.Error("worker: export failed", "result_id", resultID, "error", lastErr)
	failCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := r.store.MarkExportFailed(failCtx, resultID, lastErr.Error()); err != nil {
		log.Error("worker: failed to record export failure", "result_id", resultID, "error", err)
	}
}
