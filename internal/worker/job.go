package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nyashahama/parenting-anxiety-backend/internal/db"
	"github.com/nyashahama/parenting-anxiety-backend/internal/export"
	"github.com/nyashahama/parenting-anxiety-backend/internal/store"
)

// Job holds the dependencies for the export pipeline. Each step is a
// separate statement so Run reads top to bottom.
type Job struct {
	q          db.Querier
	store      *store.Store
	publisher  export.Publisher
	categories []string
	logger     *slog.Logger
}

// NewJob constructs a Job. categories fixes the column order of exported
// rows (normally the global composite categories in config order).
func NewJob(
	q db.Querier,
	st *store.Store,
	publisher export.Publisher,
	categories []string,
	logger *slog.Logger,
) *Job {
	return &Job{
		q:          q,
		store:      st,
		publisher:  publisher,
		categories: categories,
		logger:     logger,
	}
}

// Run exports a single result:
//
//  1. Load the result row.
//  2. Decode its report and profile snapshot.
//  3. Flatten into an export.Row and publish it.
//  4. Mark the result exported.
//
// Any error is returned to the Runner, which retries up to MaxRetries times
// before calling store.MarkExportFailed.
func (j *Job) Run(ctx context.Context, resultID uuid.UUID) error {
	log := j.logger.With("result_id", resultID)
	log.Debug("job: starting")

	// ── 1. Load ───────────────────────────────────────────────────────────────
	res, err := j.q.GetResultByID(ctx, resultID)
	if err != nil {
		return fmt.Errorf("job: get result: %w", err)
	}
	if res.ExportedAt.Valid {
		log.Debug("job: already exported, skipping")
		return nil
	}

	// ── 2. Decode ─────────────────────────────────────────────────────────────
	report, err := store.DecodeReport(res)
	if err != nil {
		return fmt.Errorf("job: %w", err)
	}
	profile, err := store.DecodeProfile(res.Profile)
	if err != nil {
		return fmt.Errorf("job: %w", err)
	}

	// ── 3. Publish ────────────────────────────────────────────────────────────
	row := export.BuildRow(res.ID, res.CreatedAt, profile, report, j.categories)
	if err := j.publisher.Publish(ctx, row); err != nil {
		return fmt.Errorf("job: publish: %w", err)
	}

	// ── 4. Mark exported ──────────────────────────────────────────────────────
	// A failure here re-publishes on the next attempt; consumers key on
	// resultId.
	if _, err := j.store.MarkResultExported(ctx, res.ID); err != nil {
		return fmt.Errorf("job: %w", err)
	}

	log.Info("job: result exported", "global_label", row.GlobalLabel)
	return nil
}
