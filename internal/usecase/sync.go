package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/WatchBeam/clock"

	"toggl-calsync/internal/checkpoint"
	"toggl-calsync/internal/domain"
	"toggl-calsync/internal/ports"
	"toggl-calsync/internal/retry"
)

// ErrNoUsableData is the run-level failure raised when the remote response
// decoded to something other than a record list.
var ErrNoUsableData = errors.New("time api returned no usable data")

const (
	lockName = "calsync:run"

	// coldStartWindow is the historical backfill applied when no
	// checkpoint exists or the run forces a fresh start.
	coldStartWindow = 30 * 24 * time.Hour
)

// RunResult summarizes a single reconciler leg.
type RunResult struct {
	Fetched int
	Created int
	Updated int
	Adopted int
	Skipped int
	Failed  int

	// ResumeIndex is non-zero when the budget expired mid-batch; it is the
	// index the next leg starts from.
	ResumeIndex int

	// ContinuationRequested asks the outer scheduler to enact a follow-up
	// run, fire-and-forget.
	ContinuationRequested bool

	// Watermark is the persisted watermark after the run, AbsentWatermark
	// when none exists.
	Watermark int64
}

// Reconciler drives one sync batch: compute the fetch window from the
// checkpoint, fetch records, apply matcher/writer per record, checkpoint
// progress, and hand back a continuation request when the execution budget
// runs out. Record processing is strictly sequential: the text-search based
// dedup is not safe under concurrent writers.
type Reconciler struct {
	Log        *slog.Logger
	API        ports.TimeAPI
	Checkpoint *checkpoint.Store
	Lock       ports.Locker
	Notify     ports.Notifier
	Clock      clock.Clock
	Retry      retry.Policy
	Matcher    *Matcher
	Writer     *Writer

	Overlap  time.Duration
	LockWait time.Duration
}

// Run executes a single leg under the advisory lock. Per-record failures
// are isolated and reported; failures outside the per-record boundary abort
// the run. The lock is released regardless of outcome.
func (r *Reconciler) Run(ctx context.Context, mode Mode) (res RunResult, err error) {
	res.Watermark = checkpoint.AbsentWatermark

	handle, err := r.Lock.Acquire(ctx, lockName, r.LockWait)
	if err != nil {
		err = fmt.Errorf("acquire run lock: %w", err)
		r.Notify.Notify(ctx, err, "")
		return res, err
	}
	defer func() {
		if rerr := r.Lock.Release(ctx, lockName, handle); rerr != nil {
			r.Log.Warn("failed to release run lock", slog.String("error", rerr.Error()))
		}
	}()

	deadline := r.Clock.Now().Add(mode.Budget)

	cur := checkpoint.Cursor{Watermark: checkpoint.AbsentWatermark}
	if mode.IgnoreCheckpoint {
		if err = r.Checkpoint.ClearResumeIndex(ctx); err != nil {
			err = fmt.Errorf("clear resume index: %w", err)
			r.Notify.Notify(ctx, err, "")
			return res, err
		}
	} else {
		if cur, err = r.Checkpoint.Read(ctx); err != nil {
			err = fmt.Errorf("read checkpoint: %w", err)
			r.Notify.Notify(ctx, err, "")
			return res, err
		}
	}
	res.Watermark = cur.Watermark

	now := r.Clock.Now().UTC()
	var from time.Time
	if cur.Absent() {
		from = now.Add(-coldStartWindow)
	} else {
		from = time.Unix(cur.Watermark, 0).UTC().Add(-r.Overlap)
	}
	r.Log.Info("fetching records",
		slog.String("mode", mode.Name),
		slog.Time("from", from),
		slog.Time("to", now),
		slog.Int("resume_index", cur.ResumeIndex),
	)

	var records []domain.TimeRecord
	err = r.Retry.Do(func() error {
		var ferr error
		records, ferr = r.API.ListRecords(ctx, from, now)
		return ferr
	})
	if err != nil {
		err = fmt.Errorf("fetch records: %w", err)
		r.Notify.Notify(ctx, err, "")
		return res, err
	}
	if records == nil {
		r.Log.Warn("fetch returned no usable data")
		r.Notify.Notify(ctx, ErrNoUsableData, "")
		return res, ErrNoUsableData
	}
	res.Fetched = len(records)
	if len(records) == 0 {
		r.Log.Info("no records in window")
		if err = r.Checkpoint.ClearResumeIndex(ctx); err != nil {
			return res, err
		}
		return res, nil
	}

	start := cur.ResumeIndex
	if start >= len(records) {
		r.Log.Warn("resume index beyond batch, restarting from zero",
			slog.Int("resume_index", start), slog.Int("batch", len(records)))
		start = 0
	}

	maxStop := int64(-1)
	for i := start; i < len(records); i++ {
		rec := records[i]
		r.processRecord(ctx, rec, &res)
		if rec.Completed() {
			if s := rec.Stop.Unix(); s > maxStop {
				maxStop = s
			}
		}

		// Cooperative budget check; the only cancellation point is this
		// per-record boundary.
		if r.Clock.Now().After(deadline) && i+1 < len(records) {
			if err = r.Checkpoint.WriteResumeIndex(ctx, i+1); err != nil {
				err = fmt.Errorf("persist resume index: %w", err)
				r.Notify.Notify(ctx, err, "")
				return res, err
			}
			res.ResumeIndex = i + 1
			res.ContinuationRequested = mode.AutoContinue
			r.Log.Info("budget exceeded, batch checkpointed",
				slog.String("mode", mode.Name),
				slog.Int("resume_index", res.ResumeIndex),
				slog.Bool("continuation", res.ContinuationRequested),
			)
			return res, nil
		}
	}

	// Completed: the watermark advances only now, and only forward.
	if maxStop >= 0 && maxStop+1 > cur.Watermark {
		if err = r.Checkpoint.Write(ctx, maxStop+1); err != nil {
			err = fmt.Errorf("persist watermark: %w", err)
			r.Notify.Notify(ctx, err, "")
			return res, err
		}
		res.Watermark = maxStop + 1
	}
	if err = r.Checkpoint.ClearResumeIndex(ctx); err != nil {
		return res, err
	}
	r.Log.Info("batch completed",
		slog.String("mode", mode.Name),
		slog.Int("fetched", res.Fetched),
		slog.Int("created", res.Created),
		slog.Int("updated", res.Updated),
		slog.Int("adopted", res.Adopted),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed),
		slog.Int64("watermark", res.Watermark),
	)
	return res, nil
}

// processRecord applies matcher/writer to one record. Errors stop at this
// boundary: one bad record never blocks the rest of the batch.
func (r *Reconciler) processRecord(ctx context.Context, rec domain.TimeRecord, res *RunResult) {
	if rec.Stop == nil {
		res.Skipped++
		r.Log.Debug("skipping in-progress record", slog.String("id", rec.ID))
		return
	}
	if !rec.Completed() {
		res.Skipped++
		r.Log.Warn("skipping record with unparseable timestamps", slog.String("id", rec.ID))
		return
	}

	var info domain.ProjectInfo
	if perr := r.Retry.Do(func() error {
		var gerr error
		info, gerr = r.API.GetProject(ctx, rec.WorkspaceID, rec.ProjectID)
		return gerr
	}); perr != nil {
		// The name only enriches the title; sync the record without it.
		info = domain.ProjectInfo{}
		r.Log.Debug("project lookup failed", slog.String("id", rec.ID), slog.String("error", perr.Error()))
	}

	outcome, err := r.Matcher.Match(ctx, rec, info.Name)
	if err != nil {
		res.Failed++
		r.Notify.Notify(ctx, fmt.Errorf("match record: %w", err), rec.ID)
		return
	}
	switch outcome {
	case MatchUpToDate:
	case MatchUpdated:
		res.Updated++
	case MatchAdopted:
		res.Adopted++
	case MatchMissing:
		title := domain.EventTitle(rec, info.Name)
		if cerr := r.Writer.Create(ctx, title, rec.Start, *rec.Stop); cerr != nil {
			res.Failed++
			r.Notify.Notify(ctx, fmt.Errorf("create event: %w", cerr), rec.ID)
			return
		}
		res.Created++
	}
}
