package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/hyphy-mcp/internal/datamonkey"
	"github.com/kiranshivaraju/hyphy-mcp/internal/results"
	"github.com/kiranshivaraju/hyphy-mcp/internal/store"
	"github.com/kiranshivaraju/hyphy-mcp/pkg/hyphy"
	"github.com/kiranshivaraju/hyphy-mcp/pkg/models"
)

// run drives one job from queued to a terminal state. It recovers from
// panics and always leaves the job completed or failed.
func (t *Tracker) run(ctx context.Context, id uuid.UUID, info hyphy.MethodInfo, sub Submission) {
	defer t.wg.Done()
	defer t.release(id)

	log := slog.With("job_id", id, "method", info.Name)

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in job worker", "error", r)
			t.finish(id, models.JobStatusFailed, store.WithErrorMessage(fmt.Sprintf("panic: %v", r)))
		}
	}()

	if ctx.Err() != nil {
		t.fail(ctx, log, id, ctx.Err())
		return
	}
	if !t.advance(ctx, log, id) {
		return
	}

	var alignment, tree string
	if sub.AlignmentPath != "" && info.Alignment != hyphy.Unused {
		ds, err := t.client.Upload(ctx, sub.AlignmentPath)
		if err != nil {
			t.fail(ctx, log, id, fmt.Errorf("uploading alignment: %w", err))
			return
		}
		alignment = ds.Handle
		log.Debug("alignment uploaded", "handle", ds.Handle, "file_size", ds.FileSize)
	}
	if sub.TreePath != "" && info.Tree != hyphy.Unused {
		ds, err := t.client.Upload(ctx, sub.TreePath)
		if err != nil {
			t.fail(ctx, log, id, fmt.Errorf("uploading tree: %w", err))
			return
		}
		tree = ds.Handle
		log.Debug("tree uploaded", "handle", ds.Handle, "file_size", ds.FileSize)
	}

	payload, err := hyphy.BuildPayload(alignment, tree, sub.Params)
	if err != nil {
		t.fail(ctx, log, id, err)
		return
	}
	remoteID, err := t.client.StartJob(ctx, info.Name, payload)
	if err != nil {
		t.fail(ctx, log, id, fmt.Errorf("starting %s job: %w", info.Name, err))
		return
	}

	outputFile := t.writer.PathFor(info.Name, remoteID)
	if !t.advance(ctx, log, id, store.WithRemoteJobID(remoteID), store.WithOutputFile(outputFile)) {
		return
	}
	log = log.With("remote_job_id", remoteID)
	log.Info("remote job started")

	t.poll(ctx, log, id, info.Name, remoteID, outputFile)
}

var errProgressLost = errors.New("could not record job progress")

// advance records a running-state update. If the write is lost, typically
// because ctx was cancelled under it, the job is failed so it never stays
// running without a worker.
func (t *Tracker) advance(ctx context.Context, log *slog.Logger, id uuid.UUID, opts ...store.JobUpdateOption) bool {
	if t.transition(ctx, id, models.JobStatusRunning, opts...) {
		return true
	}
	t.fail(ctx, log, id, errProgressLost)
	return false
}

// poll waits for the remote job to finish and records the outcome.
func (t *Tracker) poll(ctx context.Context, log *slog.Logger, id uuid.UUID, method hyphy.Method, remoteID, outputFile string) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			t.fail(ctx, log, id, ctx.Err())
			return
		case <-timer.C:
		}

		st, err := t.client.JobStatus(ctx, remoteID)
		if err != nil {
			t.fail(ctx, log, id, fmt.Errorf("checking job status: %w", err))
			return
		}

		switch {
		case st.Status == datamonkey.StatusCompleted:
			raw, err := t.client.JobResults(ctx, remoteID)
			if err != nil {
				t.fail(ctx, log, id, fmt.Errorf("fetching results: %w", err))
				return
			}
			if err := results.Save(outputFile, raw); err != nil {
				log.Error("saving results file", "output_file", outputFile, "error", err)
			}
			if t.finish(id, models.JobStatusCompleted, store.WithResults(raw)) {
				log.Info("job completed", "attempts", attempt)
			}
			return
		case st.Failed():
			msg := st.ErrorMessage
			if msg == "" {
				msg = "Unknown error"
			}
			t.fail(ctx, log, id, fmt.Errorf("Datamonkey %s analysis failed: %s", method, msg))
			return
		}

		if t.opts.MaxPollAttempts > 0 && attempt >= t.opts.MaxPollAttempts {
			t.fail(ctx, log, id, errStatusTimeout)
			return
		}
		log.Debug("remote job pending", "remote_status", st.Status, "attempt", attempt)
		timer.Reset(t.opts.PollInterval)
	}
}

// fail records err as the job's failure. When the worker's context has been
// cancelled, the cancellation cause replaces whatever error it produced.
func (t *Tracker) fail(ctx context.Context, log *slog.Logger, id uuid.UUID, err error) {
	if ctx.Err() != nil {
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			err = cause
		}
	}
	log.Warn("job failed", "error", err)
	t.finish(id, models.JobStatusFailed, store.WithErrorMessage(err.Error()))
}
