// Package jobs runs Datamonkey analyses in the background and answers status
// queries from the local job registry.
//
// Every submitted job gets one worker goroutine that owns its record: it
// uploads the inputs, starts the remote job, then polls the remote until the
// job reaches a terminal state. Status queries never talk to Datamonkey.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/hyphy-mcp/internal/cache"
	"github.com/kiranshivaraju/hyphy-mcp/internal/datamonkey"
	"github.com/kiranshivaraju/hyphy-mcp/internal/events"
	"github.com/kiranshivaraju/hyphy-mcp/internal/results"
	"github.com/kiranshivaraju/hyphy-mcp/internal/store"
	"github.com/kiranshivaraju/hyphy-mcp/pkg/hyphy"
	"github.com/kiranshivaraju/hyphy-mcp/pkg/models"
)

var (
	ErrNotCompleted  = errors.New("job has not completed")
	ErrJobFinished   = errors.New("job already finished")
	ErrCancelled     = errors.New("job cancelled")
	ErrShuttingDown  = errors.New("server shutting down")
	ErrInterrupted   = errors.New("job interrupted by server restart")
	errStatusTimeout = fmt.Errorf("%w: job did not finish within the polling limit", datamonkey.ErrTimeout)
)

// recordTimeout bounds registry writes made after a worker's context is gone.
const recordTimeout = 10 * time.Second

// Options tunes worker polling and status mirroring.
type Options struct {
	PollInterval    time.Duration
	MaxPollAttempts int // 0 polls until the remote job finishes
	StatusTTL       time.Duration
}

// Submission is one analysis request. The method is carried by Params.
type Submission struct {
	AlignmentPath string
	TreePath      string
	Params        hyphy.Params
}

// Tracker owns the job workers.
type Tracker struct {
	client datamonkey.Client
	store  store.Store
	cache  cache.Cache
	events events.Publisher
	writer *results.Writer
	opts   Options
	now    func() time.Time

	base context.Context
	stop context.CancelCauseFunc

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelCauseFunc
	closed  bool
	wg      sync.WaitGroup
}

// NewTracker creates a Tracker. Workers run until their job finishes, the job
// is cancelled, or Shutdown is called.
func NewTracker(client datamonkey.Client, st store.Store, ca cache.Cache, pub events.Publisher, w *results.Writer, opts Options) *Tracker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	if opts.StatusTTL <= 0 {
		opts.StatusTTL = 30 * time.Minute
	}
	base, stop := context.WithCancelCause(context.Background())
	return &Tracker{
		client:  client,
		store:   st,
		cache:   ca,
		events:  pub,
		writer:  w,
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
		base:    base,
		stop:    stop,
		cancels: make(map[uuid.UUID]context.CancelCauseFunc),
	}
}

// Submit validates sub, records a queued job and starts its worker. It
// returns as soon as the worker is spawned.
func (t *Tracker) Submit(ctx context.Context, sub Submission) (*models.Job, error) {
	if sub.Params == nil {
		return nil, fmt.Errorf("%w: parameters are required", hyphy.ErrInvalidParams)
	}
	info, ok := hyphy.Lookup(sub.Params.Method())
	if !ok {
		return nil, fmt.Errorf("%w: unknown method %q", hyphy.ErrInvalidParams, sub.Params.Method())
	}
	if err := sub.Params.Validate(); err != nil {
		return nil, err
	}
	if info.Alignment == hyphy.Required && sub.AlignmentPath == "" {
		return nil, fmt.Errorf("%w: %s requires alignment_file", hyphy.ErrInvalidParams, info.Name)
	}
	if info.Tree == hyphy.Required && sub.TreePath == "" {
		return nil, fmt.Errorf("%w: %s requires tree_file", hyphy.ErrInvalidParams, info.Name)
	}

	params, err := parametersJSON(sub)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, ErrShuttingDown
	}

	now := t.now()
	job := &models.Job{
		ID:         uuid.New(),
		Method:     info.Name,
		Status:     models.JobStatusQueued,
		Parameters: params,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := t.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	t.announce(ctx, job)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.finish(job.ID, models.JobStatusFailed, store.WithErrorMessage(ErrShuttingDown.Error()))
		return nil, ErrShuttingDown
	}
	wctx, cancel := context.WithCancelCause(t.base)
	t.cancels[job.ID] = cancel
	t.wg.Add(1)
	t.mu.Unlock()

	go t.run(wctx, job.ID, info, sub)

	slog.Info("job submitted", "job_id", job.ID, "method", job.Method)
	return job.Clone(), nil
}

// Cancel stops a job's worker. The worker records the job as failed. Jobs
// left behind by an earlier process have no worker and are failed directly.
func (t *Tracker) Cancel(ctx context.Context, id uuid.UUID) error {
	job, err := t.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if models.IsTerminal(job.Status) {
		return fmt.Errorf("%w: %s", ErrJobFinished, job.Status)
	}

	t.mu.Lock()
	cancel, owned := t.cancels[id]
	t.mu.Unlock()

	if owned {
		cancel(ErrCancelled)
		slog.Info("job cancellation requested", "job_id", id)
		return nil
	}
	t.finish(id, models.JobStatusFailed, store.WithErrorMessage(ErrCancelled.Error()))
	return nil
}

// FailOrphans marks jobs that no worker in this process owns as failed. It is
// meant to run once at startup against a persistent registry.
func (t *Tracker) FailOrphans(ctx context.Context) (int, error) {
	n := 0
	for _, status := range []string{models.JobStatusQueued, models.JobStatusRunning} {
		jobs, err := t.store.ListJobs(ctx, store.JobFilter{Status: status})
		if err != nil {
			return n, err
		}
		for _, j := range jobs {
			t.mu.Lock()
			_, owned := t.cancels[j.ID]
			t.mu.Unlock()
			if owned {
				continue
			}
			if t.finish(j.ID, models.JobStatusFailed, store.WithErrorMessage(ErrInterrupted.Error())) {
				n++
			}
		}
	}
	return n, nil
}

// Shutdown cancels every worker and waits for them to record their final
// state, or for ctx to expire.
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.stop(ErrShuttingDown)

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for job workers: %w", ctx.Err())
	}
}

// Active returns the number of running workers.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.cancels)
}

// transition applies one update to the registry and mirrors it. It reports
// whether the update was accepted.
func (t *Tracker) transition(ctx context.Context, id uuid.UUID, status string, opts ...store.JobUpdateOption) bool {
	if err := t.store.UpdateJob(ctx, id, status, opts...); err != nil {
		slog.Error("job update rejected", "job_id", id, "status", status, "error", err)
		return false
	}
	job, err := t.store.GetJob(ctx, id)
	if err != nil {
		slog.Error("reloading job", "job_id", id, "error", err)
		return true
	}
	t.announce(ctx, job)
	return true
}

// finish records a terminal (or final) state with a context of its own, so
// it still lands after the worker's context is cancelled.
func (t *Tracker) finish(id uuid.UUID, status string, opts ...store.JobUpdateOption) bool {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	return t.transition(ctx, id, status, opts...)
}

// announce mirrors job's status into the cache and publishes an event.
// Neither is allowed to fail the job.
func (t *Tracker) announce(ctx context.Context, job *models.Job) {
	if err := t.cache.SetJobStatus(ctx, job.ID, job.Status, t.opts.StatusTTL); err != nil {
		slog.Warn("mirroring job status", "job_id", job.ID, "error", err)
	}
	if err := t.events.Publish(ctx, models.NewJobEvent(job, t.now().UnixMilli())); err != nil {
		slog.Warn("publishing job event", "job_id", job.ID, "error", err)
	}
}

func (t *Tracker) release(id uuid.UUID) {
	t.mu.Lock()
	if cancel, ok := t.cancels[id]; ok {
		cancel(nil)
		delete(t.cancels, id)
	}
	t.mu.Unlock()
}

func parametersJSON(sub Submission) (json.RawMessage, error) {
	m := sub.Params.Fields()
	if sub.AlignmentPath != "" {
		m["alignment_file"] = sub.AlignmentPath
	}
	if sub.TreePath != "" {
		m["tree_file"] = sub.TreePath
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding parameters: %w", err)
	}
	return b, nil
}
