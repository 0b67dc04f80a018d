package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/hyphy-mcp/internal/report"
	"github.com/kiranshivaraju/hyphy-mcp/internal/results"
	"github.com/kiranshivaraju/hyphy-mcp/internal/store"
	"github.com/kiranshivaraju/hyphy-mcp/pkg/hyphy"
	"github.com/kiranshivaraju/hyphy-mcp/pkg/models"
)

// StatusReport is the answer to a status query.
type StatusReport struct {
	JobID          uuid.UUID       `json:"job_id"`
	Method         hyphy.Method    `json:"method"`
	Status         string          `json:"status"`
	ElapsedSeconds float64         `json:"elapsed_seconds"`
	StartTime      time.Time       `json:"start_time"`
	RemoteJobID    string          `json:"remote_job_id,omitempty"`
	Error          string          `json:"error,omitempty"`
	OutputFile     string          `json:"output_file,omitempty"`
	Summary        any             `json:"summary,omitempty"`
	Results        json.RawMessage `json:"results,omitempty"`
}

// ResultsReport is a completed job's results, plus where they were saved.
type ResultsReport struct {
	JobID      uuid.UUID       `json:"job_id"`
	Method     hyphy.Method    `json:"method"`
	OutputFile string          `json:"output_file,omitempty"`
	SavedTo    string          `json:"saved_to,omitempty"`
	Results    json.RawMessage `json:"results"`
}

// Status reports the local state of job id. It never blocks on the remote.
// Results are attached only for completed jobs and only when includeResults
// is set.
func (t *Tracker) Status(ctx context.Context, id uuid.UUID, includeResults bool) (*StatusReport, error) {
	job, err := t.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	end := t.now()
	if job.CompletedAt != nil {
		end = *job.CompletedAt
	}
	r := &StatusReport{
		JobID:          job.ID,
		Method:         job.Method,
		Status:         job.Status,
		ElapsedSeconds: end.Sub(job.CreatedAt).Seconds(),
		StartTime:      job.CreatedAt,
		RemoteJobID:    deref(job.RemoteJobID),
		OutputFile:     deref(job.OutputFile),
	}

	switch job.Status {
	case models.JobStatusFailed:
		r.Error = deref(job.Error)
		if r.Error == "" {
			r.Error = "Unknown error"
		}
	case models.JobStatusCompleted:
		summary, err := report.Summarize(job.Method, job.Results, threshold(job.Parameters))
		if err != nil {
			slog.Warn("summarizing results", "job_id", job.ID, "error", err)
		} else if summary != nil {
			r.Summary = summary
		}
		if includeResults {
			r.Results = job.Results
		}
	}
	return r, nil
}

// Results returns a completed job's results, optionally writing a copy to
// saveTo.
func (t *Tracker) Results(ctx context.Context, id uuid.UUID, saveTo string) (*ResultsReport, error) {
	job, err := t.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusCompleted {
		return nil, fmt.Errorf("%w: status is %s", ErrNotCompleted, job.Status)
	}

	r := &ResultsReport{
		JobID:      job.ID,
		Method:     job.Method,
		OutputFile: deref(job.OutputFile),
		Results:    job.Results,
	}
	if saveTo != "" {
		if err := results.Save(saveTo, job.Results); err != nil {
			return nil, err
		}
		r.SavedTo = saveTo
	}
	return r, nil
}

// List returns jobs newest first.
func (t *Tracker) List(ctx context.Context, filter store.JobFilter) ([]*models.Job, error) {
	return t.store.ListJobs(ctx, filter)
}

// threshold is the job's configured pvalue, or the default.
func threshold(params json.RawMessage) float64 {
	var p struct {
		PValue *float64 `json:"pvalue"`
	}
	if len(params) == 0 || json.Unmarshal(params, &p) != nil || p.PValue == nil {
		return report.DefaultThreshold
	}
	return *p.PValue
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
