package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/hyphy-mcp/pkg/hyphy"
	"github.com/kiranshivaraju/hyphy-mcp/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid job status transition")
var ErrRemoteJobIDSet = errors.New("remote job id already set")

// Store is the job registry. Every job record goes through here.
type Store interface {
	Ping(ctx context.Context) error
	Close()

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, error)
	UpdateJob(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error
}

// JobFilter narrows ListJobs. Zero values match everything; Limit 0 means no limit.
type JobFilter struct {
	Method hyphy.Method
	Status string
	Limit  int
}

func (f JobFilter) matches(j *models.Job) bool {
	if f.Method != "" && j.Method != f.Method {
		return false
	}
	if f.Status != "" && j.Status != f.Status {
		return false
	}
	return true
}

type jobUpdateParams struct {
	RemoteJobID  *string
	Results      json.RawMessage
	ErrorMessage *string
	OutputFile   *string
}

type JobUpdateOption func(*jobUpdateParams)

func WithRemoteJobID(id string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.RemoteJobID = &id
	}
}

func WithResults(results json.RawMessage) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.Results = results
	}
}

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = &msg
	}
}

func WithOutputFile(path string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.OutputFile = &path
	}
}

var validTransitions = map[string][]string{
	models.JobStatusQueued:  {models.JobStatusRunning, models.JobStatusFailed},
	models.JobStatusRunning: {models.JobStatusRunning, models.JobStatusCompleted, models.JobStatusFailed},
}

// applyUpdate validates a transition against cur and returns the next
// snapshot. cur is never modified.
func applyUpdate(cur *models.Job, status string, opts []JobUpdateOption, now time.Time) (*models.Job, error) {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	valid := false
	for _, a := range validTransitions[cur.Status] {
		if a == status {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, status)
	}
	if params.Results != nil && status != models.JobStatusCompleted {
		return nil, fmt.Errorf("%w: results are only recorded on completion", ErrInvalidTransition)
	}
	if status == models.JobStatusCompleted && params.Results == nil {
		return nil, fmt.Errorf("%w: completion requires results", ErrInvalidTransition)
	}
	if params.ErrorMessage != nil && status != models.JobStatusFailed {
		return nil, fmt.Errorf("%w: error messages are only recorded on failure", ErrInvalidTransition)
	}
	if params.RemoteJobID != nil && cur.RemoteJobID != nil && *cur.RemoteJobID != *params.RemoteJobID {
		return nil, fmt.Errorf("%w: %s", ErrRemoteJobIDSet, *cur.RemoteJobID)
	}

	next := cur.Clone()
	next.Status = status
	next.UpdatedAt = now
	if status == models.JobStatusRunning && next.StartedAt == nil {
		next.StartedAt = &now
	}
	if models.IsTerminal(status) {
		next.CompletedAt = &now
	}
	if params.RemoteJobID != nil {
		next.RemoteJobID = params.RemoteJobID
	}
	if params.OutputFile != nil {
		next.OutputFile = params.OutputFile
	}
	if status == models.JobStatusCompleted {
		next.Results = append(json.RawMessage(nil), params.Results...)
	}
	if status == models.JobStatusFailed {
		msg := "Unknown error"
		if params.ErrorMessage != nil && *params.ErrorMessage != "" {
			msg = *params.ErrorMessage
		}
		next.Error = &msg
	}
	return next, nil
}

// prepareNew checks a record handed to CreateJob and fills timestamps.
func prepareNew(job *models.Job, now time.Time) (*models.Job, error) {
	if job.ID == uuid.Nil {
		return nil, fmt.Errorf("create job: missing id")
	}
	if job.Status != models.JobStatusQueued {
		return nil, fmt.Errorf("%w: new jobs must be %s, got %q", ErrInvalidTransition, models.JobStatusQueued, job.Status)
	}
	c := job.Clone()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	if c.Parameters == nil {
		c.Parameters = json.RawMessage(`{}`)
	}
	return c, nil
}
