// Package models contains shared data models used across the hyphy-mcp codebase.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/hyphy-mcp/pkg/hyphy"
)

const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job tracks one analysis submitted to Datamonkey. The start tool returns its ID;
// the client polls check_datamonkey_job_status until status is completed or failed.
type Job struct {
	ID          uuid.UUID       `db:"id"            json:"job_id"`
	Method      hyphy.Method    `db:"method"        json:"method"`
	Status      string          `db:"status"        json:"status"`
	RemoteJobID *string         `db:"remote_job_id" json:"remote_job_id,omitempty"`
	Parameters  json.RawMessage `db:"parameters"    json:"parameters,omitempty"`
	Results     json.RawMessage `db:"results"       json:"results,omitempty"`
	Error       *string         `db:"error_message" json:"error,omitempty"`
	OutputFile  *string         `db:"output_file"   json:"output_file,omitempty"`
	StartedAt   *time.Time      `db:"started_at"    json:"started_at,omitempty"`
	CompletedAt *time.Time      `db:"completed_at"  json:"completed_at,omitempty"`
	CreatedAt   time.Time       `db:"created_at"    json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"    json:"updated_at"`
}

// IsTerminal reports whether no further transitions are allowed for status.
func IsTerminal(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}

// Clone returns a deep copy so callers never alias a stored snapshot.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.RemoteJobID = cloneString(j.RemoteJobID)
	c.Error = cloneString(j.Error)
	c.OutputFile = cloneString(j.OutputFile)
	c.StartedAt = cloneTime(j.StartedAt)
	c.CompletedAt = cloneTime(j.CompletedAt)
	if j.Parameters != nil {
		c.Parameters = append(json.RawMessage(nil), j.Parameters...)
	}
	if j.Results != nil {
		c.Results = append(json.RawMessage(nil), j.Results...)
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
