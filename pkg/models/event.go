package models

// JobEvent is published on every job status transition.
type JobEvent struct {
	JobID       string `json:"job_id"`
	Method      string `json:"method"`
	Status      string `json:"status"`
	RemoteJobID string `json:"remote_job_id,omitempty"`
	Error       string `json:"error,omitempty"`
	HappenedAt  int64  `json:"happened_at"`
}

// NewJobEvent snapshots j into an event stamped at happenedAt (unix millis).
func NewJobEvent(j *Job, happenedAt int64) JobEvent {
	ev := JobEvent{
		JobID:      j.ID.String(),
		Method:     string(j.Method),
		Status:     j.Status,
		HappenedAt: happenedAt,
	}
	if j.RemoteJobID != nil {
		ev.RemoteJobID = *j.RemoteJobID
	}
	if j.Error != nil {
		ev.Error = *j.Error
	}
	return ev
}
