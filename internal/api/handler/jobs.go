package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/hyphy-mcp/internal/api/response"
	"github.com/kiranshivaraju/hyphy-mcp/internal/jobs"
	"github.com/kiranshivaraju/hyphy-mcp/internal/store"
	"github.com/kiranshivaraju/hyphy-mcp/pkg/hyphy"
	"github.com/kiranshivaraju/hyphy-mcp/pkg/models"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// JobService is the part of jobs.Tracker the handlers use.
type JobService interface {
	Submit(ctx context.Context, sub jobs.Submission) (*models.Job, error)
	Status(ctx context.Context, id uuid.UUID, includeResults bool) (*jobs.StatusReport, error)
	List(ctx context.Context, filter store.JobFilter) ([]*models.Job, error)
	Cancel(ctx context.Context, id uuid.UUID) error
}

// NewSubmitJobHandler returns an http.HandlerFunc for POST /api/v1/jobs.
func NewSubmitJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method        string          `json:"method"`
			AlignmentFile string          `json:"alignment_file"`
			TreeFile      string          `json:"tree_file"`
			Parameters    json.RawMessage `json:"parameters"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Method == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "method is required", nil)
			return
		}

		method, err := hyphy.ParseMethod(req.Method)
		if err != nil {
			writeJobError(w, err)
			return
		}
		params, err := hyphy.Decode(method, req.Parameters)
		if err != nil {
			writeJobError(w, err)
			return
		}

		job, err := svc.Submit(r.Context(), jobs.Submission{
			AlignmentPath: req.AlignmentFile,
			TreePath:      req.TreeFile,
			Params:        params,
		})
		if err != nil {
			writeJobError(w, err)
			return
		}
		response.Accepted(w, map[string]any{
			"job_id": job.ID,
			"method": job.Method,
			"status": job.Status,
		})
	}
}

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
// ?include_results=true attaches a completed job's results.
func NewGetJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseJobID(w, r)
		if !ok {
			return
		}
		include, _ := strconv.ParseBool(r.URL.Query().Get("include_results"))

		rep, err := svc.Status(r.Context(), id, include)
		if err != nil {
			writeJobError(w, err)
			return
		}
		response.JSON(w, rep)
	}
}

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs.
func NewListJobsHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := store.JobFilter{Status: q.Get("status"), Limit: defaultListLimit}

		if s := q.Get("method"); s != "" {
			m, err := hyphy.ParseMethod(s)
			if err != nil {
				writeJobError(w, err)
				return
			}
			filter.Method = m
		}
		if s := q.Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > maxListLimit {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be between 1 and 200", nil)
				return
			}
			filter.Limit = n
		}

		list, err := svc.List(r.Context(), filter)
		if err != nil {
			writeJobError(w, err)
			return
		}
		for _, j := range list {
			j.Results = nil
		}
		response.Collection(w, list, response.ListMeta{Limit: filter.Limit, Count: len(list)})
	}
}

// NewCancelJobHandler returns an http.HandlerFunc for
// POST /api/v1/jobs/{jobID}/cancel.
func NewCancelJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseJobID(w, r)
		if !ok {
			return
		}
		if err := svc.Cancel(r.Context(), id); err != nil {
			writeJobError(w, err)
			return
		}
		response.Accepted(w, map[string]any{"job_id": id, "message": "Cancellation requested"})
	}
}

func parseJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hyphy.ErrInvalidParams):
		response.Error(w, http.StatusBadRequest, "INVALID_PARAMETERS", err.Error(), nil)
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
	case errors.Is(err, jobs.ErrJobFinished):
		response.Error(w, http.StatusConflict, "JOB_FINISHED", err.Error(), nil)
	case errors.Is(err, jobs.ErrShuttingDown):
		response.Error(w, http.StatusServiceUnavailable, "SHUTTING_DOWN", "Server is shutting down", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}
