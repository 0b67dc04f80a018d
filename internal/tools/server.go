// Package tools exposes the Datamonkey job tracker as MCP tools.
//
// Every handler answers with a JSON text result whose "status" is accepted,
// success, error or, for status checks, the job's own status. Handlers never
// return Go errors to the MCP runtime.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/hyphy-mcp/internal/cache"
	"github.com/kiranshivaraju/hyphy-mcp/internal/datamonkey"
	"github.com/kiranshivaraju/hyphy-mcp/internal/jobs"
	"github.com/kiranshivaraju/hyphy-mcp/internal/store"
	"github.com/kiranshivaraju/hyphy-mcp/pkg/hyphy"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	serverName       = "hyphy-mcp"
	defaultListLimit = 20
	healthTTL        = 30 * time.Second
)

// Handlers holds what the tool handlers need.
type Handlers struct {
	Tracker *jobs.Tracker
	Client  datamonkey.Client
	Cache   cache.Cache
	BaseURL string
}

// NewServer builds an MCP server with every tool registered.
func NewServer(h *Handlers, version string) *server.MCPServer {
	s := server.NewMCPServer(serverName, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	h.Register(s)
	return s
}

// Register adds all tools to s.
func (h *Handlers) Register(s *server.MCPServer) {
	for _, info := range hyphy.Methods() {
		s.AddTool(startTool(info), h.StartJob(info))
	}

	s.AddTool(mcp.NewTool("check_datamonkey_job_status",
		mcp.WithDescription("Check the status of a job started with one of the start_*_job tools. Completed FEL and MEME jobs include a site summary."),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Job ID returned when the job was started")),
		mcp.WithBoolean("include_results", mcp.Description("Include the full results of a completed job")),
	), h.CheckStatus)

	s.AddTool(mcp.NewTool("fetch_datamonkey_job_results",
		mcp.WithDescription("Fetch the results of a completed job."),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Job ID returned when the job was started")),
		mcp.WithString("save_to", mcp.Description("Optional path to save the results to as JSON")),
	), h.FetchResults)

	s.AddTool(mcp.NewTool("upload_file_to_datamonkey",
		mcp.WithDescription("Upload a local file to Datamonkey and return its dataset handle."),
		mcp.WithString("file_path", mcp.Required(), mcp.Description("Path to the file to upload")),
	), h.UploadFile)

	s.AddTool(mcp.NewTool("check_datamonkey_api",
		mcp.WithDescription("Check that the Datamonkey API is reachable and report its version."),
	), h.CheckAPI)

	s.AddTool(mcp.NewTool("get_available_methods",
		mcp.WithDescription("List the HyPhy methods available through Datamonkey."),
	), h.AvailableMethods)

	s.AddTool(mcp.NewTool("list_datamonkey_jobs",
		mcp.WithDescription("List tracked jobs, newest first."),
		mcp.WithString("method", mcp.Description("Only jobs of this method")),
		mcp.WithString("status", mcp.Description("Only jobs in this status"), mcp.Enum("queued", "running", "completed", "failed")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of jobs to return (default 20)")),
	), h.ListJobs)

	s.AddTool(mcp.NewTool("cancel_datamonkey_job",
		mcp.WithDescription("Cancel a queued or running job. The remote job is not stopped; it is no longer tracked."),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Job ID returned when the job was started")),
	), h.CancelJob)
}

// StartJob returns the handler for start_<method>_job.
func (h *Handlers) StartJob(info hyphy.MethodInfo) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		sub := jobs.Submission{
			AlignmentPath: stringArg(args, "alignment_file"),
			TreePath:      stringArg(args, "tree_file"),
		}

		rest := make(map[string]any, len(args))
		for k, v := range args {
			if k != "alignment_file" && k != "tree_file" && v != nil {
				rest[k] = v
			}
		}
		raw, err := json.Marshal(rest)
		if err != nil {
			return failure(err), nil
		}
		sub.Params, err = hyphy.Decode(info.Name, raw)
		if err != nil {
			return failure(err), nil
		}

		job, err := h.Tracker.Submit(ctx, sub)
		if err != nil {
			slog.Warn("job submission rejected", "method", info.Name, "error", err)
			return failure(err), nil
		}
		return text(acceptedBody{
			Status:  statusAccepted,
			JobID:   job.ID.String(),
			Message: fmt.Sprintf("%s job started. Check progress with check_datamonkey_job_status.", info.Name),
		}), nil
	}
}

func (h *Handlers) CheckStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id, err := jobID(args)
	if err != nil {
		return failure(err), nil
	}
	include, _ := args["include_results"].(bool)

	rep, err := h.Tracker.Status(ctx, id, include)
	if err != nil {
		return failure(err), nil
	}
	return text(rep), nil
}

func (h *Handlers) FetchResults(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id, err := jobID(args)
	if err != nil {
		return failure(err), nil
	}

	rep, err := h.Tracker.Results(ctx, id, stringArg(args, "save_to"))
	if err != nil {
		return failure(err), nil
	}
	fields := map[string]any{
		"job_id":  rep.JobID,
		"method":  rep.Method,
		"results": rep.Results,
	}
	if rep.OutputFile != "" {
		fields["output_file"] = rep.OutputFile
	}
	if rep.SavedTo != "" {
		fields["saved_to"] = rep.SavedTo
	}
	return success(fields), nil
}

func (h *Handlers) UploadFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := stringArg(req.GetArguments(), "file_path")
	if path == "" {
		return failuref("file_path is required"), nil
	}
	ds, err := h.Client.Upload(ctx, path)
	if err != nil {
		return failure(err), nil
	}
	return success(map[string]any{
		"file_handle": ds.Handle,
		"file_name":   ds.FileName,
		"file_size":   ds.FileSize,
	}), nil
}

func (h *Handlers) CheckAPI(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := cache.HealthKey(h.BaseURL)
	if b, ok, err := h.Cache.Get(ctx, key); err == nil && ok {
		var health datamonkey.Health
		if json.Unmarshal(b, &health) == nil {
			return healthResult(h.BaseURL, &health), nil
		}
	}

	health, err := h.Client.Health(ctx)
	if err != nil {
		return failuref("cannot connect to Datamonkey API at %s: %w", h.BaseURL, err), nil
	}
	if b, err := json.Marshal(health); err == nil {
		if err := h.Cache.Set(ctx, key, b, healthTTL); err != nil {
			slog.Warn("caching health answer", "error", err)
		}
	}
	return healthResult(h.BaseURL, health), nil
}

func healthResult(url string, health *datamonkey.Health) *mcp.CallToolResult {
	return success(map[string]any{
		"message":    "Datamonkey API is available",
		"url":        url,
		"api_status": health.Status,
		"version":    health.Version,
	})
}

type methodView struct {
	Name        hyphy.Method `json:"name"`
	FullName    string       `json:"full_name"`
	Description string       `json:"description"`
	Tool        string       `json:"tool"`
	Alignment   string       `json:"alignment"`
	Tree        string       `json:"tree"`
}

func (h *Handlers) AvailableMethods(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	methods := hyphy.Methods()
	views := make([]methodView, 0, len(methods))
	for _, m := range methods {
		views = append(views, methodView{
			Name:        m.Name,
			FullName:    m.FullName,
			Description: m.Description,
			Tool:        "start_" + m.Name.ToolName() + "_job",
			Alignment:   m.Alignment.String(),
			Tree:        m.Tree.String(),
		})
	}
	return success(map[string]any{"methods": views}), nil
}

type jobView struct {
	JobID       uuid.UUID    `json:"job_id"`
	Method      hyphy.Method `json:"method"`
	Status      string       `json:"status"`
	RemoteJobID *string      `json:"remote_job_id,omitempty"`
	Error       *string      `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"start_time"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

func (h *Handlers) ListJobs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	filter := store.JobFilter{Status: stringArg(args, "status"), Limit: defaultListLimit}

	if s := stringArg(args, "method"); s != "" {
		m, err := hyphy.ParseMethod(s)
		if err != nil {
			return failure(err), nil
		}
		filter.Method = m
	}
	if v, ok := args["limit"].(float64); ok {
		if v < 1 {
			return failuref("limit must be at least 1"), nil
		}
		filter.Limit = int(v)
	}

	list, err := h.Tracker.List(ctx, filter)
	if err != nil {
		return failure(err), nil
	}
	views := make([]jobView, 0, len(list))
	for _, j := range list {
		views = append(views, jobView{
			JobID:       j.ID,
			Method:      j.Method,
			Status:      j.Status,
			RemoteJobID: j.RemoteJobID,
			Error:       j.Error,
			CreatedAt:   j.CreatedAt,
			CompletedAt: j.CompletedAt,
		})
	}
	return success(map[string]any{"jobs": views, "count": len(views)}), nil
}

func (h *Handlers) CancelJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := jobID(req.GetArguments())
	if err != nil {
		return failure(err), nil
	}
	if err := h.Tracker.Cancel(ctx, id); err != nil {
		return failure(err), nil
	}
	return success(map[string]any{
		"job_id":  id,
		"message": "Cancellation requested",
	}), nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func jobID(args map[string]any) (uuid.UUID, error) {
	raw := stringArg(args, "job_id")
	if raw == "" {
		return uuid.Nil, fmt.Errorf("job_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid job_id %q", raw)
	}
	return id, nil
}
