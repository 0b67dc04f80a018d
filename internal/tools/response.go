package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/hyphy-mcp/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	statusAccepted = "accepted"
	statusSuccess  = "success"
	statusError    = "error"
)

type errorBody struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type acceptedBody struct {
	Status  string `json:"status"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// text renders v as the tool's JSON text result.
func text(v any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		slog.Error("encoding tool result", "error", err)
		b, _ = json.Marshal(errorBody{Status: statusError, Error: "failed to encode result"})
	}
	return mcp.NewToolResultText(string(b))
}

// success merges fields into a {"status": "success"} object.
func success(fields map[string]any) *mcp.CallToolResult {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["status"] = statusSuccess
	return text(out)
}

func failure(err error) *mcp.CallToolResult {
	msg := err.Error()
	if errors.Is(err, store.ErrNotFound) {
		msg = "job not found"
	}
	return text(errorBody{Status: statusError, Error: msg})
}

func failuref(format string, args ...any) *mcp.CallToolResult {
	return failure(fmt.Errorf(format, args...))
}
