// Package datamonkey is the HTTP client for the Datamonkey HyPhy API.
package datamonkey

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/kiranshivaraju/hyphy-mcp/pkg/hyphy"
	"github.com/kiranshivaraju/hyphy-mcp/pkg/models"
)

// Sentinel errors for Datamonkey client failures.
var (
	ErrUnreachable     = errors.New("datamonkey unreachable")
	ErrFileNotFound    = errors.New("file not found")
	ErrInvalidResponse = errors.New("invalid datamonkey response")
	ErrRemote          = errors.New("datamonkey error")
	ErrTimeout         = errors.New("datamonkey timeout")
)

// Remote job states reported by GET /jobs/{id}.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
	StatusFailed    = "failed"
)

// maxErrorBody caps how much of a non-2xx body is kept on a RemoteError.
const maxErrorBody = 4096

// RemoteError is a non-2xx answer from Datamonkey. It matches ErrRemote.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", ErrRemote, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrRemote, e.StatusCode, e.Body)
}

func (e *RemoteError) Unwrap() error { return ErrRemote }

// Health is the body of GET /health.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// JobState is the body of GET /jobs/{id}.
type JobState struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Failed reports whether the remote gave up on the job.
func (s JobState) Failed() bool {
	return s.Status == StatusError || s.Status == StatusFailed
}

// Client is the interface for talking to Datamonkey.
type Client interface {
	Health(ctx context.Context) (*Health, error)
	Upload(ctx context.Context, path string) (*models.Dataset, error)
	StartJob(ctx context.Context, method hyphy.Method, payload map[string]any) (string, error)
	JobStatus(ctx context.Context, remoteJobID string) (*JobState, error)
	JobResults(ctx context.Context, remoteJobID string) (json.RawMessage, error)
}

// HTTPClient implements Client using Datamonkey's REST API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client rooted at baseURL, e.g. http://localhost:9300/api/v1.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the API root the client was built with.
func (c *HTTPClient) BaseURL() string { return c.baseURL }

func (c *HTTPClient) Health(ctx context.Context) (*Health, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	var h Health
	if err := c.do(httpReq, &h); err != nil {
		return nil, err
	}
	if h.Version == "" {
		h.Version = "Unknown"
	}
	return &h, nil
}

// Upload sends a local file to POST /datasets. Missing or non-regular paths
// fail with ErrFileNotFound before any request is made.
func (c *HTTPClient) Upload(ctx context.Context, path string) (*models.Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrFileNotFound, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/datasets", &body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var ack map[string]any
	if err := c.do(httpReq, &ack); err != nil {
		return nil, err
	}
	handle, ok := scalarString(ack["id"])
	if !ok {
		return nil, fmt.Errorf("%w: upload acknowledgement has no id", ErrInvalidResponse)
	}

	return &models.Dataset{
		Handle:   handle,
		FileName: name,
		FileSize: info.Size(),
	}, nil
}

// StartJob posts payload to /methods/{slug}-start and returns the remote job id.
func (c *HTTPClient) StartJob(ctx context.Context, method hyphy.Method, payload map[string]any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}

	u := fmt.Sprintf("%s/methods/%s-start", c.baseURL, method.Slug())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var ack map[string]any
	if err := c.do(httpReq, &ack); err != nil {
		return "", err
	}
	id, ok := scalarString(ack["job_id"])
	if !ok {
		return "", fmt.Errorf("%w: %s start response has no job_id", ErrInvalidResponse, method)
	}
	return id, nil
}

func (c *HTTPClient) JobStatus(ctx context.Context, remoteJobID string) (*JobState, error) {
	u := fmt.Sprintf("%s/jobs/%s", c.baseURL, url.PathEscape(remoteJobID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	var st JobState
	if err := c.do(httpReq, &st); err != nil {
		return nil, err
	}
	if st.Status == "" {
		return nil, fmt.Errorf("%w: job %s status missing", ErrInvalidResponse, remoteJobID)
	}
	return &st, nil
}

func (c *HTTPClient) JobResults(ctx context.Context, remoteJobID string) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/jobs/%s/results", c.baseURL, url.PathEscape(remoteJobID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	var raw json.RawMessage
	if err := c.do(httpReq, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// do executes req and decodes a 2xx JSON body into out.
func (c *HTTPClient) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &RemoteError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// scalarString accepts the string or numeric ids Datamonkey has been seen to return.
func scalarString(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, id != ""
	case json.Number:
		return id.String(), true
	}
	return "", false
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
