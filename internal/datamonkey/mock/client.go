package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kiranshivaraju/hyphy-mcp/internal/datamonkey"
	"github.com/kiranshivaraju/hyphy-mcp/pkg/hyphy"
	"github.com/kiranshivaraju/hyphy-mcp/pkg/models"
)

// MockClient satisfies datamonkey.Client for testing.
type MockClient struct {
	HealthFunc     func(ctx context.Context) (*datamonkey.Health, error)
	UploadFunc     func(ctx context.Context, path string) (*models.Dataset, error)
	StartJobFunc   func(ctx context.Context, method hyphy.Method, payload map[string]any) (string, error)
	JobStatusFunc  func(ctx context.Context, remoteJobID string) (*datamonkey.JobState, error)
	JobResultsFunc func(ctx context.Context, remoteJobID string) (json.RawMessage, error)

	mu       sync.Mutex
	calls    []string
	payloads []map[string]any
}

func (m *MockClient) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

// Calls returns the method names invoked so far, in order.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Payloads returns every StartJob payload received.
func (m *MockClient) Payloads() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.payloads...)
}

func (m *MockClient) Health(ctx context.Context) (*datamonkey.Health, error) {
	m.record("Health")
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return &datamonkey.Health{Status: "ok", Version: "mock"}, nil
}

func (m *MockClient) Upload(ctx context.Context, path string) (*models.Dataset, error) {
	m.record("Upload")
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, path)
	}
	return &models.Dataset{Handle: "handle-" + filepath.Base(path), FileName: filepath.Base(path)}, nil
}

func (m *MockClient) StartJob(ctx context.Context, method hyphy.Method, payload map[string]any) (string, error) {
	m.record("StartJob")
	m.mu.Lock()
	m.payloads = append(m.payloads, payload)
	m.mu.Unlock()
	if m.StartJobFunc != nil {
		return m.StartJobFunc(ctx, method, payload)
	}
	return "remote-1", nil
}

func (m *MockClient) JobStatus(ctx context.Context, remoteJobID string) (*datamonkey.JobState, error) {
	m.record("JobStatus")
	if m.JobStatusFunc != nil {
		return m.JobStatusFunc(ctx, remoteJobID)
	}
	return &datamonkey.JobState{Status: datamonkey.StatusCompleted}, nil
}

func (m *MockClient) JobResults(ctx context.Context, remoteJobID string) (json.RawMessage, error) {
	m.record("JobResults")
	if m.JobResultsFunc != nil {
		return m.JobResultsFunc(ctx, remoteJobID)
	}
	return json.RawMessage(`{}`), nil
}

// NewMockClient returns a MockClient whose jobs complete on the first poll
// with the given results. Uploads fail for paths that do not exist.
func NewMockClient(results json.RawMessage) *MockClient {
	return &MockClient{
		UploadFunc: func(_ context.Context, path string) (*models.Dataset, error) {
			info, err := os.Stat(path)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", datamonkey.ErrFileNotFound, path)
			}
			return &models.Dataset{Handle: "handle-" + filepath.Base(path), FileName: filepath.Base(path), FileSize: info.Size()}, nil
		},
		JobResultsFunc: func(_ context.Context, _ string) (json.RawMessage, error) {
			return results, nil
		},
	}
}

// NewPendingClient returns a MockClient whose jobs stay running forever.
func NewPendingClient() *MockClient {
	return &MockClient{
		JobStatusFunc: func(_ context.Context, _ string) (*datamonkey.JobState, error) {
			return &datamonkey.JobState{Status: datamonkey.StatusRunning}, nil
		},
	}
}

// NewFailingClient returns a MockClient that always returns the given error.
func NewFailingClient(err error) *MockClient {
	return &MockClient{
		HealthFunc: func(_ context.Context) (*datamonkey.Health, error) { return nil, err },
		UploadFunc: func(_ context.Context, _ string) (*models.Dataset, error) { return nil, err },
		StartJobFunc: func(_ context.Context, _ hyphy.Method, _ map[string]any) (string, error) {
			return "", err
		},
		JobStatusFunc:  func(_ context.Context, _ string) (*datamonkey.JobState, error) { return nil, err },
		JobResultsFunc: func(_ context.Context, _ string) (json.RawMessage, error) { return nil, err },
	}
}

// Compile-time check that MockClient implements Client.
var _ datamonkey.Client = (*MockClient)(nil)
