package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/hyphy-mcp/internal/api"
	mw "github.com/kiranshivaraju/hyphy-mcp/internal/api/middleware"
	"github.com/kiranshivaraju/hyphy-mcp/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- stub cache that counts every request ---

type stubCache struct{ count int64 }

func (c *stubCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *stubCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *stubCache) Delete(_ context.Context, _ string) error                          { return nil }
func (c *stubCache) Ping(_ context.Context) error                                      { return nil }
func (c *stubCache) Close() error                                                      { return nil }
func (c *stubCache) SetJobStatus(_ context.Context, _ uuid.UUID, _ string, _ time.Duration) error {
	return nil
}
func (c *stubCache) GetJobStatus(_ context.Context, _ uuid.UUID) (string, bool, error) {
	return "", false, nil
}
func (c *stubCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	c.count++
	return c.count, nil
}

var _ cache.Cache = (*stubCache)(nil)

// --- router tests ---

func ok(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}
}

func newTestRouter(c *stubCache, limit int) http.Handler {
	return api.NewRouter(api.Dependencies{
		RateLimit:       mw.NewRateLimit(c, limit),
		HealthHandler:   ok(`{"status":"ok"}`),
		ListJobsHandler: ok(`{"data":[]}`),
		MCPStream:       ok("event: endpoint\n\n"),
		MCPMessage:      ok(`{}`),
	})
}

func TestRouter_HealthEndpoint_NotRateLimited(t *testing.T) {
	c := &stubCache{}
	router := newTestRouter(c, 60)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	assert.Zero(t, c.count)
}

func TestRouter_JobEndpoints_RateLimited(t *testing.T) {
	c := &stubCache{}
	router := newTestRouter(c, 1)

	req := httptest.NewRequest("GET", "/api/v1/jobs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/message", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRouter_SSEStream(t *testing.T) {
	c := &stubCache{}
	router := newTestRouter(c, 60)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/sse", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, c.count, "the stream is not rate limited")
}

func TestRouter_UnwiredEndpoints(t *testing.T) {
	router := newTestRouter(&stubCache{}, 60)

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/api/v1/jobs"},
		{"GET", "/api/v1/jobs/" + uuid.NewString()},
		{"POST", "/api/v1/jobs/" + uuid.NewString() + "/cancel"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(ep.method, ep.path, nil))

			assert.Equal(t, http.StatusNotImplemented, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "NOT_IMPLEMENTED", errObj["code"])
		})
	}
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(&stubCache{}, 60)

	req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}
