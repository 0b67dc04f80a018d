package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/kiranshivaraju/hyphy-mcp/internal/api/response"
	"github.com/kiranshivaraju/hyphy-mcp/internal/datamonkey"
)

const healthTimeout = 5 * time.Second

// Pinger is anything with a liveness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthDeps are the dependencies reported by GET /api/v1/health.
type HealthDeps struct {
	Version    string
	Store      Pinger
	Cache      Pinger
	Datamonkey datamonkey.Client
}

type healthResponse struct {
	Status     string             `json:"status"`
	Version    string             `json:"version"`
	Checks     map[string]string  `json:"checks"`
	Datamonkey *datamonkey.Health `json:"datamonkey,omitempty"`
}

// NewHealthHandler reports "ok" when every dependency answers and "degraded"
// otherwise. A degraded server still answers 200: it can track jobs it
// already has.
func NewHealthHandler(deps HealthDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Version: deps.Version, Checks: map[string]string{}}
		check := func(name string, err error) {
			if err != nil {
				resp.Status = "degraded"
				resp.Checks[name] = err.Error()
				return
			}
			resp.Checks[name] = "ok"
		}

		if deps.Store != nil {
			check("store", deps.Store.Ping(ctx))
		}
		if deps.Cache != nil {
			check("cache", deps.Cache.Ping(ctx))
		}
		if deps.Datamonkey != nil {
			h, err := deps.Datamonkey.Health(ctx)
			check("datamonkey", err)
			resp.Datamonkey = h
		}
		response.JSON(w, resp)
	}
}
