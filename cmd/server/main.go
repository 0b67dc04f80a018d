// Package main is the entrypoint for the hyphy-mcp server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kiranshivaraju/hyphy-mcp/internal/api"
	"github.com/kiranshivaraju/hyphy-mcp/internal/api/handler"
	mw "github.com/kiranshivaraju/hyphy-mcp/internal/api/middleware"
	"github.com/kiranshivaraju/hyphy-mcp/internal/cache"
	"github.com/kiranshivaraju/hyphy-mcp/internal/config"
	"github.com/kiranshivaraju/hyphy-mcp/internal/datamonkey"
	"github.com/kiranshivaraju/hyphy-mcp/internal/events"
	"github.com/kiranshivaraju/hyphy-mcp/internal/jobs"
	"github.com/kiranshivaraju/hyphy-mcp/internal/results"
	"github.com/kiranshivaraju/hyphy-mcp/internal/store"
	"github.com/kiranshivaraju/hyphy-mcp/internal/tools"
	"github.com/mark3labs/mcp-go/server"
)

const shutdownTimeout = 30 * time.Second

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// stdout belongs to the MCP stdio transport, so logs go to stderr.
	slog.SetDefault(newLogger(os.Stderr, slog.LevelInfo))

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func run() error {
	// A missing .env is fine; the environment may already be set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(newLogger(os.Stderr, cfg.SlogLevel()))
	slog.Info("config loaded",
		"transport", cfg.Server.Transport,
		"env", cfg.Server.Env,
		"datamonkey", cfg.Datamonkey.BaseURL(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Job registry, Postgres or in-memory
	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer st.Close()

	// 3. Cache, Redis or in-memory
	ca, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("create cache: %w", err)
	}
	defer ca.Close()

	// 4. Job event publisher
	pub, err := events.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("create event publisher: %w", err)
	}
	defer pub.Close()

	// 5. Tracker
	client := datamonkey.NewHTTPClient(cfg.Datamonkey.BaseURL(), cfg.Datamonkey.Timeout)
	tracker := jobs.NewTracker(client, st, ca, pub, results.NewWriter(cfg.Results.Dir), jobs.Options{
		PollInterval:    cfg.Datamonkey.PollInterval,
		MaxPollAttempts: cfg.Datamonkey.MaxPollAttempts,
		StatusTTL:       cfg.Redis.JobStatusTTL,
	})
	if n, err := tracker.FailOrphans(ctx); err != nil {
		slog.Warn("failing orphaned jobs", "error", err)
	} else if n > 0 {
		slog.Info("orphaned jobs marked failed", "count", n)
	}

	mcpServer := tools.NewServer(&tools.Handlers{
		Tracker: tracker,
		Client:  client,
		Cache:   ca,
		BaseURL: cfg.Datamonkey.BaseURL(),
	}, version)

	// 6. Serve until the transport closes or a signal arrives
	var serveErr error
	switch cfg.Server.Transport {
	case config.TransportHTTP:
		serveErr = serveHTTP(ctx, cfg, mcpServer, tracker, ca, handler.HealthDeps{
			Version:    version,
			Store:      st,
			Cache:      ca,
			Datamonkey: client,
		})
	default:
		serveErr = serveStdio(ctx, mcpServer, os.Stdin, os.Stdout)
	}

	// 7. Stop polling workers; they record unfinished jobs as failed
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := tracker.Shutdown(shutdownCtx); err != nil {
		slog.Warn("tracker shutdown incomplete", "active", tracker.Active(), "error", err)
	}

	if serveErr != nil {
		return serveErr
	}
	slog.Info("server stopped gracefully")
	return nil
}

// serveStdio speaks MCP over in/out until ctx is done or the client hangs up.
func serveStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	slog.Info("serving MCP over stdio")
	err := server.NewStdioServer(s).Listen(ctx, in, out)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("stdio transport: %w", err)
}

// newHTTPHandler mounts the MCP SSE transport and the REST API on one router.
func newHTTPHandler(cfg *config.Config, sse *server.SSEServer, svc handler.JobService, c cache.Cache, health handler.HealthDeps) http.Handler {
	deps := api.Dependencies{
		HealthHandler:    handler.NewHealthHandler(health),
		SubmitJobHandler: handler.NewSubmitJobHandler(svc),
		ListJobsHandler:  handler.NewListJobsHandler(svc),
		GetJobHandler:    handler.NewGetJobHandler(svc),
		CancelJobHandler: handler.NewCancelJobHandler(svc),
	}
	if sse != nil {
		deps.MCPStream = sse.SSEHandler()
		deps.MCPMessage = sse.MessageHandler()
	}
	if cfg.Server.RateLimitPerMinute > 0 {
		deps.RateLimit = mw.NewRateLimit(c, cfg.Server.RateLimitPerMinute)
	}
	return api.NewRouter(deps)
}

// newSSEServer advertises message endpoints under the configured public URL,
// which is what remote clients must be able to reach.
func newSSEServer(cfg *config.Config, s *server.MCPServer) *server.SSEServer {
	return server.NewSSEServer(s, server.WithBaseURL(cfg.Server.PublicURL))
}

func serveHTTP(ctx context.Context, cfg *config.Config, s *server.MCPServer, tracker *jobs.Tracker, c cache.Cache, health handler.HealthDeps) error {
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	sse := newSSEServer(cfg, s)

	srv := &http.Server{
		Addr:        addr,
		Handler:     newHTTPHandler(cfg, sse, tracker, c, health),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: SSE streams stay open for the life of the session.
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := sse.Shutdown(shutdownCtx); err != nil {
		slog.Warn("closing SSE sessions", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
