// Package app owns the server runtime: HTTP listener lifecycle, engine
// preloading, readiness transitions and the artifact retention loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/fluxgate/fluxgate/pkg/artifact"
	"github.com/fluxgate/fluxgate/pkg/config"
	"github.com/fluxgate/fluxgate/pkg/engine"
	"github.com/fluxgate/fluxgate/pkg/server/api"
	"github.com/fluxgate/fluxgate/pkg/server/httpx"
	"github.com/fluxgate/fluxgate/pkg/tasks"
)

// shutdownTimeout bounds how long graceful shutdown waits for in-flight
// requests.
const shutdownTimeout = 10 * time.Second

// gcInterval is how often the artifact retention policy is applied.
const gcInterval = time.Hour

// Deps holds the collaborators the server runtime wires together.
type Deps struct {
	// Tasks is the task service backing the API.
	Tasks *tasks.Service

	// Engine is preloaded at startup; readiness flips once it loads.
	Engine engine.Engine

	// Artifacts is initialized at startup and garbage collected on a timer.
	Artifacts *artifact.Store

	// Retention bounds on-disk artifacts.
	Retention artifact.RetentionConfig

	// Logger for server lifecycle events.
	Logger zerolog.Logger
}

// App is the assembled server runtime.
type App struct {
	cfg    config.ServerConfig
	deps   *Deps
	ready  *atomic.Bool
	server *http.Server
}

// New assembles the server: router, middleware and http.Server.
// Run starts it.
func New(ctx context.Context, cfg config.ServerConfig, deps *Deps) (*App, error) {
	if deps == nil {
		return nil, fmt.Errorf("server dependencies are required")
	}

	ready := &atomic.Bool{}

	apiDeps := &api.Deps{
		Tasks:  nil,
		Engine: deps.Engine,
		Config: api.DefaultConfig(),
		Ready:  ready,
	}
	if deps.Tasks != nil {
		apiDeps.Tasks = deps.Tasks
	}

	router := httpx.NewRouter(cfg, apiDeps)

	addr := net.JoinHostPort(cfg.Addr, strconv.Itoa(cfg.Port))
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &App{
		cfg:    cfg,
		deps:   deps,
		ready:  ready,
		server: server,
	}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// listener fails. Shutdown is graceful within shutdownTimeout.
func (a *App) Run(ctx context.Context) error {
	logger := a.deps.Logger

	if a.deps.Artifacts != nil {
		if err := a.deps.Artifacts.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize artifact store: %w", err)
		}
	}

	// Preload the model in the background so the listener comes up fast;
	// readiness flips only after the load finishes.
	go a.preload(ctx)

	if a.deps.Artifacts != nil && a.deps.Retention.IsEnabled() {
		go a.gcLoop(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("component", "server").
			Str("addr", a.server.Addr).
			Msg("HTTP server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info().
			Str("component", "server").
			Msg("Shutdown requested, draining connections")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

// Ready reports whether the server has finished startup.
func (a *App) Ready() bool {
	return a.ready.Load()
}

// preload loads the model once and flips readiness.
func (a *App) preload(ctx context.Context) {
	logger := a.deps.Logger

	if a.deps.Engine == nil {
		a.ready.Store(true)
		return
	}

	logger.Info().
		Str("component", "server").
		Msg("Loading model")

	if err := a.deps.Engine.EnsureLoaded(ctx); err != nil {
		// Stay unready; the next generation request retries the load.
		logger.Error().
			Str("component", "server").
			Err(err).
			Msg("Model preload failed")
		return
	}

	a.ready.Store(true)
	logger.Info().
		Str("component", "server").
		Msg("Model loaded, server ready")
}

// gcLoop applies the artifact retention policy periodically.
func (a *App) gcLoop(ctx context.Context) {
	logger := a.deps.Logger

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := a.deps.Artifacts.GarbageCollect(ctx, a.deps.Retention)
			if err != nil {
				logger.Warn().
					Str("component", "server").
					Err(err).
					Msg("Artifact GC failed")
				continue
			}
			if result.Removed > 0 {
				logger.Info().
					Str("component", "server").
					Int("removed", result.Removed).
					Int64("bytes_freed", result.BytesFreed).
					Msg("Artifact GC pass completed")
			}
		}
	}
}
