package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/dggs-stac-export/internal/core/config"
	"github.com/mohammed-shakir/dggs-stac-export/internal/core/health"
	middleware "github.com/mohammed-shakir/dggs-stac-export/internal/core/middleware"
	"github.com/mohammed-shakir/dggs-stac-export/internal/core/router"
)

type Deps struct {
	Service router.Service
	Metrics http.Handler
	Ready   map[string]health.Pinger
}

// NewHandler wires the coverage routes behind the standard middleware chain.
func NewHandler(cfg config.Config, logger *slog.Logger, deps Deps) http.Handler {
	def := router.Defaults{
		System:    cfg.DGGS.System,
		Level:     cfg.DGGS.ZoneLevel,
		MaxWidth:  cfg.Export.MaxWidth,
		MaxHeight: cfg.Export.MaxHeight,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(2*time.Second, deps.Ready))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	r.Get("/systems", router.HandleSystems())
	r.Get("/coverage", router.HandleCoverage(logger, def, deps.Service))
	r.Get("/zones", router.HandleZones(logger, def, deps.Service))
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, deps Deps) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(cfg, logger, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.DGGS.Timeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
