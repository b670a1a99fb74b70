package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/gilandre/emeraude-treasury/internal/config"
	"github.com/gilandre/emeraude-treasury/internal/metrics"
	"github.com/gilandre/emeraude-treasury/internal/routes"
)

// Server wraps the Fiber application, the Prometheus scrape listener and
// shared dependencies.
type Server struct {
	app         *fiber.App
	metricsHTTP *http.Server
	cfg         config.Config
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	if err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Redis: cache, Logger: logger}); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	metricsHTTP := &http.Server{
		Addr:              cfg.MetricsAddress(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{app: app, metricsHTTP: metricsHTTP, cfg: cfg}, nil
}

// Listen starts the API server; the metrics listener runs alongside it.
func (s *Server) Listen() error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.metricsHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	if err := s.app.Listen(s.cfg.Address()); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown gracefully stops both listeners.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return err
	}
	return s.metricsHTTP.Shutdown(ctx)
}
