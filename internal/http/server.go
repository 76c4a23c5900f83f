// Package http provides the HTTP API for specd.
package http

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/citations"
	"github.com/fyrsmithlabs/specd/internal/consulting"
	"github.com/fyrsmithlabs/specd/internal/logging"
	"github.com/fyrsmithlabs/specd/internal/pipeline"
	"github.com/fyrsmithlabs/specd/internal/steering"
)

// Runner is the pipeline surface the HTTP handlers consume.
type Runner interface {
	Run(ctx context.Context, rawIntent string, opts *pipeline.Options) *pipeline.Outcome
	Stats() pipeline.StatsSnapshot
}

// Server provides HTTP endpoints for specd.
type Server struct {
	echo      *echo.Echo
	runner    Runner
	citations *citations.Registry
	steering  *steering.Store
	metrics   *HTTPMetrics
	logger    *zap.Logger
	config    *Config
	started   time.Time
}

// Config carries the HTTP listener settings.
type Config struct {
	Host            string
	Port            int
	Version         string
	ShutdownTimeout time.Duration
}

// requestIDPattern matches IDs safe to stamp into the logging context.
// Echo passes inbound X-Request-ID headers through, so anything else is
// left unstamped rather than trusted.
var requestIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// NewServer assembles the router, middleware chain, and routes. The
// runner and registry are required; a nil cfg falls back to localhost
// defaults.
func NewServer(runner Runner, registry *citations.Registry, logger *zap.Logger, cfg *Config) (*Server, error) {
	if runner == nil {
		return nil, fmt.Errorf("pipeline runner is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("citation registry is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8823,
		}
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	metrics := NewHTTPMetrics(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(metrics.MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Stamp the request context so pipeline logs and telemetry
			// correlate with this access log line.
			if rid := c.Response().Header().Get(echo.HeaderXRequestID); requestIDPattern.MatchString(rid) {
				ctx := logging.WithRequestID(c.Request().Context(), rid)
				c.SetRequest(c.Request().WithContext(ctx))
			}

			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:      e,
		runner:    runner,
		citations: registry,
		metrics:   metrics,
		logger:    logger,
		config:    cfg,
		started:   time.Now(),
	}

	s.registerRoutes()

	return s, nil
}

// SetSteering attaches the steering note store so health reports a note
// count. Optional.
func (s *Server) SetSteering(store *steering.Store) {
	s.steering = store
}

// registerRoutes wires the health, metrics, and v1 API endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/optimize", s.handleOptimize)
	v1.GET("/techniques", s.handleTechniques)
	v1.GET("/stats", s.handleStats)
}

// handleHealth reports daemon status, version, uptime, and the pipeline
// run counters.
func (s *Server) handleHealth(c echo.Context) error {
	snap := s.runner.Stats()
	return c.JSON(http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       s.config.Version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Pipeline:      statsResponse(snap),
		Counts: HealthCounts{
			Techniques:    len(consulting.Catalog()),
			Sources:       s.citations.Len(),
			SteeringNotes: CountSteeringNotes(s.steering),
		},
	})
}

// handleOptimize runs the pipeline for the posted intent. A malformed
// envelope is a 400; taxonomy failures return the outcome under 422;
// successful runs return it under 200.
func (s *Server) handleOptimize(c echo.Context) error {
	var req OptimizeRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid optimize request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	outcome := s.runner.Run(c.Request().Context(), req.Intent, req.Options)
	if outcome.Err != nil {
		return c.JSON(http.StatusUnprocessableEntity, outcome)
	}
	return c.JSON(http.StatusOK, outcome)
}

// handleTechniques lists the technique catalog with the published
// sources backing each entry.
func (s *Server) handleTechniques(c echo.Context) error {
	catalog := consulting.Catalog()
	resp := TechniquesResponse{
		Techniques: make([]TechniqueBody, 0, len(catalog)),
	}
	for _, t := range catalog {
		body := TechniqueBody{
			Key:            t.Key,
			Name:           t.Name,
			Triggers:       t.Triggers,
			BaseSavings:    t.BaseSavings,
			Recommendation: t.Recommendation,
		}
		for _, cit := range s.citations.ForTechnique(t.Key) {
			body.Citations = append(body.Citations, CitationBody{
				Key:         cit.Key,
				Title:       cit.Title,
				Authors:     cit.Authors,
				Year:        cit.Year,
				Publication: cit.Publication,
				Finding:     cit.Finding,
			})
		}
		resp.Techniques = append(resp.Techniques, body)
	}
	resp.Count = len(resp.Techniques)
	return c.JSON(http.StatusOK, resp)
}

// handleStats returns the process-wide pipeline counters.
func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, statsResponse(s.runner.Stats()))
}

// Start serves until the context is cancelled, then shuts down
// gracefully within the configured timeout. A clean shutdown surfaces
// http.ErrServerClosed.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		s.logger.Info("shutting down http server")
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Echo returns the underlying Echo instance for registering additional
// routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
