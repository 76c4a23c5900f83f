package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/specd/internal/citations"
	"github.com/fyrsmithlabs/specd/internal/pipeline"
	"github.com/fyrsmithlabs/specd/internal/steering"
)

// Runner is the pipeline surface the tool handlers consume.
type Runner interface {
	Run(ctx context.Context, rawIntent string, opts *pipeline.Options) *pipeline.Outcome
	Stats() pipeline.StatsSnapshot
}

// Server exposes the pipeline tools over an MCP stdio transport.
type Server struct {
	mcp          *mcp.Server
	runner       Runner
	citations    *citations.Registry
	store        *steering.Store
	watcher      *steering.Watcher
	toolRegistry *ToolRegistry
	metrics      *Metrics
	limiter      *rate.Limiter
	logger       *zap.Logger
}

// Config carries the MCP server settings.
type Config struct {
	// Name is the server implementation name (default: "specd").
	Name string

	// Version is the server version (default: "0.0.0-dev").
	Version string

	// Logger for structured logging.
	Logger *zap.Logger

	// RatePerSecond caps tool invocations across all tools. Zero
	// disables the limiter.
	RatePerSecond float64

	// RateBurst is the limiter burst size.
	RateBurst int
}

// DefaultConfig returns the stock server settings.
func DefaultConfig() *Config {
	return &Config{
		Name:          "specd",
		Version:       "0.0.0-dev",
		Logger:        zap.NewNop(),
		RatePerSecond: 20,
		RateBurst:     40,
	}
}

// NewServer creates an MCP server serving the given pipeline runner and
// citation registry.
func NewServer(cfg *Config, runner Runner, registry *citations.Registry) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if runner == nil {
		return nil, fmt.Errorf("pipeline runner is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("citation registry is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:          mcpServer,
		runner:       runner,
		citations:    registry,
		toolRegistry: NewToolRegistry(),
		metrics:      NewMetrics(logger),
		logger:       logger,
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	s.registerTools()

	return s, nil
}

// SetSteering wires the steering note index and registers the steering
// tools. The watcher is optional; without one, listings read the notes
// directory on each call. Must be called before Run.
func (s *Server) SetSteering(store *steering.Store, watcher *steering.Watcher) {
	if store == nil {
		return
	}
	s.store = store
	s.watcher = watcher
	s.registerSteeringTools()
}

// Run starts the MCP server on the stdio transport and blocks until the
// context is canceled or the transport closes.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport",
		zap.Int("tools", s.toolRegistry.Count()))
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// checkLimit enforces the shared invocation limiter at handler entry.
func (s *Server) checkLimit() error {
	if s.limiter != nil && !s.limiter.Allow() {
		return fmt.Errorf("rate limit exceeded, retry later")
	}
	return nil
}

// toolMeta exposes the registry category for a tool definition.
func (s *Server) toolMeta(name string) mcp.Meta {
	meta, ok := s.toolRegistry.Get(name)
	if !ok {
		return nil
	}
	return mcp.Meta{"category": string(meta.Category)}
}
