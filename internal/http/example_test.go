package http_test

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/citations"
	"github.com/fyrsmithlabs/specd/internal/consulting"
	"github.com/fyrsmithlabs/specd/internal/forecast"
	httpserver "github.com/fyrsmithlabs/specd/internal/http"
	"github.com/fyrsmithlabs/specd/internal/intent"
	"github.com/fyrsmithlabs/specd/internal/optimization"
	"github.com/fyrsmithlabs/specd/internal/pipeline"
	"github.com/fyrsmithlabs/specd/internal/spec"
)

// ExampleServer assembles a pipeline-backed server, runs it briefly,
// and shuts it down.
func ExampleServer() {
	logger := zap.NewNop()

	// Load the citation registry and assemble the pipeline runner
	registry, err := citations.NewRegistry()
	if err != nil {
		panic(err)
	}

	analyzer, err := consulting.NewAnalyzer(registry, logger)
	if err != nil {
		panic(err)
	}

	runner, err := pipeline.NewRunner(pipeline.Config{}, pipeline.Collaborators{
		Parser:     intent.NewParser(logger),
		Analyzer:   analyzer,
		Optimizer:  optimization.NewOptimizer(logger),
		Forecaster: forecast.NewForecaster(logger),
		Summarizer: consulting.NewSummarizer(logger),
		Emitter:    spec.NewEmitter(logger),
	})
	if err != nil {
		panic(err)
	}

	// Port 0 picks an ephemeral port.
	cfg := &httpserver.Config{
		Host:    "localhost",
		Port:    0,
		Version: "example",
	}

	server, err := httpserver.NewServer(runner, registry, logger, cfg)
	if err != nil {
		panic(err)
	}

	// Start blocks until the context is cancelled, then shuts down
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	// Let the listener come up.
	time.Sleep(100 * time.Millisecond)

	cancel()
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		logger.Error("server error", zap.Error(err))
	}

	fmt.Println("server stopped cleanly")
	// Output: server stopped cleanly
}
