package logging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fyrsmithlabs/specd/internal/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TestFullStack drives a production-shaped logger end to end: every
// level, correlation stamping, child and named loggers, and Sync.
// Output goes to stdout; the point is that nothing errors or panics.
func TestFullStack(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Level = TraceLevel
	cfg.Sampling.Enabled = false

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)

	ctx := WithSessionID(context.Background(), "sess-full-stack")
	ctx = WithRequestID(ctx, "req-1")

	logger.Trace(ctx, "attempt", zap.Int("n", 1))
	logger.Debug(ctx, "cache", zap.String("result", "hit"))
	logger.Info(ctx, "run complete", zap.Duration("took", 45*time.Millisecond))
	logger.Warn(ctx, "retrying", zap.Int("attempt", 2))
	logger.Error(ctx, "stage failed", zap.Error(errors.New("timeout")))

	logger.With(zap.String("component", "pipeline")).Info(ctx, "child entry")
	logger.Named("mcp").Info(ctx, "named entry")

	// Sync against a CI-captured stdout can fail with errors outside the
	// benign set; only the call path is under test here.
	_ = logger.Sync()
}

// TestCorrelationAndRedactionTogether exercises the combination a
// request handler produces: context IDs on every entry plus secret
// material that must come out marked.
func TestCorrelationAndRedactionTogether(t *testing.T) {
	tl := NewTestLogger()

	ctx := WithSessionID(context.Background(), "sess-77")
	ctx = WithRequestID(ctx, "req-88")

	tl.Info(ctx, "collector configured",
		Secret("auth_token", config.Secret("very-hidden")),
		zap.String("endpoint", "localhost:4317"),
	)

	tl.AssertLogged(t, zapcore.InfoLevel, "collector configured")
	tl.AssertField(t, "collector configured", "session.id", "sess-77")
	tl.AssertField(t, "collector configured", "request.id", "req-88")
	tl.AssertField(t, "collector configured", "endpoint", "localhost:4317")
	tl.AssertNoSecrets(t)
}
