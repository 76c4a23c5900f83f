package logging

import (
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// bridgeName identifies entries forwarded over the otelzap bridge.
const bridgeName = "specd"

// assembleCore builds the core stack: the console sink and the OTEL
// bridge fan out through a Tee, and sampling wraps the result.
func assembleCore(cfg *Config, provider log.LoggerProvider) (zapcore.Core, error) {
	cores := make([]zapcore.Core, 0, 2)

	if sink, ok := cfg.Output.consoleSink(); ok {
		enc, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
		if err != nil {
			return nil, fmt.Errorf("failed to build redacting encoder: %w", err)
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(sink), cfg.Level))
	}

	if cfg.Output.OTEL && provider != nil {
		cores = append(cores, otelzap.NewCore(bridgeName, otelzap.WithLoggerProvider(provider)))
	}

	switch len(cores) {
	case 0:
		return nil, errors.New("no usable log output: enable stdout or stderr, or supply an otel provider")
	case 1:
		return sampleCore(cores[0], cfg.Sampling), nil
	default:
		return sampleCore(zapcore.NewTee(cores...), cfg.Sampling), nil
	}
}

// consoleSink picks the console stream. Stderr wins when both are set
// because stdio transports own stdout.
func (o OutputConfig) consoleSink() (zapcore.WriteSyncer, bool) {
	switch {
	case o.Stderr:
		return os.Stderr, true
	case o.Stdout:
		return os.Stdout, true
	default:
		return nil, false
	}
}

// newEncoder returns a JSON or console encoder with an ISO8601 "ts"
// timestamp key.
func newEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "console" {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}
