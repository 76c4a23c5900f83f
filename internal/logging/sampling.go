package logging

import (
	"errors"

	"go.uber.org/zap/zapcore"
)

// sampleCore applies level-aware sampling. Entries at Error and above
// always pass; everything below shares one sampler budget, tuned by the
// Info band of cfg.Levels.
func sampleCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	band := cfg.Levels[zapcore.InfoLevel]
	sampler := zapcore.NewSamplerWithOptions(core, cfg.Tick.Duration(), band.Initial, band.Thereafter)
	return &splitCore{full: core, sampled: sampler, pivot: zapcore.ErrorLevel}
}

// splitCore routes entries at or above pivot to full and the rest
// through sampled. Both children wrap the same base core, so an entry
// is delivered exactly once.
type splitCore struct {
	full    zapcore.Core
	sampled zapcore.Core
	pivot   zapcore.Level
}

func (c *splitCore) child(lvl zapcore.Level) zapcore.Core {
	if lvl >= c.pivot {
		return c.full
	}
	return c.sampled
}

func (c *splitCore) Enabled(lvl zapcore.Level) bool {
	return c.child(lvl).Enabled(lvl)
}

func (c *splitCore) With(fields []zapcore.Field) zapcore.Core {
	return &splitCore{
		full:    c.full.With(fields),
		sampled: c.sampled.With(fields),
		pivot:   c.pivot,
	}
}

func (c *splitCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return c.child(ent.Level).Check(ent, ce)
}

func (c *splitCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return c.child(ent.Level).Write(ent, fields)
}

func (c *splitCore) Sync() error {
	return errors.Join(c.full.Sync(), c.sampled.Sync())
}
