package logging

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/specd/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	redactedMarker = "[REDACTED]"
	patternMarker  = "[REDACTED:pattern]"
	maxPatternLen  = 200
)

// redactionRules is the compiled form of RedactionConfig. Encoder
// clones share one instance; the rules never change after compile.
type redactionRules struct {
	keys     map[string]struct{}
	patterns []*regexp.Regexp
}

// compile builds the rule set. A disabled config compiles to nil, which
// every rule method treats as "match nothing".
func (c RedactionConfig) compile() (*redactionRules, error) {
	if !c.Enabled {
		return nil, nil
	}
	rules := &redactionRules{keys: make(map[string]struct{}, len(c.Fields))}
	for _, f := range c.Fields {
		rules.keys[strings.ToLower(f)] = struct{}{}
	}
	for _, p := range c.Patterns {
		if len(p) > maxPatternLen {
			return nil, fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLen, p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		rules.patterns = append(rules.patterns, re)
	}
	return rules, nil
}

func (r *redactionRules) sensitiveKey(key string) bool {
	if r == nil {
		return false
	}
	_, hit := r.keys[strings.ToLower(key)]
	return hit
}

func (r *redactionRules) sensitiveValue(val string) bool {
	if r == nil {
		return false
	}
	for _, re := range r.patterns {
		if re.MatchString(val) {
			return true
		}
	}
	return false
}

// RedactingEncoder wraps an encoder and replaces sensitive fields with
// markers before they are serialized.
type RedactingEncoder struct {
	zapcore.Encoder
	rules *redactionRules
}

// NewRedactingEncoder compiles cfg and wraps base. Pattern compilation
// errors surface here so a bad config fails logger construction.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	rules, err := cfg.compile()
	if err != nil {
		return nil, err
	}
	return &RedactingEncoder{Encoder: base, rules: rules}, nil
}

// EncodeEntry funnels per-entry fields through this encoder before the
// wrapped encoder serializes them. Without this, redaction would only
// apply to fields attached via With.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	if e.rules == nil || len(fields) == 0 {
		return e.Encoder.EncodeEntry(ent, fields)
	}
	clone := e.Clone().(*RedactingEncoder)
	for i := range fields {
		fields[i].AddTo(clone)
	}
	return clone.Encoder.EncodeEntry(ent, nil)
}

// AddString applies both key and value rules. Value patterns run only
// on string fields; binary payloads are matched by key alone.
func (e *RedactingEncoder) AddString(key, val string) {
	switch {
	case e.rules.sensitiveKey(key):
		e.Encoder.AddString(key, redactedMarker)
	case e.rules.sensitiveValue(val):
		e.Encoder.AddString(key, patternMarker)
	default:
		e.Encoder.AddString(key, val)
	}
}

func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.rules.sensitiveKey(key) {
		e.Encoder.AddByteString(key, []byte(redactedMarker))
		return
	}
	e.Encoder.AddByteString(key, val)
}

func (e *RedactingEncoder) AddBinary(key string, val []byte) {
	if e.rules.sensitiveKey(key) {
		e.Encoder.AddBinary(key, []byte(redactedMarker))
		return
	}
	e.Encoder.AddBinary(key, val)
}

// AddReflected replaces the whole value when the key is sensitive.
// Structured values that need field-level treatment should implement
// zapcore.ObjectMarshaler instead.
func (e *RedactingEncoder) AddReflected(key string, val any) error {
	if e.rules.sensitiveKey(key) {
		e.Encoder.AddString(key, redactedMarker)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *RedactingEncoder) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	if e.rules.sensitiveKey(key) {
		e.Encoder.AddString(key, redactedMarker)
		return nil
	}
	return e.Encoder.AddArray(key, arr)
}

func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.rules.sensitiveKey(key) {
		e.Encoder.AddString(key, redactedMarker)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

// Clone shares the rules with the copy.
func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{Encoder: e.Encoder.Clone(), rules: e.rules}
}

// Secret renders a config.Secret as a length-only marker.
func Secret(key string, val config.Secret) zap.Field {
	return zap.Object(key, secretField{key: key, val: val})
}

type secretField struct {
	key string
	val config.Secret
}

func (s secretField) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString(s.key, fmt.Sprintf("[REDACTED:%d]", len(s.val.Value())))
	return nil
}

// RedactedString replaces val with a length-only marker. Use it for
// values that are sensitive regardless of what the key is called.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, fmt.Sprintf("[REDACTED:%d]", len(val)))
}
