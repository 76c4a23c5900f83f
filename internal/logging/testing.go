package logging

import (
	"reflect"
	"regexp"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records everything down to TraceLevel for assertions.
type TestLogger struct {
	*Logger
	logs *observer.ObservedLogs
}

// NewTestLogger returns a logger backed by an in-memory observer.
func NewTestLogger() *TestLogger {
	core, logs := observer.New(TraceLevel)
	return &TestLogger{
		Logger: &Logger{z: zap.New(core), cfg: NewDefaultConfig()},
		logs:   logs,
	}
}

// Entries returns everything logged so far.
func (t *TestLogger) Entries() []observer.LoggedEntry {
	return t.logs.All()
}

// Reset discards recorded entries.
func (t *TestLogger) Reset() {
	t.logs.TakeAll()
}

// AssertLogged fails unless an entry at lvl whose message contains
// substr was recorded.
func (t *TestLogger) AssertLogged(tb testing.TB, lvl zapcore.Level, substr string) {
	tb.Helper()
	for _, e := range t.logs.All() {
		if e.Level == lvl && strings.Contains(e.Message, substr) {
			return
		}
	}
	tb.Errorf("no entry at %v containing %q; got %+v", lvl, substr, t.logs.All())
}

// AssertField fails unless some entry with message msg carries a field
// key with the expected value.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, want any) {
	tb.Helper()
	for _, e := range t.logs.FilterMessage(msg).All() {
		for _, f := range e.Context {
			if f.Key != key {
				continue
			}
			if f.Type == zapcore.StringType && f.String == want {
				return
			}
			if reflect.DeepEqual(f.Interface, want) {
				return
			}
		}
	}
	tb.Errorf("field %q=%v not found on message %q", key, want, msg)
}

var leakPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bearer\s+\S+`),
	regexp.MustCompile(`(?i)api[_-]?key[=:]\s*\S+`),
}

var leakKeywords = []string{
	"password", "secret", "token", "api_key",
	"authorization", "bearer", "credential", "private_key",
}

// AssertNoSecrets sweeps recorded entries for credential-shaped values
// and for sensitive keys whose values lack a redaction marker.
func (t *TestLogger) AssertNoSecrets(tb testing.TB) {
	tb.Helper()
	for _, e := range t.logs.All() {
		for _, re := range leakPatterns {
			if re.MatchString(e.Message) {
				tb.Errorf("credential-shaped message: %q", e.Message)
			}
		}
		for _, f := range e.Context {
			if f.Type != zapcore.StringType {
				continue
			}
			key := strings.ToLower(f.Key)
			for _, word := range leakKeywords {
				if strings.Contains(key, word) && f.String != "" && !strings.Contains(f.String, "[REDACTED") {
					tb.Errorf("sensitive field %q not redacted: %q", f.Key, f.String)
				}
			}
			for _, re := range leakPatterns {
				if re.MatchString(f.String) {
					tb.Errorf("credential-shaped value in field %q: %q", f.Key, f.String)
				}
			}
		}
	}
}
