package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is a time.Duration that marshals to and from strings like "90s"
// or "2m30s", the form durations take in YAML files and env vars.
type Duration time.Duration

// Duration returns the wrapped time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// UnmarshalText parses the textual form. Negative durations are rejected.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", text)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText renders the canonical string form.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// MarshalJSON renders the same string form as MarshalText.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration().String())
}

// secretPlaceholder replaces secret values in every rendered form.
const secretPlaceholder = "[REDACTED]"

// Secret holds a credential that must never appear in logs or serialized
// output. All formatting and marshaling paths render a placeholder; only
// Value returns the real string.
type Secret string

// masked is the rendered form. Empty secrets stay empty so omitempty and
// zero-value checks keep working.
func (s Secret) masked() string {
	if s == "" {
		return ""
	}
	return secretPlaceholder
}

// Value returns the real secret.
func (s Secret) Value() string { return string(s) }

// IsSet reports whether a non-empty secret was configured.
func (s Secret) IsSet() bool { return s != "" }

// String implements fmt.Stringer, so %v and %s render the placeholder.
func (s Secret) String() string { return s.masked() }

// GoString masks %#v formatting as well.
func (s Secret) GoString() string { return "Secret(" + secretPlaceholder + ")" }

// MarshalText implements encoding.TextMarshaler with the placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte(s.masked()), nil }

// MarshalJSON implements json.Marshaler with the placeholder.
func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(s.masked()) }

// MarshalYAML implements yaml.Marshaler with the placeholder.
func (s Secret) MarshalYAML() (any, error) { return s.masked(), nil }

// UnmarshalText accepts the raw secret value.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}

// UnmarshalJSON accepts the raw secret value.
func (s *Secret) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Secret(raw)
	return nil
}

// UnmarshalYAML accepts the raw secret value.
func (s *Secret) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	*s = Secret(raw)
	return nil
}
