// Package config provides configuration loading for specd.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	envPrefix = "SPECD_"
)

// Load loads configuration from the default config file path.
// Equivalent to LoadWithFile("").
func Load() (*Config, error) {
	return LoadWithFile("")
}

// LoadWithFile loads configuration from a YAML file, applies SPECD_*
// environment overrides on top, fills in defaults, and validates the
// result.
//
// Precedence, highest first:
//  1. Environment variables (SPECD_SERVER_HTTP_PORT, SPECD_LOGGING_LEVEL, ...)
//  2. YAML config file
//  3. Built-in defaults
//
// An empty configPath means ~/.config/specd/config.yaml. A missing file
// is fine; defaults and environment variables still apply.
//
// Config files are only accepted from ~/.config/specd/ or /etc/specd/,
// must have 0600 or 0400 permissions, and may not exceed 1MB. Anything
// else is rejected before the file is parsed.
//
// Environment variables map onto config keys by stripping the SPECD_
// prefix, lowercasing, and turning the first underscore into a dot:
//
//	SPECD_SERVER_HTTP_PORT     -> server.http_port
//	SPECD_PIPELINE_RETRY_DELAY -> pipeline.retry_delay
func LoadWithFile(configPath string) (*Config, error) {
	if configPath == "" {
		p, err := defaultConfigPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	// The path check runs even when the file does not exist.
	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	k := koanf.New(".")

	if err := loadConfigFile(k, configPath); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider(envPrefix, ".", envToConfigKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadConfigFile reads configPath into k. A missing file is not an error.
// The file is opened once and checked through its descriptor so the
// permission and size checks cannot race against the read.
func loadConfigFile(k *koanf.Koanf, configPath string) error {
	f, err := os.Open(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	return nil
}

// envToConfigKey maps SPECD_SECTION_FIELD_NAME onto section.field_name.
// Only the first underscore after the prefix becomes a dot so compound
// field names survive: SPECD_SERVER_HTTP_PORT -> server.http_port.
func envToConfigKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, envPrefix))
	if section, field, ok := strings.Cut(key, "_"); ok {
		return section + "." + field
	}
	return key
}

// EnsureConfigDir creates ~/.config/specd with 0700 permissions if it
// does not exist yet. Called during startup so new installs have the
// directory ready.
func EnsureConfigDir() error {
	dir, err := userConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return nil
}

func defaultConfigPath() (string, error) {
	dir, err := userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func userConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "specd"), nil
}

// validateConfigPath rejects paths outside the allowed config
// directories. Symlinks are resolved first so a link cannot point the
// loader at a file elsewhere.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		// Nonexistent paths cannot be resolved; check the absolute
		// path instead.
		resolved = absPath
	}

	userDir, err := userConfigDir()
	if err != nil {
		return err
	}

	for _, dir := range []string{userDir, "/etc/specd"} {
		// Separator-suffixed prefix so /etc/specd-extra does not pass
		// as /etc/specd.
		if resolved == dir || strings.HasPrefix(resolved, dir+string(os.PathSeparator)) {
			return nil
		}
	}
	return errors.New("config file must be in ~/.config/specd/ or /etc/specd/")
}

// validateConfigFileProperties enforces the 0600/0400 permission and the
// 1MB size limit. The FileInfo comes from an already-open descriptor.
func validateConfigFileProperties(info os.FileInfo) error {
	// Windows has no Unix permission bits to check.
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
