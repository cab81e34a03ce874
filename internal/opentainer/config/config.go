// Package config loads the backend configuration file. The file is
// optional; every field has a default, and a missing file yields the
// default configuration. Parsed documents are checked against an
// embedded JSON schema so typos fail loudly at startup instead of
// silently falling back to defaults.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/bdobrica/opentainer/common/environment"
)

//go:embed schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("config.schema.json", schemaJSON)

// Colima sizes the VM spawned on macOS.
type Colima struct {
	CPU    int `yaml:"cpu" json:"cpu"`
	Memory int `yaml:"memory" json:"memory"`
	Disk   int `yaml:"disk" json:"disk"`
}

// Config is the full backend configuration.
type Config struct {
	Listen   string `yaml:"listen" json:"listen"`
	LogLevel string `yaml:"log_level" json:"log_level"`
	Colima   Colima `yaml:"colima" json:"colima"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Listen:   "127.0.0.1:7465",
		LogLevel: "info",
		Colima:   Colima{CPU: 2, Memory: 4, Disk: 60},
	}
}

// DefaultPath returns the conventional config file location,
// ~/.config/opentainer/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "opentainer", "config.yaml")
}

// Load reads, validates and defaults the configuration at path. A
// missing or empty path is not an error. Environment variables
// OPENTAINER_LISTEN and OPENTAINER_LOG_LEVEL override the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			slog.Info("no config file, using defaults", "path", path)
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			parsed, err := parse(data)
			if err != nil {
				return Config{}, fmt.Errorf("config %s: %w", path, err)
			}
			cfg = merge(cfg, parsed)
		}
	}

	cfg.Listen = environment.StringOr("OPENTAINER_LISTEN", cfg.Listen)
	cfg.LogLevel = environment.StringOr("OPENTAINER_LOG_LEVEL", cfg.LogLevel)
	return cfg, nil
}

func parse(data []byte) (Config, error) {
	// Validate the raw document, not the decoded struct, so unknown
	// keys and wrong types are reported instead of silently ignored.
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, fmt.Errorf("parse: %w", err)
	}
	if doc != nil {
		// Round-trip through encoding/json so the schema validator sees
		// plain JSON values rather than YAML-typed ones.
		raw, err := json.Marshal(doc)
		if err != nil {
			return Config{}, fmt.Errorf("parse: %w", err)
		}
		var jsonDoc any
		if err := json.Unmarshal(raw, &jsonDoc); err != nil {
			return Config{}, err
		}
		if err := schema.Validate(jsonDoc); err != nil {
			return Config{}, fmt.Errorf("validate: %w", err)
		}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse: %w", err)
	}
	return cfg, nil
}

// merge lays the parsed file over the defaults; zero values in the file
// keep the default.
func merge(base, over Config) Config {
	if over.Listen != "" {
		base.Listen = over.Listen
	}
	if over.LogLevel != "" {
		base.LogLevel = over.LogLevel
	}
	if over.Colima.CPU > 0 {
		base.Colima.CPU = over.Colima.CPU
	}
	if over.Colima.Memory > 0 {
		base.Colima.Memory = over.Colima.Memory
	}
	if over.Colima.Disk > 0 {
		base.Colima.Disk = over.Colima.Disk
	}
	return base
}

// Level maps the configured log level onto slog.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
