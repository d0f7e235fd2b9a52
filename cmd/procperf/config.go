package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rendis/procperf/pkg/schema"
)

// Config holds all procperf configuration.
// Priority: flags > env vars > settings.yaml > defaults.
type Config struct {
	DBPath    string          `yaml:"db_path"`
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"`
	PoolSize  int             `yaml:"pool_size"`
	MaxDepth  int             `yaml:"max_depth"`
	Settings  schema.Settings `yaml:"settings"`
}

func defaultConfig() Config {
	return Config{
		DBPath:    filepath.Join(procperfDir(), "procperf.db"),
		LogLevel:  "warn",
		LogFormat: "text",
		Settings:  schema.DefaultSettings(),
	}
}

func procperfDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".procperf"
	}
	return filepath.Join(home, ".procperf")
}

func settingsPath() string {
	return filepath.Join(procperfDir(), "settings.yaml")
}

// loadConfig layers the config file at path and the PROCPERF_* variables
// read through getenv over the defaults. A missing file is ignored only
// when path is the default location.
func loadConfig(path string, getenv func(string) string) (Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if !explicit {
		path = settingsPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, schema.NewErrorf(schema.ErrCodeValidation, "invalid config %s", path).WithCause(err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return cfg, schema.NewErrorf(schema.ErrCodeNotFound, "cannot read config %s", path).WithCause(err)
	}

	if v := getenv("PROCPERF_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("PROCPERF_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("PROCPERF_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := getenv("PROCPERF_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PoolSize = n
		}
	}
	if v := getenv("PROCPERF_MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxDepth = n
		}
	}
	if v := getenv("PROCPERF_CALCULATIONS"); v != "" {
		cfg.Settings.Calculations = parseCalculations(v)
	}
	if v := getenv("PROCPERF_CURRENCY"); v != "" {
		cfg.Settings.Currency = v
	}
	return cfg, nil
}

// loadSettingsFile reads analysis settings from a YAML or JSON file.
func loadSettingsFile(path string) (schema.Settings, error) {
	settings := schema.DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		return settings, schema.NewErrorf(schema.ErrCodeNotFound, "cannot read settings %s", path).WithCause(err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, schema.NewErrorf(schema.ErrCodeValidation, "invalid settings %s", path).WithCause(err)
	}
	return settings, nil
}

// parseCalculations splits a comma-separated list such as "time,cost".
func parseCalculations(s string) []schema.Calculation {
	var out []schema.Calculation
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, schema.Calculation(strings.ToLower(part)))
		}
	}
	return out
}
