package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but file is missing or invalid, loading fails.
	ConfigPath string

	// FlagOverrides are CLI flag values that override config file values.
	FlagOverrides FlagOverrides

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
// Nil fields leave the file value untouched.
type FlagOverrides struct {
	BaseURL        *string
	AppVersion     *string
	TimeoutSeconds *int
	LoggingLevel   *string
	MetricsAddr    *string
}

// fileConfig mirrors Config but with pointer fields to detect presence.
type fileConfig struct {
	Client  *clientFileConfig         `toml:"client"`
	Logging *loggingFileConfig        `toml:"logging"`
	Metrics *metricsFileConfig        `toml:"metrics"`
	APIs    map[string]map[string]any `toml:"apis"`
}

type clientFileConfig struct {
	BaseURL        *string `toml:"base_url"`
	AppVersion     *string `toml:"app_version"`
	StartDelayMS   *int    `toml:"start_delay_ms"`
	TimeoutSeconds *int    `toml:"timeout_seconds"`
	RestorePolicy  *string `toml:"restore_policy"`
}

type loggingFileConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type metricsFileConfig struct {
	Enabled    *bool   `toml:"enabled"`
	ListenAddr *string `toml:"listen_addr"`
}

// Load loads configuration with the following precedence:
//  1. Defaults
//  2. TOML config file values
//  3. CLI flags
//
// A missing, unreadable or invalid config file fails the load. Unknown TOML
// keys produce a warning but do not fail the load.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := Default()

	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}

		var fc fileConfig
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}

		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			logger.Warn("unknown config keys ignored", "path", opts.ConfigPath, "keys", keys)
		}

		if err := applyFileConfig(cfg, &fc); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", opts.ConfigPath, err)
		}
	}

	applyFlagOverrides(cfg, opts.FlagOverrides)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFileConfig(cfg *Config, fc *fileConfig) error {
	if c := fc.Client; c != nil {
		if c.BaseURL != nil {
			cfg.Client.BaseURL = *c.BaseURL
		}
		if c.AppVersion != nil {
			cfg.Client.AppVersion = *c.AppVersion
		}
		if c.StartDelayMS != nil {
			cfg.Client.StartDelayMS = *c.StartDelayMS
		}
		if c.TimeoutSeconds != nil {
			cfg.Client.TimeoutSeconds = *c.TimeoutSeconds
		}
		if c.RestorePolicy != nil {
			cfg.Client.RestorePolicy = *c.RestorePolicy
		}
	}

	if l := fc.Logging; l != nil {
		if l.Level != "" {
			cfg.Logging.Level = l.Level
		}
		if l.Format != "" {
			cfg.Logging.Format = l.Format
		}
	}

	if m := fc.Metrics; m != nil {
		if m.Enabled != nil {
			cfg.Metrics.Enabled = *m.Enabled
		}
		if m.ListenAddr != nil {
			cfg.Metrics.ListenAddr = *m.ListenAddr
		}
	}

	for name, raw := range fc.APIs {
		var api EndpointConfig
		if err := Decode(raw, &api); err != nil {
			return fmt.Errorf("apis.%s: %w", name, err)
		}
		cfg.APIs[name] = api
	}
	return nil
}

func applyFlagOverrides(cfg *Config, f FlagOverrides) {
	if f.BaseURL != nil {
		cfg.Client.BaseURL = *f.BaseURL
	}
	if f.AppVersion != nil {
		cfg.Client.AppVersion = *f.AppVersion
	}
	if f.TimeoutSeconds != nil {
		cfg.Client.TimeoutSeconds = *f.TimeoutSeconds
	}
	if f.LoggingLevel != nil {
		cfg.Logging.Level = *f.LoggingLevel
	}
	if f.MetricsAddr != nil {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddr = *f.MetricsAddr
	}
}
