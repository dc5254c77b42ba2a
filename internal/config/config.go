// Package config loads the apimanager command configuration from TOML.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/and4010/apimanager"
)

// Config is the resolved configuration.
type Config struct {
	Client  ClientConfig
	Logging LoggingConfig
	Metrics MetricsConfig

	// APIs holds the endpoint tables keyed by identity.
	APIs map[string]EndpointConfig
}

// ClientConfig configures the apimanager.Client.
type ClientConfig struct {
	BaseURL        string
	AppVersion     string
	StartDelayMS   int
	TimeoutSeconds int
	RestorePolicy  string
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool
	ListenAddr string
}

// EndpointConfig describes one API endpoint declared under [apis.<name>].
type EndpointConfig struct {
	Path         string `mapstructure:"path"`
	ContentKind  string `mapstructure:"content_kind"`
	StartDelayMS *int   `mapstructure:"start_delay_ms"`
}

// ApplyDefaults implements Setter.
func (e *EndpointConfig) ApplyDefaults() {
	if e.ContentKind == "" {
		e.ContentKind = apimanager.ContentEmpty.String()
	}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			StartDelayMS:   int(apimanager.DefaultStartDelay / time.Millisecond),
			TimeoutSeconds: int(apimanager.DefaultTimeout / time.Second),
			RestorePolicy:  apimanager.RestoreOnVacate.String(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			ListenAddr: ":9090",
		},
		APIs: map[string]EndpointConfig{},
	}
}

// Validate checks enum fields and ranges.
func (c *Config) Validate() error {
	if c.Client.BaseURL != "" {
		u, err := url.Parse(c.Client.BaseURL)
		if err != nil || !u.IsAbs() {
			return fmt.Errorf("client.base_url %q must be an absolute URL", c.Client.BaseURL)
		}
	}
	if c.Client.StartDelayMS < 0 {
		return fmt.Errorf("client.start_delay_ms must be non-negative, got %d", c.Client.StartDelayMS)
	}
	if c.Client.TimeoutSeconds <= 0 {
		return fmt.Errorf("client.timeout_seconds must be positive, got %d", c.Client.TimeoutSeconds)
	}
	if _, ok := apimanager.ParseRestorePolicy(c.Client.RestorePolicy); !ok {
		return fmt.Errorf("invalid client.restore_policy %q: must be one of vacate, delivered", c.Client.RestorePolicy)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging.format %q: must be one of text, json", c.Logging.Format)
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		return fmt.Errorf("metrics.listen_addr is required when metrics are enabled")
	}

	for _, name := range c.APINames() {
		api := c.APIs[name]
		if api.Path == "" {
			return fmt.Errorf("apis.%s.path is required", name)
		}
		if _, ok := apimanager.ParseContentKind(api.ContentKind); !ok {
			return fmt.Errorf("invalid apis.%s.content_kind %q: must be one of empty, json, form", name, api.ContentKind)
		}
		if api.StartDelayMS != nil && *api.StartDelayMS < 0 {
			return fmt.Errorf("apis.%s.start_delay_ms must be non-negative", name)
		}
	}
	return nil
}

// APINames returns the configured endpoint identities, sorted.
func (c *Config) APINames() []string {
	names := make([]string, 0, len(c.APIs))
	for name := range c.APIs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Endpoint returns the configured endpoint with the given identity together
// with its per-call options.
func (c *Config) Endpoint(name string) (apimanager.Endpoint, []apimanager.CallOption, bool) {
	api, ok := c.APIs[name]
	if !ok {
		return apimanager.Endpoint{}, nil, false
	}

	kind, _ := apimanager.ParseContentKind(api.ContentKind)
	endpoint := apimanager.Endpoint{
		Name: apimanager.Identity(name),
		URL:  api.Path,
		Kind: kind,
	}

	var opts []apimanager.CallOption
	if api.StartDelayMS != nil {
		opts = append(opts, apimanager.WithCallDelay(time.Duration(*api.StartDelayMS)*time.Millisecond))
	}
	return endpoint, opts, true
}

// ClientOptions converts the client section into apimanager options.
func (c *Config) ClientOptions(logger *slog.Logger) []apimanager.Option {
	policy, _ := apimanager.ParseRestorePolicy(c.Client.RestorePolicy)

	opts := []apimanager.Option{
		apimanager.WithStartDelay(time.Duration(c.Client.StartDelayMS) * time.Millisecond),
		apimanager.WithTimeout(time.Duration(c.Client.TimeoutSeconds) * time.Second),
		apimanager.WithRestorePolicy(policy),
		apimanager.WithLogger(logger),
	}
	if c.Client.BaseURL != "" {
		opts = append(opts, apimanager.WithBaseURL(c.Client.BaseURL))
	}
	if c.Client.AppVersion != "" {
		opts = append(opts, apimanager.WithAppVersion(c.Client.AppVersion))
	}
	return opts
}
