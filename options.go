package apimanager

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WithBaseURL resolves relative API paths against base.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		u, err := url.Parse(base)
		if err != nil || !u.IsAbs() {
			c.pendingErrors = append(c.pendingErrors, fmt.Sprintf("baseURL %q must be an absolute URL", base))
			return
		}
		c.baseURL = u
	}
}

// WithAppVersion sends version in the AppVersion header.
func WithAppVersion(version string) Option {
	return func(c *Client) {
		c.appVersion = version
	}
}

// WithHeader sends a fixed header with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// WithAuth sets the initial bearer token.
func WithAuth(token string) Option {
	return func(c *Client) {
		c.headers.SetAuth(token)
	}
}

// WithStartDelay sets the default delay before a call is dispatched
func WithStartDelay(d time.Duration) Option {
	return func(c *Client) {
		c.startDelay = d
	}
}

// WithTimeout sets the default for every transport timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.defaults = UniformTransportConfig(d)
	}
}

// WithTransportConfig sets the default transport configuration, which is also
// the configuration restored after temporary overrides.
func WithTransportConfig(cfg TransportConfig) Option {
	return func(c *Client) {
		c.defaults = cfg
	}
}

// WithHTTPTransport replaces the network transport, e.g. with a test double.
func WithHTTPTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.roundTripper = rt
	}
}

// WithRegistry makes the client use an existing registry.
func WithRegistry(r *Registry) Option {
	return func(c *Client) {
		c.registry = r
	}
}

// WithRestorePolicy selects when temporary transport overrides are undone.
func WithRestorePolicy(p RestorePolicy) Option {
	return func(c *Client) {
		c.restorePolicy = p
	}
}

// WithMetrics enables Prometheus metrics collection on the default registerer
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsRegistry enables Prometheus metrics on registry.
func WithMetricsRegistry(registry prometheus.Registerer) Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollectorWithRegistry(registry)
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets the structured logger. Nil discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithCallIDGenerator sets the function generating per-call ids.
func WithCallIDGenerator(gen func() string) Option {
	return func(c *Client) {
		c.callIDGen = gen
	}
}

// WithTokenInvalidCallback registers the invalid credential hook.
func WithTokenInvalidCallback(fn func()) Option {
	return func(c *Client) {
		c.SetTokenInvalidCallback(fn)
	}
}

// WithCallDelay overrides the client's start delay for one call. Zero
// dispatches immediately.
func WithCallDelay(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.startDelay = d
	}
}

// WithDebugResult makes the call deliver result without any network I/O.
// Debug calls do not take part in supersession.
func WithDebugResult(result DebugResult) CallOption {
	return func(o *callOptions) {
		o.debug = true
		o.debugResult = result
	}
}

// ValidateConfiguration validates the client configuration and returns an error if invalid
func (c *Client) ValidateConfiguration() error {
	var errors []string

	errors = append(errors, c.pendingErrors...)
	errors = append(errors, c.validateTransportConfig()...)
	errors = append(errors, c.validateCallConfig()...)

	if len(errors) > 0 {
		return &CallError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", errors),
		}
	}

	return nil
}

func (c *Client) validateTransportConfig() []string {
	errors := positiveTimeoutErrors(c.defaults)

	if c.defaults.ConnectTimeout > 10*time.Minute ||
		c.defaults.ReadTimeout > 10*time.Minute ||
		c.defaults.WriteTimeout > 10*time.Minute {
		errors = append(errors, "timeout > 10m may cause requests to hang for too long")
	}

	return errors
}

func (c *Client) validateCallConfig() []string {
	var errors []string

	if c.startDelay < 0 {
		errors = append(errors, "start delay must be non-negative")
	}
	if c.callIDGen == nil {
		errors = append(errors, "call id generator cannot be nil")
	}
	if c.restorePolicy != RestoreOnVacate && c.restorePolicy != RestoreOnDelivered {
		errors = append(errors, "unknown restore policy")
	}

	return errors
}

func positiveTimeoutErrors(cfg TransportConfig) []string {
	var errors []string

	if cfg.ConnectTimeout <= 0 {
		errors = append(errors, "connect timeout must be positive")
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, "read timeout must be positive")
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, "write timeout must be positive")
	}

	return errors
}
