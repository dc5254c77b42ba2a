package apimanager

import (
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/and4010/apimanager/internal/logutil"
)

// Client coordinates outbound API calls. It owns the header set, the shared
// transport and the registry of calls in flight, and is safe for concurrent
// use. Use one Client per logical backend; registries are never shared
// implicitly between clients.
type Client struct {
	baseURL       *url.URL
	headers       *HeaderStore
	transport     *Transport
	registry      *Registry
	defaults      TransportConfig
	roundTripper  http.RoundTripper
	startDelay    time.Duration
	restorePolicy RestorePolicy
	metrics       *MetricsCollector
	logger        *slog.Logger
	callIDGen     func() string
	appVersion    string
	tokenInvalid  atomic.Pointer[func()]

	pendingErrors   []string
	validationError error
}

// New constructs a Client using the provided functional options. Validation
// problems do not prevent construction; check IsValid / ValidationError.
func New(options ...Option) *Client {
	client := &Client{
		headers:       NewHeaderStore(),
		defaults:      DefaultTransportConfig(),
		startDelay:    DefaultStartDelay,
		restorePolicy: RestoreOnVacate,
		callIDGen:     uuid.NewString,
	}

	client.headers.Set(HeaderUserAgent, UserAgent())

	for _, option := range options {
		option(client)
	}

	client.logger = logutil.NoopIfNil(client.logger)
	if client.registry == nil {
		client.registry = NewRegistry()
	}
	client.registry.onChange = client.metrics.RecordRegistrySize

	client.transport = NewTransport(client.defaults, client.roundTripper)
	client.transport.onSwap = client.metrics.RecordTransportConfig
	client.metrics.RecordTransportTimeouts(client.defaults)

	if client.appVersion != "" {
		client.headers.Set(HeaderAppVersion, client.appVersion)
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// SetAuth sets the bearer token sent with every subsequent request. An empty
// token clears the value.
func (c *Client) SetAuth(token string) {
	c.logger.Debug("set auth", "authorization", logutil.RedactBearer("Bearer "+token))
	c.headers.SetAuth(token)
}

// RemoveHeader stops sending key with subsequent requests.
func (c *Client) RemoveHeader(key string) {
	c.headers.RemoveHeader(key)
}

// SetHeader sends key with every subsequent request.
func (c *Client) SetHeader(key, value string) {
	c.headers.Set(key, value)
}

// Headers exposes the client's header store.
func (c *Client) Headers() *HeaderStore {
	return c.headers
}

// SetTimeout applies seconds to every transport timeout. It blocks until the
// calls in flight on the previous configuration have finished. Non-positive
// values are logged and ignored.
func (c *Client) SetTimeout(seconds int) {
	c.SetTransportConfig(UniformTransportConfig(time.Duration(seconds) * time.Second))
}

// SetTransportConfig replaces the transport configuration. It blocks until the
// calls in flight on the previous configuration have finished. A configuration
// with a non-positive timeout is logged and ignored.
func (c *Client) SetTransportConfig(cfg TransportConfig) {
	if errs := positiveTimeoutErrors(cfg); len(errs) > 0 {
		c.logger.Warn("transport configuration rejected", "errors", errs)
		return
	}
	c.logger.Info("transport reconfigured",
		"connect_timeout", cfg.ConnectTimeout,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout)
	c.transport.Configure(cfg)
}

// TransportConfig returns the transport configuration in effect.
func (c *Client) TransportConfig() TransportConfig {
	return c.transport.Config()
}

// Transport exposes the client's transport holder.
func (c *Client) Transport() *Transport {
	return c.transport
}

// Registry exposes the client's registry of calls in flight.
func (c *Client) Registry() *Registry {
	return c.registry
}

// Pending reports whether a call for id is in flight.
func (c *Client) Pending(id Identity) bool {
	return c.registry.Contains(id)
}

// SetTokenInvalidCallback registers fn to run when a response reports an
// invalid or expired credential (HTTP 401). A nil fn removes the hook.
func (c *Client) SetTokenInvalidCallback(fn func()) {
	if fn == nil {
		c.tokenInvalid.Store(nil)
		return
	}
	c.tokenInvalid.Store(&fn)
}

func (c *Client) notifyTokenInvalid(api Identity) {
	c.metrics.RecordTokenInvalid(api)
	if fn := c.tokenInvalid.Load(); fn != nil {
		(*fn)()
	}
}

// Metrics returns the collector, or nil when metrics are disabled.
func (c *Client) Metrics() *MetricsCollector {
	return c.metrics
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}
