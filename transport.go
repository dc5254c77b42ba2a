package apimanager

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Transport holds the shared *http.Client behind a read/write lock. Calls hold
// the read lock for the whole request; Configure takes the write lock, so a
// call in flight always finishes on the client it started with.
type Transport struct {
	mu       sync.RWMutex
	client   *http.Client
	config   TransportConfig
	gen      atomic.Uint64
	defaults TransportConfig
	base     http.RoundTripper
	onSwap   func(TransportConfig)
}

// NewTransport builds a holder using defaults as both the initial and the
// restore configuration. base, when non-nil, replaces the network transport
// and receives requests unchanged; the timeouts then only bound the whole
// exchange through http.Client.Timeout.
func NewTransport(defaults TransportConfig, base http.RoundTripper) *Transport {
	t := &Transport{
		config:   defaults,
		defaults: defaults,
		base:     base,
	}
	t.client = t.build(defaults)
	return t
}

// build returns a new client for cfg. Clients are never modified after build.
func (t *Transport) build(cfg TransportConfig) *http.Client {
	if t.base != nil {
		return &http.Client{
			Transport: t.base,
			Timeout:   cfg.ConnectTimeout + cfg.ReadTimeout + cfg.WriteTimeout,
		}
	}

	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &deadlineConn{Conn: conn, read: cfg.ReadTimeout, write: cfg.WriteTimeout}, nil
		},
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout + cfg.WriteTimeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       30 * time.Second,
	}

	return &http.Client{Transport: transport}
}

// Snapshot identifies the configuration a call observed. Generation grows by
// one with every swap.
type Snapshot struct {
	Config     TransportConfig
	Generation uint64
}

// Configure swaps in a client built from cfg. It blocks until every call
// holding the previous client has finished.
func (t *Transport) Configure(cfg TransportConfig) {
	next := t.build(cfg)

	t.mu.Lock()
	prev := t.swap(next, cfg)
	t.mu.Unlock()

	t.swapped(prev, cfg)
}

// Reset restores the default configuration.
func (t *Transport) Reset() {
	t.Configure(t.defaults)
}

// RestoreIf restores the defaults only if no swap happened since generation
// gen and the configuration in effect is not already the default. It reports
// whether a swap took place.
func (t *Transport) RestoreIf(gen uint64) bool {
	t.mu.Lock()
	if t.gen.Load() != gen || t.config == t.defaults {
		t.mu.Unlock()
		return false
	}
	prev := t.swap(t.build(t.defaults), t.defaults)
	t.mu.Unlock()

	t.swapped(prev, t.defaults)
	return true
}

// swap must be called with the write lock held.
func (t *Transport) swap(next *http.Client, cfg TransportConfig) *http.Client {
	prev := t.client
	t.client = next
	t.config = cfg
	t.gen.Add(1)
	return prev
}

func (t *Transport) swapped(prev *http.Client, cfg TransportConfig) {
	if tr, ok := prev.Transport.(*http.Transport); ok {
		tr.CloseIdleConnections()
	}
	if t.onSwap != nil {
		t.onSwap(cfg)
	}
}

// Config returns the configuration currently in effect.
func (t *Transport) Config() TransportConfig {
	return t.Current().Config
}

// Current returns the configuration in effect with its generation.
func (t *Transport) Current() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{Config: t.config, Generation: t.gen.Load()}
}

// Generation returns the number of swaps so far. Unlike Current it never
// waits for a pending Configure.
func (t *Transport) Generation() uint64 {
	return t.gen.Load()
}

// Defaults returns the restore configuration.
func (t *Transport) Defaults() TransportConfig {
	return t.defaults
}

// IsDefault reports whether the configuration in effect equals the defaults.
func (t *Transport) IsDefault() bool {
	return t.Config() == t.defaults
}

// Do sends req with the current client and passes the response to read while
// still holding the read lock. The response body is closed afterwards.
func (t *Transport) Do(req *http.Request, read func(resp *http.Response, snap Snapshot) error) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return read(resp, Snapshot{Config: t.config, Generation: t.gen.Load()})
}

// deadlineConn applies per-operation deadlines, giving read and write timeouts
// the meaning of maximum idle time per I/O operation.
type deadlineConn struct {
	net.Conn
	read  time.Duration
	write time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if c.read > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.read)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if c.write > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.write)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}
