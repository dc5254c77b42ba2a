package apimanager

import (
	"net/http"
	"time"
)

// Identity names one logical API. Two calls with the same Identity are the same
// API for supersession purposes, whatever their parameters.
type Identity string

// ContentKind describes how a call's payload is encoded on the wire.
type ContentKind int

const (
	ContentEmpty ContentKind = iota
	ContentJSON
	ContentForm
)

func (k ContentKind) String() string {
	switch k {
	case ContentEmpty:
		return "empty"
	case ContentJSON:
		return "json"
	case ContentForm:
		return "form"
	default:
		return "unknown"
	}
}

// ParseContentKind parses the names produced by ContentKind.String.
func ParseContentKind(s string) (ContentKind, bool) {
	switch s {
	case "", "empty":
		return ContentEmpty, true
	case "json":
		return ContentJSON, true
	case "form":
		return ContentForm, true
	default:
		return ContentEmpty, false
	}
}

// API is implemented by every endpoint definition handed to Call.
type API interface {
	Identity() Identity
	Path() string
	ContentKind() ContentKind
}

// Endpoint is a plain API value for endpoints that need no behavior of their own.
type Endpoint struct {
	Name Identity
	URL  string
	Kind ContentKind
}

func (e Endpoint) Identity() Identity       { return e.Name }
func (e Endpoint) Path() string             { return e.URL }
func (e Endpoint) ContentKind() ContentKind { return e.Kind }

// Response carries the decoded model together with the raw body text.
type Response[T any] struct {
	Data       T
	Raw        string
	StatusCode int
	Header     http.Header
}

// State is a step of a call's lifecycle.
type State int

const (
	StateCreated State = iota
	StateDelaying
	StateDispatching
	StateAwaitingResponse
	StateDelivered
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateDelaying:
		return "delaying"
	case StateDispatching:
		return "dispatching"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateDelivered:
		return "delivered"
	case StateCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen from s.
func (s State) Terminal() bool {
	return s == StateDelivered || s == StateCanceled
}

// TransportConfig is an immutable set of transport timeouts. It is replaced as
// a whole, never mutated in place.
type TransportConfig struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DefaultTimeout is applied to every transport timeout unless configured otherwise.
const DefaultTimeout = 10 * time.Second

// DefaultStartDelay coalesces rapid repeated triggers of the same API.
const DefaultStartDelay = 300 * time.Millisecond

// DefaultTransportConfig returns the 10s/10s/10s configuration.
func DefaultTransportConfig() TransportConfig {
	return UniformTransportConfig(DefaultTimeout)
}

// UniformTransportConfig returns a configuration using d for every timeout.
func UniformTransportConfig(d time.Duration) TransportConfig {
	return TransportConfig{ConnectTimeout: d, ReadTimeout: d, WriteTimeout: d}
}

// RestorePolicy decides when a non-default transport configuration is put back
// to the client's default.
type RestorePolicy int

const (
	// RestoreOnVacate restores whenever the last owner of an identity leaves
	// its slot, including owners whose own context was canceled.
	RestoreOnVacate RestorePolicy = iota
	// RestoreOnDelivered restores only after a call delivered an outcome.
	RestoreOnDelivered
)

func (p RestorePolicy) String() string {
	if p == RestoreOnDelivered {
		return "delivered"
	}
	return "vacate"
}

// ParseRestorePolicy parses "vacate" or "delivered".
func ParseRestorePolicy(s string) (RestorePolicy, bool) {
	switch s {
	case "", "vacate":
		return RestoreOnVacate, true
	case "delivered":
		return RestoreOnDelivered, true
	default:
		return RestoreOnVacate, false
	}
}

// Option configures a Client.
type Option func(*Client)

// CallOption configures a single Call.
type CallOption func(*callOptions)

type callOptions struct {
	startDelay  time.Duration
	debug       bool
	debugResult DebugResult
}
