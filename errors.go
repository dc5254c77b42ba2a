package apimanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"time"
)

// Sentinel errors for common failure scenarios
var (
	// ErrSuperseded is the cancellation cause of a call replaced by a newer
	// call for the same API.
	ErrSuperseded = errors.New("apimanager: superseded by newer call")

	// ErrUnsupportedContent is returned when a payload does not fit the API's content kind.
	ErrUnsupportedContent = errors.New("apimanager: unsupported payload for content kind")

	// ErrPayloadRequired is returned when a JSON or form API is called without a payload.
	ErrPayloadRequired = errors.New("apimanager: payload required")

	// ErrInvalidAPI is returned for an API without identity or path.
	ErrInvalidAPI = errors.New("apimanager: invalid api definition")
)

// Error types
const (
	ErrorTypeCanceled        = "Canceled"
	ErrorTypeApplicationFail = "ApplicationFail"
	ErrorTypeNetwork         = "Network"
	ErrorTypeOther           = "Other"
	ErrorTypeValidation      = "Validation"
)

// CallError describes a failed call with enough context for logging.
type CallError struct {
	Type       string
	Message    string
	Cause      error
	API        Identity
	CallID     string
	URL        string
	StatusCode int
	Timestamp  time.Time
	Duration   time.Duration
}

// Error implements error interface.
func (e *CallError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.API != "" {
		msg = fmt.Sprintf("[%s] %s", e.API, msg)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *CallError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *CallError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*CallError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *CallError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.API != "" {
		info += fmt.Sprintf("API: %s\n", e.API)
	}
	if e.CallID != "" {
		info += fmt.Sprintf("Call ID: %s\n", e.CallID)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// Classify maps an error from building, sending or decoding a request onto the
// call error taxonomy. A nil error classifies as "".
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Type
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, ErrSuperseded) {
		return ErrorTypeCanceled
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return ErrorTypeOther
	}

	if IsNetwork(err) {
		return ErrorTypeNetwork
	}

	return ErrorTypeOther
}

// IsNetwork reports whether err is a connectivity or I/O failure.
func IsNetwork(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	// *url.Error satisfies net.Error itself, so judge by what it wraps.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return IsNetwork(urlErr.Err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return false
}
