package apimanager

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestWithBaseURL(t *testing.T) {
	client := New(WithBaseURL("https://api.example.com/v1"))

	if client.baseURL == nil || client.baseURL.String() != "https://api.example.com/v1" {
		t.Errorf("Expected base URL to be set, got %v", client.baseURL)
	}
	if !client.IsValid() {
		t.Errorf("Expected valid client, got %v", client.ValidationError())
	}
}

func TestWithBaseURLInvalid(t *testing.T) {
	client := New(WithBaseURL("/relative"))

	if client.IsValid() {
		t.Fatal("Expected relative base URL to fail validation")
	}
	if !strings.Contains(client.ValidationError().Error(), "must be an absolute URL") {
		t.Errorf("Unexpected validation error %v", client.ValidationError())
	}
}

func TestWithAppVersion(t *testing.T) {
	client := New(WithAppVersion("4.5.6"))

	if got := client.Headers().Get(HeaderAppVersion); got != "4.5.6" {
		t.Errorf("Expected AppVersion=4.5.6, got %q", got)
	}
}

func TestWithHeaderAndAuth(t *testing.T) {
	client := New(WithHeader("X-Device", "android"), WithAuth("tok"))

	if got := client.Headers().Get("X-Device"); got != "android" {
		t.Errorf("Expected X-Device=android, got %q", got)
	}
	if got := client.Headers().Get(HeaderAuthorization); got != "Bearer tok" {
		t.Errorf("Expected bearer token, got %q", got)
	}
}

func TestWithStartDelay(t *testing.T) {
	client := New(WithStartDelay(time.Second))

	if client.startDelay != time.Second {
		t.Errorf("Expected startDelay=1s, got %v", client.startDelay)
	}

	if New(WithStartDelay(-time.Second)).IsValid() {
		t.Error("Expected negative start delay to fail validation")
	}
}

func TestWithTimeout(t *testing.T) {
	client := New(WithTimeout(5 * time.Second))

	want := UniformTransportConfig(5 * time.Second)
	if client.TransportConfig() != want {
		t.Errorf("Expected %+v, got %+v", want, client.TransportConfig())
	}
	if client.Transport().Defaults() != want {
		t.Errorf("Expected defaults %+v, got %+v", want, client.Transport().Defaults())
	}
}

func TestWithTransportConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  TransportConfig
		want string
	}{
		{"zero connect", TransportConfig{ReadTimeout: time.Second, WriteTimeout: time.Second}, "connect timeout must be positive"},
		{"zero read", TransportConfig{ConnectTimeout: time.Second, WriteTimeout: time.Second}, "read timeout must be positive"},
		{"zero write", TransportConfig{ConnectTimeout: time.Second, ReadTimeout: time.Second}, "write timeout must be positive"},
		{"too long", UniformTransportConfig(time.Hour), "timeout > 10m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := New(WithTransportConfig(tt.cfg))
			if client.IsValid() {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(client.ValidationError().Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, client.ValidationError())
			}
		})
	}
}

func TestWithHTTPTransport(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(req, http.StatusOK, `{}`), nil
	})
	client := New(WithHTTPTransport(rt))

	if client.roundTripper == nil {
		t.Error("Expected round tripper to be set")
	}
}

func TestWithRegistry(t *testing.T) {
	r := NewRegistry()
	client := New(WithRegistry(r))

	if client.Registry() != r {
		t.Error("Expected client to use the supplied registry")
	}
}

func TestWithRestorePolicy(t *testing.T) {
	client := New(WithRestorePolicy(RestoreOnDelivered))
	if client.restorePolicy != RestoreOnDelivered {
		t.Errorf("Expected RestoreOnDelivered, got %s", client.restorePolicy)
	}

	if New(WithRestorePolicy(RestorePolicy(7))).IsValid() {
		t.Error("Expected unknown restore policy to fail validation")
	}
}

func TestWithMetricsRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	client := New(WithMetricsRegistry(registry))

	if client.Metrics() == nil {
		t.Fatal("Expected metrics collector")
	}
	if client.Metrics().GetRegistry() != registry {
		t.Error("Expected collector to use the supplied registry")
	}
}

func TestWithMetricsCollector(t *testing.T) {
	collector := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())
	client := New(WithMetricsCollector(collector))

	if client.Metrics() != collector {
		t.Error("Expected client to use the supplied collector")
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	client := New(WithLogger(logger))
	client.SetAuth("secret-token")

	out := buf.String()
	if !strings.Contains(out, "set auth") {
		t.Errorf("Expected auth change to be logged, got %q", out)
	}
	if strings.Contains(out, "secret-token") {
		t.Errorf("Expected token to be redacted, got %q", out)
	}

	if New(WithLogger(nil)).logger == nil {
		t.Error("Expected nil logger to be replaced")
	}
}

func TestWithCallIDGeneratorNil(t *testing.T) {
	client := New(WithCallIDGenerator(nil))

	if client.IsValid() {
		t.Error("Expected nil call id generator to fail validation")
	}
}

func TestCallOptions(t *testing.T) {
	var o callOptions
	WithCallDelay(25 * time.Millisecond)(&o)
	WithDebugResult(DebugFail("1", "x"))(&o)

	if o.startDelay != 25*time.Millisecond {
		t.Errorf("Expected call delay 25ms, got %v", o.startDelay)
	}
	if !o.debug || o.debugResult.Outcome() != OutcomeFail {
		t.Errorf("Expected debug fail result, got %+v", o)
	}
}
