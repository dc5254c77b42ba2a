package apimanager

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewMetricsCollectorWithRegistry(registry)

	if collector == nil {
		t.Fatal("NewMetricsCollectorWithRegistry() returned nil")
	}
	if collector.callsTotal == nil {
		t.Error("callsTotal metric not initialized")
	}
	if collector.callDuration == nil {
		t.Error("callDuration metric not initialized")
	}
	if collector.callsInFlight == nil {
		t.Error("callsInFlight metric not initialized")
	}
	if collector.supersessionsTotal == nil {
		t.Error("supersessionsTotal metric not initialized")
	}
	if collector.registryEntries == nil {
		t.Error("registryEntries metric not initialized")
	}
	if collector.GetRegistry() != registry {
		t.Error("Expected GetRegistry to return the registerer")
	}
}

func TestMetricsCollectorNilSafe(t *testing.T) {
	var collector *MetricsCollector

	collector.RecordCallStart("Product")
	collector.RecordCallEnd("Product", "successful", time.Second)
	collector.RecordSupersession("Product")
	collector.RecordRegistrySize(3)
	collector.RecordTransportConfig(DefaultTransportConfig())
	collector.RecordTransportTimeouts(DefaultTransportConfig())
	collector.RecordTokenInvalid("Product")

	if collector.GetRegistry() != nil {
		t.Error("Expected nil registry for nil collector")
	}
}

func TestMetricsCollectorRecords(t *testing.T) {
	collector := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())

	collector.RecordCallStart("Product")
	if got := testutil.ToFloat64(collector.callsInFlight.WithLabelValues("Product")); got != 1 {
		t.Errorf("Expected 1 call in flight, got %v", got)
	}

	collector.RecordCallEnd("Product", "fail", 200*time.Millisecond)
	if got := testutil.ToFloat64(collector.callsInFlight.WithLabelValues("Product")); got != 0 {
		t.Errorf("Expected 0 calls in flight, got %v", got)
	}
	if got := testutil.ToFloat64(collector.callsTotal.WithLabelValues("Product", "fail")); got != 1 {
		t.Errorf("Expected 1 failed call, got %v", got)
	}

	collector.RecordTransportConfig(UniformTransportConfig(30 * time.Second))
	if got := testutil.ToFloat64(collector.transportReconfigurations); got != 1 {
		t.Errorf("Expected 1 reconfiguration, got %v", got)
	}
	if got := testutil.ToFloat64(collector.transportTimeout.WithLabelValues("read")); got != 30 {
		t.Errorf("Expected read timeout 30, got %v", got)
	}
}

func TestClientMetricsIntegration(t *testing.T) {
	registry := prometheus.NewRegistry()
	g := newGate(http.StatusOK, productListBody)
	c := newTestClient(g, WithMetricsRegistry(registry))
	m := c.Metrics()

	first := runCall[productList](context.Background(), c, productAPI, nil)
	waitFor(t, g.entered, "first request")

	if got := testutil.ToFloat64(m.registryEntries); got != 1 {
		t.Errorf("Expected 1 registry entry, got %v", got)
	}

	second := runCall[productList](context.Background(), c, productAPI, nil)
	waitFor(t, g.entered, "second request")
	close(g.release)
	waitState(t, second)
	waitState(t, first)

	if got := testutil.ToFloat64(m.supersessionsTotal.WithLabelValues("Product")); got != 1 {
		t.Errorf("Expected 1 supersession, got %v", got)
	}
	if got := testutil.ToFloat64(m.callsTotal.WithLabelValues("Product", "successful")); got != 1 {
		t.Errorf("Expected 1 successful call, got %v", got)
	}
	if got := testutil.ToFloat64(m.callsTotal.WithLabelValues("Product", "canceled")); got != 1 {
		t.Errorf("Expected 1 canceled call, got %v", got)
	}
	if got := testutil.ToFloat64(m.callsInFlight.WithLabelValues("Product")); got != 0 {
		t.Errorf("Expected 0 calls in flight, got %v", got)
	}
	if got := testutil.ToFloat64(m.registryEntries); got != 0 {
		t.Errorf("Expected empty registry gauge, got %v", got)
	}
}

func TestClientMetricsTokenInvalid(t *testing.T) {
	c := newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(req, http.StatusUnauthorized, ""), nil
	}), WithMetricsRegistry(prometheus.NewRegistry()))

	Call[productList](context.Background(), c, productAPI, nil, nil)

	if got := testutil.ToFloat64(c.Metrics().tokenInvalidTotal.WithLabelValues("Product")); got != 1 {
		t.Errorf("Expected 1 token invalid, got %v", got)
	}
}
