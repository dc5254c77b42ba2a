package apimanager

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewTransportDefaults(t *testing.T) {
	tr := NewTransport(DefaultTransportConfig(), nil)

	if tr.Config() != DefaultTransportConfig() {
		t.Errorf("Expected default config, got %+v", tr.Config())
	}
	if !tr.IsDefault() {
		t.Error("Expected IsDefault to be true")
	}
	if tr.Current().Generation != 0 {
		t.Errorf("Expected generation 0, got %d", tr.Current().Generation)
	}
}

func TestTransportConfigureSwaps(t *testing.T) {
	var swapped []TransportConfig
	tr := NewTransport(DefaultTransportConfig(), nil)
	tr.onSwap = func(cfg TransportConfig) { swapped = append(swapped, cfg) }

	cfg := UniformTransportConfig(30 * time.Second)
	tr.Configure(cfg)

	if tr.Config() != cfg {
		t.Errorf("Expected %+v, got %+v", cfg, tr.Config())
	}
	if tr.IsDefault() {
		t.Error("Expected IsDefault to be false")
	}
	if tr.Current().Generation != 1 {
		t.Errorf("Expected generation 1, got %d", tr.Current().Generation)
	}

	tr.Reset()
	if !tr.IsDefault() {
		t.Error("Expected defaults after Reset")
	}
	if len(swapped) != 2 {
		t.Errorf("Expected two swap notifications, got %d", len(swapped))
	}
}

func TestTransportRestoreIf(t *testing.T) {
	tr := NewTransport(DefaultTransportConfig(), nil)

	if tr.RestoreIf(0) {
		t.Error("Expected no restore when already at defaults")
	}

	tr.Configure(UniformTransportConfig(30 * time.Second))
	gen := tr.Current().Generation

	tr.Configure(UniformTransportConfig(45 * time.Second))
	if tr.RestoreIf(gen) {
		t.Error("Expected no restore after a newer swap")
	}
	if tr.Config() != UniformTransportConfig(45*time.Second) {
		t.Errorf("Expected newer configuration to survive, got %+v", tr.Config())
	}

	if !tr.RestoreIf(tr.Current().Generation) {
		t.Error("Expected restore for the current generation")
	}
	if !tr.IsDefault() {
		t.Errorf("Expected defaults, got %+v", tr.Config())
	}
}

// A call holding the transport finishes on the configuration it started
// with, and Configure waits for it.
func TestTransportConfigureWaitsForReaders(t *testing.T) {
	g := newGate(http.StatusOK, `{}`)
	tr := NewTransport(DefaultTransportConfig(), g)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, "https://example.com", nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	snapCh := make(chan Snapshot, 1)
	doneCh := make(chan error, 1)
	go func() {
		doneCh <- tr.Do(req, func(resp *http.Response, snap Snapshot) error {
			snapCh <- snap
			return nil
		})
	}()
	waitFor(t, g.entered, "request")

	configured := make(chan struct{})
	go func() {
		tr.Configure(UniformTransportConfig(30 * time.Second))
		close(configured)
	}()

	select {
	case <-configured:
		t.Fatal("Expected Configure to wait for the call in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(g.release)
	if err := <-doneCh; err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	snap := <-snapCh
	if snap.Config != DefaultTransportConfig() || snap.Generation != 0 {
		t.Errorf("Expected call to observe the pre-change configuration, got %+v", snap)
	}

	waitFor(t, configured, "Configure")
	if tr.Config() != UniformTransportConfig(30*time.Second) {
		t.Errorf("Expected new configuration, got %+v", tr.Config())
	}
}

func TestTransportGenerationDoesNotWaitForConfigure(t *testing.T) {
	g := newGate(http.StatusOK, `{}`)
	tr := NewTransport(DefaultTransportConfig(), g)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, "https://example.com", nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- tr.Do(req, func(resp *http.Response, snap Snapshot) error { return nil })
	}()
	waitFor(t, g.entered, "request")

	configured := make(chan struct{})
	go func() {
		tr.Configure(UniformTransportConfig(30 * time.Second))
		close(configured)
	}()
	time.Sleep(50 * time.Millisecond)

	genCh := make(chan uint64, 1)
	go func() { genCh <- tr.Generation() }()

	select {
	case gen := <-genCh:
		if gen != 0 {
			t.Errorf("Expected generation 0 before the swap, got %d", gen)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected Generation not to wait for a pending Configure")
	}

	close(g.release)
	if err := <-doneCh; err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	waitFor(t, configured, "Configure")
	if tr.Generation() != 1 {
		t.Errorf("Expected generation 1, got %d", tr.Generation())
	}
}

func TestTransportReadTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	tr := NewTransport(TransportConfig{
		ConnectTimeout: time.Second,
		ReadTimeout:    50 * time.Millisecond,
		WriteTimeout:   50 * time.Millisecond,
	}, nil)

	req, err := http.NewRequest(http.MethodPost, server.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	err = tr.Do(req, func(*http.Response, Snapshot) error { return nil })
	if err == nil {
		t.Fatal("Expected timeout error")
	}
	if !IsNetwork(err) {
		t.Errorf("Expected timeout to classify as network error, got %v", err)
	}
}

func TestTransportDoAgainstServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	tr := NewTransport(DefaultTransportConfig(), nil)
	req, err := http.NewRequest(http.MethodPost, server.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	status := 0
	err = tr.Do(req, func(resp *http.Response, _ Snapshot) error {
		status = resp.StatusCode
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if status != http.StatusAccepted {
		t.Errorf("Expected status 202, got %d", status)
	}
}
