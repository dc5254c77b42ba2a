package apimanager

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for call coordination. All
// methods are no-ops on a nil collector.
type MetricsCollector struct {
	callsTotal    *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	callsInFlight *prometheus.GaugeVec

	supersessionsTotal *prometheus.CounterVec
	registryEntries    prometheus.Gauge

	transportReconfigurations prometheus.Counter
	transportTimeout          *prometheus.GaugeVec

	tokenInvalidTotal *prometheus.CounterVec

	registry prometheus.Registerer
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(registry)
	return &MetricsCollector{
		callsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apimanager_calls_total",
				Help: "Total number of finished API calls by outcome",
			},
			[]string{"api", "outcome"},
		),
		callDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apimanager_call_duration_seconds",
				Help:    "Duration of API calls in seconds, start delay included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"api", "outcome"},
		),
		callsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "apimanager_calls_in_flight",
				Help: "Number of API calls currently executing",
			},
			[]string{"api"},
		),
		supersessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apimanager_supersessions_total",
				Help: "Total number of calls canceled by a newer call to the same API",
			},
			[]string{"api"},
		),
		registryEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "apimanager_registry_entries",
				Help: "Number of APIs with a call in flight",
			},
		),
		transportReconfigurations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "apimanager_transport_reconfigurations_total",
				Help: "Total number of transport client swaps",
			},
		),
		transportTimeout: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "apimanager_transport_timeout_seconds",
				Help: "Transport timeouts currently in effect",
			},
			[]string{"kind"},
		),
		tokenInvalidTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apimanager_token_invalid_total",
				Help: "Total number of responses reporting an invalid credential",
			},
			[]string{"api"},
		),
		registry: registry,
	}
}

// RecordCallStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordCallStart(api Identity) {
	if mc == nil {
		return
	}

	mc.callsInFlight.WithLabelValues(string(api)).Inc()
}

// RecordCallEnd decrements the in-flight gauge and records the outcome. A
// canceled call is recorded with outcome "canceled".
func (mc *MetricsCollector) RecordCallEnd(api Identity, outcome string, duration time.Duration) {
	if mc == nil {
		return
	}

	mc.callsInFlight.WithLabelValues(string(api)).Dec()
	mc.callsTotal.WithLabelValues(string(api), outcome).Inc()
	mc.callDuration.WithLabelValues(string(api), outcome).Observe(duration.Seconds())
}

// RecordSupersession increments the supersession counter.
func (mc *MetricsCollector) RecordSupersession(api Identity) {
	if mc == nil {
		return
	}

	mc.supersessionsTotal.WithLabelValues(string(api)).Inc()
}

// RecordRegistrySize sets the registry gauge.
func (mc *MetricsCollector) RecordRegistrySize(size int) {
	if mc == nil {
		return
	}

	mc.registryEntries.Set(float64(size))
}

// RecordTransportConfig counts a client swap and exposes the new timeouts.
func (mc *MetricsCollector) RecordTransportConfig(cfg TransportConfig) {
	if mc == nil {
		return
	}

	mc.transportReconfigurations.Inc()
	mc.RecordTransportTimeouts(cfg)
}

// RecordTransportTimeouts exposes the timeouts in effect without counting a swap.
func (mc *MetricsCollector) RecordTransportTimeouts(cfg TransportConfig) {
	if mc == nil {
		return
	}

	mc.transportTimeout.WithLabelValues("connect").Set(cfg.ConnectTimeout.Seconds())
	mc.transportTimeout.WithLabelValues("read").Set(cfg.ReadTimeout.Seconds())
	mc.transportTimeout.WithLabelValues("write").Set(cfg.WriteTimeout.Seconds())
}

// RecordTokenInvalid increments the invalid credential counter.
func (mc *MetricsCollector) RecordTokenInvalid(api Identity) {
	if mc == nil {
		return
	}

	mc.tokenInvalidTotal.WithLabelValues(string(api)).Inc()
}

// GetRegistry exposes the registerer the collector was created with.
func (mc *MetricsCollector) GetRegistry() prometheus.Registerer {
	if mc == nil {
		return nil
	}
	return mc.registry
}
