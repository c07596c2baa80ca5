// Package observability carries the service's Prometheus metrics and the
// OpenTelemetry tracing provider.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig holds configuration for the Metrics collector.
type MetricsConfig struct {
	Namespace      string   `yaml:"namespace" json:"namespace"`
	MetricsPath    string   `yaml:"metrics_path" json:"metrics_path"`
	EnabledMetrics []string `yaml:"enabled_metrics" json:"enabled_metrics"`
}

// DefaultMetricsConfig returns the default configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:      "provision",
		MetricsPath:    "/metrics",
		EnabledMetrics: []string{"requests", "stages", "terraform", "locks", "resources"},
	}
}

func metricsEnabled(enabledList []string, name string) bool {
	for _, e := range enabledList {
		if e == name {
			return true
		}
	}
	return false
}

// Metrics wraps the Prometheus metric vectors the pipeline records into. It
// owns its registry so tests and embedded uses never collide with the global
// one.
type Metrics struct {
	config   MetricsConfig
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	TerraformRuns    *prometheus.CounterVec
	ActiveLocks      *prometheus.GaugeVec
	TrackedResources *prometheus.GaugeVec
}

// NewMetrics creates a Metrics collector with the default configuration.
func NewMetrics() *Metrics {
	return NewMetricsWithConfig(DefaultMetricsConfig())
}

// NewMetricsWithConfig creates a Metrics collector with the given config.
func NewMetricsWithConfig(cfg MetricsConfig) *Metrics {
	reg := prometheus.NewRegistry()
	enabled := cfg.EnabledMetrics
	ns := cfg.Namespace

	m := &Metrics{
		config:   cfg,
		registry: reg,
	}

	if metricsEnabled(enabled, "requests") {
		m.RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "requests_total",
			Help:      "Total number of provisioning requests",
		}, []string{"kind", "operation", "status"})
		reg.MustRegister(m.RequestsTotal)
	}

	if metricsEnabled(enabled, "stages") {
		m.StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "stage"})
		reg.MustRegister(m.StageDuration)
	}

	if metricsEnabled(enabled, "terraform") {
		m.TerraformRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "terraform_runs_total",
			Help:      "Total number of terraform command invocations",
		}, []string{"command", "status"})
		reg.MustRegister(m.TerraformRuns)
	}

	if metricsEnabled(enabled, "locks") {
		m.ActiveLocks = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "active_locks",
			Help:      "Number of currently held workspace locks",
		}, []string{"workspace"})
		reg.MustRegister(m.ActiveLocks)
	}

	if metricsEnabled(enabled, "resources") {
		m.TrackedResources = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "tracked_resources",
			Help:      "Number of tracked resource records by kind and status",
		}, []string{"kind", "status"})
		reg.MustRegister(m.TrackedResources)
	}

	return m
}

// MetricsPath returns the configured metrics endpoint path.
func (m *Metrics) MetricsPath() string { return m.config.MetricsPath }

// Handler returns an HTTP handler that serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments the request counter.
func (m *Metrics) RecordRequest(kind, operation, status string) {
	if m.RequestsTotal != nil {
		m.RequestsTotal.WithLabelValues(kind, operation, status).Inc()
	}
}

// RecordStage records the duration of one pipeline stage.
func (m *Metrics) RecordStage(kind, stage string, duration time.Duration) {
	if m.StageDuration != nil {
		m.StageDuration.WithLabelValues(kind, stage).Observe(duration.Seconds())
	}
}

// RecordTerraformRun increments the terraform invocation counter.
func (m *Metrics) RecordTerraformRun(command, status string) {
	if m.TerraformRuns != nil {
		m.TerraformRuns.WithLabelValues(command, status).Inc()
	}
}

// LockAcquired increments the active lock gauge for a workspace key.
func (m *Metrics) LockAcquired(workspace string) {
	if m.ActiveLocks != nil {
		m.ActiveLocks.WithLabelValues(workspace).Inc()
	}
}

// LockReleased decrements the active lock gauge for a workspace key.
func (m *Metrics) LockReleased(workspace string) {
	if m.ActiveLocks != nil {
		m.ActiveLocks.WithLabelValues(workspace).Dec()
	}
}

// SetTrackedResources sets the tracked resource gauge for a kind and status.
func (m *Metrics) SetTrackedResources(kind, status string, count float64) {
	if m.TrackedResources != nil {
		m.TrackedResources.WithLabelValues(kind, status).Set(count)
	}
}
