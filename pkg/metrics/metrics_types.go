package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application
type Registry struct {
	// Input Metrics
	InputsTotal           *prometheus.CounterVec
	ValidationErrorsTotal *prometheus.CounterVec

	// Calculation Metrics
	CalculationsTotal    *prometheus.CounterVec
	CalculationDuration  prometheus.Histogram
	NodesCalculatedTotal *prometheus.CounterVec
	TrialsSimulatedTotal prometheus.Counter

	// Meta-model Metrics
	MetaModelsTotal     *prometheus.CounterVec
	MetaModelComponents prometheus.Histogram

	// Store Metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initModelMetrics()
	r.initStoreMetrics()

	return r
}

// WriteTextfile writes every metric in the Prometheus text format, for
// collection by node_exporter's textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
