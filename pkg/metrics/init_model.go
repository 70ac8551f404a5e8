package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initModelMetrics() {
	r.InputsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "fair_inputs_total",
			Help: "Total number of node inputs by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	r.ValidationErrorsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "fair_validation_errors_total",
			Help: "Total number of rejected inputs by target node",
		},
		[]string{"factor"},
	)

	r.CalculationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "fair_calculations_total",
			Help: "Total number of calculate-all runs by outcome",
		},
		[]string{"status"},
	)

	r.CalculationDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fair_calculation_duration_seconds",
			Help:    "Duration of calculate-all runs in seconds",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
	)

	r.NodesCalculatedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "fair_nodes_calculated_total",
			Help: "Total number of derived node vectors by node",
		},
		[]string{"factor"},
	)

	r.TrialsSimulatedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "fair_trials_simulated_total",
			Help: "Total number of Monte Carlo trials resolved to a Risk value",
		},
	)

	r.MetaModelsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "fair_metamodels_total",
			Help: "Total number of meta-model aggregations by outcome",
		},
		[]string{"status"},
	)

	r.MetaModelComponents = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fair_metamodel_components",
			Help:    "Number of component models per meta-model",
			Buckets: []float64{1, 2, 5, 10, 25, 50},
		},
	)
}
