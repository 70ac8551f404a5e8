package metrics

import (
	"time"
)

// Outcome labels
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func outcome(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// RecordInput records one node input. A rejected input also counts against
// its target node.
func (r *Registry) RecordInput(kind, factor string, err error) {
	r.InputsTotal.WithLabelValues(kind, outcome(err)).Inc()
	if err != nil {
		r.ValidationErrorsTotal.WithLabelValues(factor).Inc()
	}
}

// RecordCalculation records a calculate-all run and the nodes it derived.
func (r *Registry) RecordCalculation(duration time.Duration, trials int, derived []string, err error) {
	r.CalculationsTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return
	}
	r.CalculationDuration.Observe(duration.Seconds())
	for _, factor := range derived {
		r.NodesCalculatedTotal.WithLabelValues(factor).Inc()
	}
	if len(derived) > 0 {
		r.TrialsSimulatedTotal.Add(float64(trials))
	}
}

// RecordMetaModel records a meta-model aggregation.
func (r *Registry) RecordMetaModel(components int, err error) {
	r.MetaModelsTotal.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		r.MetaModelComponents.Observe(float64(components))
	}
}

// RecordStoreOperation records a store operation
func (r *Registry) RecordStoreOperation(backend, operation string, duration time.Duration, err error) {
	r.StoreOperationsTotal.WithLabelValues(backend, operation, outcome(err)).Inc()
	r.StoreOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}
