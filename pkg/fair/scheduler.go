package fair

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/dd0wney/cluso-fair/pkg/logging"
)

// CalculateAll derives every Calculable node until the tree reaches a
// fixpoint. It returns a *NotReadyError while any node is Required.
//
// Each pass works on a snapshot of the Calculable nodes and computes those
// whose children are resolved; nodes unblocked during a pass are picked up
// by the next one. Calling CalculateAll again without new input is a no-op.
func (m *Model) CalculateAll() error {
	start := time.Now()
	if !m.tree.ReadyForCalculation() {
		err := &NotReadyError{Statuses: m.tree.Statuses()}
		m.finish(start, nil, err)
		return err
	}

	var derived []string
	for passes := 0; ; passes++ {
		pending := m.tree.Calculable()
		if len(pending) == 0 {
			break
		}
		progressed := false
		for _, f := range pending {
			ok, err := m.calculateNode(f)
			if err != nil {
				m.finish(start, derived, err)
				return err
			}
			if ok {
				progressed = true
				derived = append(derived, f.String())
			}
		}
		if !progressed {
			err := fmt.Errorf("%w after %d passes: %v", ErrStalled, passes, pending)
			m.finish(start, derived, err)
			return err
		}
	}

	m.finish(start, derived, nil)
	return nil
}

// calculateNode computes f if both children are resolved.
func (m *Model) calculateNode(f Factor) (bool, error) {
	first, second, ok := f.Children()
	if !ok {
		return false, nil
	}
	if !m.tree.Status(first).Resolved() || !m.tree.Status(second).Resolved() {
		return false, nil
	}
	// For Vulnerability, first is Control Strength and second is Threat
	// Capability; the topology fixes that order.
	m.vectors[f] = Combine(f.Combinator(), m.vectors[first], m.vectors[second])
	if err := m.tree.UpdateStatus(f, Calculated); err != nil {
		return false, err
	}
	m.logger.Debug("node calculated", logging.Factor(f.String()), logging.String("combinator", f.Combinator().String()))
	return true, nil
}

func (m *Model) finish(start time.Time, derived []string, err error) {
	elapsed := time.Since(start)
	if m.metrics != nil {
		m.metrics.RecordCalculation(elapsed, m.simulations, derived, err)
	}
	if err != nil {
		m.logger.Warn("calculation failed", logging.Latency(elapsed), logging.Error(err))
		return
	}
	fields := []logging.Field{
		logging.Count(len(derived)),
		logging.Simulations(m.simulations),
		logging.Seed(m.seed),
		logging.Latency(elapsed),
	}
	if risk := m.vectors[Risk]; m.tree.Status(Risk).Resolved() && len(risk) > 0 {
		fields = append(fields, logging.Float64("mean_risk", stat.Mean(risk, nil)))
	}
	m.logger.Info("calculation completed", fields...)
}
