package fair

import (
	"bytes"
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-fair/pkg/logging"
	"github.com/dd0wney/cluso-fair/pkg/metrics"
)

func newTestModel(t *testing.T, opts ...Option) *Model {
	t.Helper()
	m, err := New("test model", append([]Option{WithSimulations(100)}, opts...)...)
	require.NoError(t, err)
	return m
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, c.Write(&metric))
	return metric.Counter.GetValue()
}

func constant(v float64) Params {
	return Params{ParamConstant: v}
}

// leafConstants resolves to Risk = 1 * 110.
var leafConstants = map[Factor]float64{
	ContactFrequency:            2,
	ProbabilityOfAction:         0.5,
	ControlStrength:             0.3,
	ThreatCapability:            0.8,
	PrimaryLoss:                 100,
	SecondaryLossEventFrequency: 0.5,
	SecondaryLossEventMagnitude: 20,
}

func TestNewDefaults(t *testing.T) {
	m, err := New("defaults")
	require.NoError(t, err)
	assert.Equal(t, DefaultSimulations, m.Simulations())
	assert.Equal(t, int64(DefaultSeed), m.Seed())
	assert.NotEmpty(t, m.UUID())
	assert.False(t, m.CreatedAt().IsZero())
	assert.False(t, m.ReadyForCalculation())

	_, err = New("broken", WithSimulations(0))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestConstantScenario(t *testing.T) {
	m := newTestModel(t)
	require.NoError(t, m.Input("Loss Event Frequency", constant(10)))
	require.NoError(t, m.Input("Loss Magnitude", constant(100)))
	require.True(t, m.ReadyForCalculation())

	require.NoError(t, m.CalculateAll())
	require.True(t, m.CalculationCompleted())

	risk, err := m.Risk()
	require.NoError(t, err)
	require.Len(t, risk, 100)
	for _, v := range risk {
		assert.Equal(t, 1000.0, v)
	}

	results := m.ExportResults()
	assert.Len(t, results, 3)
	assert.Contains(t, results, "Loss Event Frequency")
	assert.Contains(t, results, "Loss Magnitude")
	assert.NotContains(t, results, "Vulnerability")
}

func TestCalculateAllNotReady(t *testing.T) {
	m := newTestModel(t)
	require.NoError(t, m.Input("Loss Event Frequency", constant(10)))

	err := m.CalculateAll()
	require.ErrorIs(t, err, ErrNotReady)

	var notReady *NotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.Contains(t, notReady.Statuses.Required(), "Loss Magnitude")
	assert.Equal(t, "Required", m.NodeStatuses()["Risk"])

	_, err = m.Risk()
	assert.ErrorIs(t, err, ErrNotCalculated)
}

func TestCalculateFromLeaves(t *testing.T) {
	m := newTestModel(t)
	for f, v := range leafConstants {
		require.NoError(t, m.Input(f.String(), constant(v)))
	}
	require.NoError(t, m.CalculateAll())

	for f, want := range map[Factor]float64{
		ThreatEventFrequency: 1,
		Vulnerability:        1,
		LossEventFrequency:   1,
		SecondaryLoss:        10,
		LossMagnitude:        110,
		Risk:                 110,
	} {
		vec, ok := m.Vector(f)
		require.True(t, ok, "%v not resolved", f)
		assert.Equal(t, want, vec[0], "%v", f)
		assert.Equal(t, "Calculated", m.NodeStatuses()[f.String()])
	}
}

func TestVulnerabilityOperandOrder(t *testing.T) {
	tests := []struct {
		name             string
		controlStrength  float64
		threatCapability float64
		want             float64
	}{
		{"weak controls", 0.3, 0.8, 1},
		{"strong controls", 0.8, 0.3, 0},
		{"equal", 0.5, 0.5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel(t)
			require.NoError(t, m.Input("Threat Event Frequency", constant(1)))
			require.NoError(t, m.Input("Control Strength", constant(tt.controlStrength)))
			require.NoError(t, m.Input("Threat Capability", constant(tt.threatCapability)))
			require.NoError(t, m.Input("Loss Magnitude", constant(1)))
			require.NoError(t, m.CalculateAll())

			vuln, ok := m.Vector(Vulnerability)
			require.True(t, ok)
			for _, v := range vuln {
				require.Equal(t, tt.want, v)
			}
		})
	}
}

func TestCalculateAllIdempotent(t *testing.T) {
	m := newTestModel(t)
	require.NoError(t, m.Input("Loss Event Frequency", Params{ParamMean: 5, ParamStdev: 1}))
	require.NoError(t, m.Input("Loss Magnitude", Params{ParamLow: 10, ParamMode: 20, ParamHigh: 40}))

	require.NoError(t, m.CalculateAll())
	first := m.ExportResults()
	require.NoError(t, m.CalculateAll())
	assert.Equal(t, first, m.ExportResults())
}

func TestResupplyRecalculates(t *testing.T) {
	m := newTestModel(t)
	require.NoError(t, m.Input("Loss Event Frequency", constant(2)))
	require.NoError(t, m.Input("Loss Magnitude", constant(100)))
	require.NoError(t, m.CalculateAll())

	require.NoError(t, m.Input("Loss Magnitude", constant(300)))
	assert.False(t, m.CalculationCompleted())
	assert.Equal(t, "Calculable", m.NodeStatuses()["Risk"])
	_, err := m.Risk()
	assert.ErrorIs(t, err, ErrNotCalculated)

	require.NoError(t, m.CalculateAll())
	risk, err := m.Risk()
	require.NoError(t, err)
	assert.Equal(t, 600.0, risk[0])

	params := m.ExportParams()
	require.Len(t, params, 2)
	assert.Equal(t, LossEventFrequency, params[0].Factor)
	assert.Equal(t, LossMagnitude, params[1].Factor)
}

func TestInputBelowSuppliedNode(t *testing.T) {
	m := newTestModel(t)
	require.NoError(t, m.Input("Loss Event Frequency", constant(2)))
	require.NoError(t, m.Input("Loss Magnitude", constant(100)))
	require.NoError(t, m.CalculateAll())

	require.NoError(t, m.Input("Vulnerability", constant(0.5)))
	assert.Equal(t, "Not Required", m.NodeStatuses()["Vulnerability"])
	assert.True(t, m.CalculationCompleted())
	assert.NotContains(t, m.ExportResults(), "Vulnerability")

	risk, err := m.Risk()
	require.NoError(t, err)
	assert.Equal(t, 200.0, risk[0])
}

func TestInputErrorsLeaveModelUnchanged(t *testing.T) {
	m := newTestModel(t)
	before := m.Statuses()

	assert.ErrorIs(t, m.Input("Attack Surface", constant(1)), ErrUnknownNode)
	assert.ErrorIs(t, m.Input("Vulnerability", constant(2)), ErrValidation)
	assert.ErrorIs(t, m.InputRaw("Loss Magnitude", make([]float64, 50)), ErrLengthMismatch)
	assert.ErrorIs(t, m.InputMulti("Loss Magnitude", MultiParams{}), ErrValidation)

	assert.Equal(t, before, m.Statuses())
	assert.Empty(t, m.ExportParams())
	assert.Empty(t, m.ExportResults())
}

func TestInputRaw(t *testing.T) {
	m := newTestModel(t, WithSimulations(4))
	require.NoError(t, m.InputRaw("Loss Event Frequency", []float64{1, 2, 3, 4}))
	require.NoError(t, m.Input("Loss Magnitude", constant(10)))
	require.NoError(t, m.CalculateAll())

	risk, err := m.Risk()
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30, 40}, risk)
}

func TestInputMulti(t *testing.T) {
	m := newTestModel(t)
	err := m.InputMulti(MultiPrefix+"Secondary Loss", MultiParams{
		"Reputational": {
			"Secondary Loss Event Frequency": constant(0.5),
			"Secondary Loss Event Magnitude": constant(100),
		},
		"Legal": {
			"Secondary Loss Event Frequency": constant(0.25),
			"Secondary Loss Event Magnitude": constant(1000),
		},
	})
	require.NoError(t, err)

	statuses := m.NodeStatuses()
	assert.Equal(t, "Calculated", statuses["Secondary Loss"])
	assert.Equal(t, "Not Required", statuses["Secondary Loss Event Frequency"])
	assert.Equal(t, "Not Required", statuses["Secondary Loss Event Magnitude"])

	require.NoError(t, m.Input("Loss Event Frequency", constant(1)))
	require.NoError(t, m.Input("Primary Loss", constant(10)))
	require.NoError(t, m.CalculateAll())

	risk, err := m.Risk()
	require.NoError(t, err)
	assert.Equal(t, 310.0, risk[0])
}

func TestBulkImport(t *testing.T) {
	m := newTestModel(t)
	require.NoError(t, m.BulkImport(map[string]Params{
		"Loss Magnitude":       constant(3),
		"Loss Event Frequency": constant(2),
	}))
	params := m.ExportParams()
	require.Len(t, params, 2)
	assert.Equal(t, LossEventFrequency, params[0].Factor)
	require.NoError(t, m.CalculateAll())

	err := m.BulkImport(map[string]Params{"Attack Surface": constant(1)})
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestSameSeedSameResults(t *testing.T) {
	build := func(seed int64) Results {
		m := newTestModel(t, WithSeed(seed))
		require.NoError(t, m.Input("Loss Event Frequency", Params{ParamLow: 1, ParamMode: 5, ParamHigh: 20}))
		require.NoError(t, m.Input("Loss Magnitude", Params{ParamMean: 1000, ParamStdev: 200}))
		require.NoError(t, m.CalculateAll())
		return m.ExportResults()
	}

	assert.Equal(t, build(42), build(42))
	assert.NotEqual(t, build(42), build(43))
}

func TestModelLogsAndMetrics(t *testing.T) {
	var buf bytes.Buffer
	registry := metrics.NewRegistry()
	m := newTestModel(t,
		WithLogger(logging.NewJSONLogger(&buf, logging.DebugLevel)),
		WithMetrics(registry),
	)

	require.NoError(t, m.Input("Loss Event Frequency", constant(1)))
	require.Error(t, m.Input("Loss Magnitude", constant(-1)))
	require.NoError(t, m.Input("Loss Magnitude", constant(1)))
	require.NoError(t, m.CalculateAll())

	assert.Equal(t, 2.0, counterValue(t, registry.InputsTotal.WithLabelValues("parametric", metrics.StatusSuccess)))
	assert.Equal(t, 1.0, counterValue(t, registry.InputsTotal.WithLabelValues("parametric", metrics.StatusError)))
	assert.Equal(t, 1.0, counterValue(t, registry.NodesCalculatedTotal.WithLabelValues("Risk")))

	var sawCompletion bool
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry logging.LogEntry
		require.NoError(t, json.Unmarshal(line, &entry))
		assert.Equal(t, "test model", entry.Fields["model"])
		if entry.Message == "calculation completed" {
			sawCompletion = true
			assert.Equal(t, 1.0, entry.Fields["mean_risk"])
			assert.Equal(t, float64(DefaultSeed), entry.Fields["random_seed"])
		}
	}
	assert.True(t, sawCompletion)
}

func TestCalculationProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("leaf supply order does not change the result", prop.ForAll(
		func(keys []int) bool {
			leaves := Leaves()
			order := make([]int, len(leaves))
			for i := range order {
				order[i] = i
			}
			slices.SortStableFunc(order, func(a, b int) int { return keys[a] - keys[b] })

			m, err := New("order", WithSimulations(10))
			if err != nil {
				return false
			}
			for _, i := range order {
				f := leaves[i]
				if err := m.Input(f.String(), constant(leafConstants[f])); err != nil {
					return false
				}
			}
			if err := m.CalculateAll(); err != nil {
				return false
			}
			risk, err := m.Risk()
			return err == nil && risk[0] == 110
		},
		gen.SliceOfN(7, gen.IntRange(0, 100)),
	))

	properties.TestingRun(t)
}

func TestCalculateAllStalls(t *testing.T) {
	m := newTestModel(t)
	require.NoError(t, m.Input("Loss Event Frequency", constant(1)))
	require.NoError(t, m.Input("Loss Magnitude", constant(1)))
	// Force an inconsistent tree: Risk calculable with an unresolved child.
	m.tree.status[LossMagnitude] = Calculable

	err := m.CalculateAll()
	assert.True(t, errors.Is(err, ErrStalled), "error = %v", err)
}
