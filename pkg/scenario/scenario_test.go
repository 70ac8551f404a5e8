package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-fair/pkg/fair"
)

const singleModel = `
name: Ransomware
simulations: 200
seed: 7
inputs:
  Loss Magnitude: {low: 1000, most_likely: 5000, high: 20000}
  Threat Event Frequency: {mean: 2, stdev: 0.5}
  Vulnerability: {constant: 0.4}
`

const multiModel = `
name: Plant
simulations: 50
static:
  Loss Event Frequency: {constant: 2}
models:
  - name: Remote access
    inputs:
      Loss Magnitude: {constant: 100}
  - name: Insider
    inputs:
      multi_Secondary Loss:
        Regulator:
          Secondary Loss Event Frequency: {constant: 0.5}
          Secondary Loss Event Magnitude: {constant: 40}
      Primary Loss: {constant: 10}
`

func TestParseKeepsInputOrder(t *testing.T) {
	f, err := Parse([]byte(singleModel))
	require.NoError(t, err)
	assert.Equal(t, "Ransomware", f.Name)
	assert.Equal(t, 200, f.Simulations)
	require.NotNil(t, f.Seed)
	assert.Equal(t, int64(7), *f.Seed)

	require.Len(t, f.Inputs, 3)
	assert.Equal(t, "Loss Magnitude", f.Inputs[0].Target)
	assert.Equal(t, "Threat Event Frequency", f.Inputs[1].Target)
	assert.Equal(t, "Vulnerability", f.Inputs[2].Target)
	assert.Equal(t, fair.Params{"low": 1000, "most_likely": 5000, "high": 20000}, f.Inputs[0].Params)
}

func TestBuildSingleModel(t *testing.T) {
	f, err := Parse([]byte(singleModel))
	require.NoError(t, err)

	res, err := f.Build(Options{Simulations: 10, Seed: 1})
	require.NoError(t, err)
	require.Len(t, res.Models, 1)
	assert.Nil(t, res.Meta)

	m := res.Models[0]
	assert.Equal(t, 200, m.Simulations(), "file settings win over options")
	assert.Equal(t, int64(7), m.Seed())
	assert.True(t, m.CalculationCompleted())

	params := m.ExportParams()
	require.Len(t, params, 3)
	assert.Equal(t, fair.LossMagnitude, params[0].Factor)
	assert.Equal(t, fair.Vulnerability, params[2].Factor)
}

func TestBuildMultiModel(t *testing.T) {
	f, err := Parse([]byte(multiModel))
	require.NoError(t, err)

	res, err := f.Build(Options{Seed: 42})
	require.NoError(t, err)
	require.Len(t, res.Models, 2)
	require.NotNil(t, res.Meta)
	assert.Equal(t, "Plant", res.Meta.Name())

	insider, err := res.Models[1].Risk()
	require.NoError(t, err)
	// 2 * (10 + 0.5*40)
	assert.Equal(t, 60.0, insider[0])

	risk, err := res.Meta.Risk()
	require.NoError(t, err)
	assert.Equal(t, 260.0, risk[0])

	data, err := res.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), fair.MetaModelDocumentType)
}

func TestBuildWithWorkers(t *testing.T) {
	f, err := Parse([]byte(multiModel))
	require.NoError(t, err)

	serial, err := f.Build(Options{Seed: 42})
	require.NoError(t, err)
	concurrent, err := f.Build(Options{Seed: 42, Workers: 4})
	require.NoError(t, err)

	assert.Equal(t, serial.Meta.ExportResults(), concurrent.Meta.ExportResults())
	assert.Equal(t, serial.Meta.Columns(), concurrent.Meta.Columns())
}

func TestParseRawAndJSON(t *testing.T) {
	doc := `{"name": "raw", "simulations": 3, "inputs": {"Loss Event Frequency": {"raw": [1, 2, 3]}, "Loss Magnitude": {"constant": 10}}}`
	f, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, f.Inputs, 2)
	assert.Equal(t, []float64{1, 2, 3}, f.Inputs[0].Raw)

	res, err := f.Build(Options{})
	require.NoError(t, err)
	risk, err := res.Models[0].Risk()
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30}, risk)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"empty", ``, ErrInvalidScenario},
		{"no models", `name: x`, ErrNoModels},
		{"unknown key", "name: x\nrisk_appetite: 3\ninputs:\n  Risk: {constant: 1}\n", ErrInvalidScenario},
		{"both forms", "name: x\ninputs:\n  Risk: {constant: 1}\nmodels:\n  - name: a\n", ErrInvalidScenario},
		{"unnamed single", "inputs:\n  Risk: {constant: 1}\n", ErrInvalidScenario},
		{"unnamed member", "models:\n  - inputs:\n      Risk: {constant: 1}\n", ErrInvalidScenario},
		{"negative simulations", "name: x\nsimulations: -1\ninputs:\n  Risk: {constant: 1}\n", ErrInvalidScenario},
		{"inputs not a mapping", "name: x\ninputs: [1, 2]\n", ErrInvalidScenario},
		{"params not numbers", "name: x\ninputs:\n  Risk: {constant: high}\n", ErrInvalidScenario},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBuildPropagatesModelErrors(t *testing.T) {
	f, err := Parse([]byte("name: x\ninputs:\n  Vulnerability: {constant: 2}\n"))
	require.NoError(t, err)
	_, err = f.Build(Options{})
	assert.ErrorIs(t, err, fair.ErrValidation)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(singleModel), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Ransomware", f.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
