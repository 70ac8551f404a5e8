package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-fair/pkg/fair"
	"github.com/dd0wney/cluso-fair/pkg/metamodel"
	"github.com/dd0wney/cluso-fair/pkg/store"
)

const phishingScenario = `
name: Phishing
simulations: 100
seed: 3
inputs:
  Threat Event Frequency: {low: 2, mode: 6, high: 20}
  Vulnerability: {constant: 0.3}
  Loss Magnitude: {mean: 50000, stdev: 10000}
`

const insiderScenario = `
name: Insider
simulations: 100
inputs:
  Loss Event Frequency: {constant: 0.5}
  Primary Loss: {constant: 20000}
  multi_Secondary Loss:
    Legal:
      Secondary Loss Event Frequency: {constant: 0.2}
      Secondary Loss Event Magnitude: {constant: 100000}
`

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// execute runs the CLI against a SQLite store in dir.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("FAIR_STORE_DRIVER", store.DriverSQLite)
	t.Setenv("FAIR_STORE_DSN", filepath.Join(dir, "fair.sqlite3"))
	t.Setenv("FAIR_LOG_LEVEL", "error")

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.Execute()
	return out.String(), err
}

func TestRunPrintsSummary(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "phishing.yaml", phishingScenario)

	out, err := execute(t, dir, "run", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Phishing")
	assert.Contains(t, out, "Calculated")
	assert.Contains(t, out, "Not Required")
	assert.Contains(t, out, "Mean")
	assert.Contains(t, out, "P95")
}

func TestRunJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "phishing.yaml", phishingScenario)

	out, err := execute(t, dir, "run", path, "--json")
	require.NoError(t, err)

	m, err := fair.ReadJSON([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, "Phishing", m.Name())
	assert.Equal(t, 100, m.Simulations())
	assert.Equal(t, int64(3), m.Seed())
	assert.True(t, m.CalculationCompleted())
}

func TestSaveListLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "phishing.yaml", phishingScenario)

	saved, err := execute(t, dir, "run", path, "--save", "--json")
	require.NoError(t, err)
	original, err := fair.ReadJSON([]byte(saved))
	require.NoError(t, err)

	out, err := execute(t, dir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Phishing")
	assert.Contains(t, out, original.UUID())

	out, err = execute(t, dir, "load", "Phishing", "--json")
	require.NoError(t, err)
	loaded, err := fair.ReadJSON([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, original.UUID(), loaded.UUID())
	assert.Equal(t, original.ExportResults(), loaded.ExportResults())

	out, err = execute(t, dir, "load", original.UUID())
	require.NoError(t, err)
	assert.Contains(t, out, "Risk")

	_, err = execute(t, dir, "load", "Nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMeta(t *testing.T) {
	dir := t.TempDir()
	phishing := writeScenario(t, dir, "phishing.yaml", phishingScenario)
	insider := writeScenario(t, dir, "insider.yaml", insiderScenario)

	out, err := execute(t, dir, "meta", "--name", "Enterprise", phishing, insider, "--json", "--save")
	require.NoError(t, err)

	mm, err := metamodel.ReadJSON([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, "Enterprise", mm.Name())
	assert.Equal(t, []string{"Phishing", "Insider", metamodel.RiskColumn}, mm.Columns())

	insiderRisk := mm.ExportResults()["Insider"]
	require.Len(t, insiderRisk, 100)
	// 0.5 * (20000 + 0.2 * 100000)
	assert.InDelta(t, 20000.0, insiderRisk[0], 1e-6)

	out, err = execute(t, dir, "load", "Enterprise")
	require.NoError(t, err)
	assert.Contains(t, out, "Enterprise")
	assert.Contains(t, out, "Insider")
}

func TestMetricsFile(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "phishing.yaml", phishingScenario)
	metricsPath := filepath.Join(dir, "fair.prom")

	_, err := execute(t, dir, "run", path, "--metrics-file", metricsPath)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "fair_calculations_total")
	assert.Contains(t, string(data), "fair_inputs_total")
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "phishing.yaml", phishingScenario)

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing scenario", args: []string{"run", filepath.Join(dir, "missing.yaml")}},
		{name: "no scenario", args: []string{"run"}},
		{name: "bad driver", args: []string{"list", "--store-driver", "mysql"}},
		{name: "bad simulations", args: []string{"run", path, "--simulations", "0"}},
		{name: "duplicate meta members", args: []string{"meta", path, path}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, dir, tt.args...)
			assert.Error(t, err)
		})
	}
}
