package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("Level.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warning", WarnLevel},
		{"Warn", WarnLevel},
		{"ERROR", ErrorLevel},
		{"invalid", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDomainFields(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		key   string
		value any
	}{
		{"Model", Model("Insider Threat"), "model", "Insider Threat"},
		{"Factor", Factor("Vulnerability"), "factor", "Vulnerability"},
		{"Simulations", Simulations(10000), "n_simulations", 10000},
		{"Seed", Seed(42), "random_seed", int64(42)},
		{"Float64", Float64("mean_risk", 2.5), "mean_risk", 2.5},
		{"Latency", Latency(1500 * time.Millisecond), "latency", "1.5s"},
		{"Error", Error(errors.New("boom")), "error", "boom"},
		{"Error_nil", Error(nil), "error", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.field.Key != tt.key || tt.field.Value != tt.value {
				t.Errorf("%s() = %+v, want {Key:%s Value:%v}", tt.name, tt.field, tt.key, tt.value)
			}
		})
	}
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	logger.Debug("hidden")
	logger.Info("calculation completed", Model("m1"), Count(6))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), buf.String())
	}

	var entry LogEntry
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry.Level != "INFO" || entry.Message != "calculation completed" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Fields["model"] != "m1" {
		t.Errorf("model field = %v, want m1", entry.Fields["model"])
	}
	if entry.Fields["count"] != float64(6) {
		t.Errorf("count field = %v, want 6", entry.Fields["count"])
	}
}

func TestWithSharesWriter(t *testing.T) {
	var buf bytes.Buffer
	parent := NewJSONLogger(&buf, DebugLevel)
	child := parent.With(Model("m1"))

	child.Warn("rejected input", Factor("Vulnerability"))
	parent.Debug("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}

	var entry LogEntry
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatal(err)
	}
	if entry.Fields["model"] != "m1" || entry.Fields["factor"] != "Vulnerability" {
		t.Errorf("child fields = %v", entry.Fields)
	}

	entry = LogEntry{}
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatal(err)
	}
	if _, ok := entry.Fields["model"]; ok {
		t.Error("parent logger picked up child fields")
	}
}

func TestTimedOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	timer := StartTimer(logger, "calculate", Model("m1"))
	timer.EndError(errors.New("not ready"))

	var entry LogEntry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatal(err)
	}
	if entry.Level != "WARN" {
		t.Errorf("level = %s, want WARN", entry.Level)
	}
	if entry.Fields["error"] != "not ready" {
		t.Errorf("error field = %v", entry.Fields["error"])
	}
	if _, ok := entry.Fields["latency"]; !ok {
		t.Error("latency field missing")
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.Info("ignored")
	if logger.With(Model("x")) == nil {
		t.Error("With() returned nil")
	}
	if logger.GetLevel() != InfoLevel {
		t.Errorf("GetLevel() = %v", logger.GetLevel())
	}
}
