package logging

import (
	"time"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Domain field helpers

func Component(name string) Field {
	return String("component", name)
}

// Model names the risk model a message is about.
func Model(name string) Field {
	return String("model", name)
}

// ModelID carries the model UUID.
func ModelID(id string) Field {
	return String("model_uuid", id)
}

// Factor names a taxonomy node such as "Loss Event Frequency".
func Factor(name string) Field {
	return String("factor", name)
}

func Simulations(n int) Field {
	return Int("n_simulations", n)
}

func Seed(seed int64) Field {
	return Int64("random_seed", seed)
}

func Operation(op string) Field {
	return String("operation", op)
}

func Latency(d time.Duration) Field {
	return Duration("latency", d)
}

func Count(n int) Field {
	return Int("count", n)
}

func Path(p string) Field {
	return String("path", p)
}
