// Package factory builds families of models that share most of their
// inputs and differ in a few.
package factory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dd0wney/cluso-fair/pkg/fair"
	"github.com/dd0wney/cluso-fair/pkg/parallel"
)

// ErrDuplicateModel is returned when two partials share a name.
var ErrDuplicateModel = errors.New("duplicate model name")

// Argument is one input for a model. Exactly one of Params, Raw or Multi is
// used: Multi when set or when Target carries fair.MultiPrefix, then Raw,
// then Params.
type Argument struct {
	Target string
	Params fair.Params
	Raw    []float64
	Multi  fair.MultiParams
}

// Arguments are applied in order.
type Arguments []Argument

// Apply supplies every argument to m.
func (args Arguments) Apply(m *fair.Model) error {
	for _, a := range args {
		var err error
		switch {
		case a.Multi != nil || strings.HasPrefix(a.Target, fair.MultiPrefix):
			err = m.InputMulti(a.Target, a.Multi)
		case a.Raw != nil:
			err = m.InputRaw(a.Target, a.Raw)
		default:
			err = m.Input(a.Target, a.Params)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Partial names a model and the arguments specific to it.
type Partial struct {
	Name      string
	Arguments Arguments
}

// Factory holds the static arguments every generated model receives.
type Factory struct {
	static      Arguments
	simulations int
	seed        int64
	opts        []fair.Option
}

// New returns a factory. opts are passed to every generated model.
func New(static Arguments, simulations int, seed int64, opts ...fair.Option) (*Factory, error) {
	if simulations <= 0 {
		return nil, &fair.ValidationError{Factor: "factory", Param: fair.KeySimulations, Reason: "must be positive"}
	}
	return &Factory{
		static:      static,
		simulations: simulations,
		seed:        seed,
		opts:        opts,
	}, nil
}

// GenerateFromPartial builds and calculates a model from the static
// arguments followed by variable. A variable argument for a node already
// set statically replaces it.
func (f *Factory) GenerateFromPartial(name string, variable Arguments) (*fair.Model, error) {
	opts := append([]fair.Option{fair.WithSimulations(f.simulations), fair.WithSeed(f.seed)}, f.opts...)
	m, err := fair.New(name, opts...)
	if err != nil {
		return nil, err
	}
	for _, group := range []Arguments{f.static, variable} {
		if err := group.Apply(m); err != nil {
			return nil, fmt.Errorf("model %q: %w", name, err)
		}
	}
	if err := m.CalculateAll(); err != nil {
		return nil, fmt.Errorf("model %q: %w", name, err)
	}
	return m, nil
}

// GenerateFromPartials builds one model per partial, in order.
func (f *Factory) GenerateFromPartials(partials []Partial) ([]*fair.Model, error) {
	return f.GenerateConcurrently(partials, 1)
}

// GenerateConcurrently builds one model per partial on up to workers
// goroutines. Every model owns its random generator, so the results match
// GenerateFromPartials. Models are returned in partial order; on failure
// the errors of every failed partial are joined.
func (f *Factory) GenerateConcurrently(partials []Partial, workers int) ([]*fair.Model, error) {
	seen := make(map[string]bool, len(partials))
	for _, p := range partials {
		if seen[p.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateModel, p.Name)
		}
		seen[p.Name] = true
	}

	pool, err := parallel.NewWorkerPool(min(workers, max(len(partials), 1)))
	if err != nil {
		return nil, err
	}
	models := make([]*fair.Model, len(partials))
	for i, p := range partials {
		if err := pool.Submit(func() error {
			m, err := f.GenerateFromPartial(p.Name, p.Arguments)
			models[i] = m
			return err
		}); err != nil {
			break
		}
	}
	if err := pool.Wait(); err != nil {
		return nil, err
	}
	return models, nil
}
