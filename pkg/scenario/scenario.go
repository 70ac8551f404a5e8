// Package scenario reads model definitions from YAML files. JSON files are
// accepted too, being valid YAML.
//
// A scenario describes one model with top-level inputs, or several models
// sharing static inputs that are summed into a meta model:
//
//	name: Water treatment
//	simulations: 10000
//	seed: 42
//	static:
//	  Loss Magnitude: {low: 10000, mode: 50000, high: 400000}
//	models:
//	  - name: Remote access
//	    inputs:
//	      Loss Event Frequency: {low: 0.1, mode: 0.5, high: 2}
//
// Inputs are applied in file order.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-fair/pkg/factory"
	"github.com/dd0wney/cluso-fair/pkg/fair"
	"github.com/dd0wney/cluso-fair/pkg/logging"
	"github.com/dd0wney/cluso-fair/pkg/metamodel"
	"github.com/dd0wney/cluso-fair/pkg/metrics"
	"github.com/dd0wney/cluso-fair/pkg/validation"
)

var (
	ErrInvalidScenario = errors.New("invalid scenario")
	ErrNoModels        = errors.New("scenario defines no model")
)

// File is a parsed scenario.
type File struct {
	Name        string        `json:"name" yaml:"name"`
	Simulations int           `json:"simulations" yaml:"simulations" validate:"gte=0"`
	Seed        *int64        `json:"seed" yaml:"seed"`
	Static      Inputs        `json:"static" yaml:"static"`
	Inputs      Inputs        `json:"inputs" yaml:"inputs"`
	Models      []ModelConfig `json:"models" yaml:"models" validate:"dive"`
}

// ModelConfig is one model of a multi-model scenario.
type ModelConfig struct {
	Name   string `json:"name" yaml:"name" validate:"required"`
	Inputs Inputs `json:"inputs" yaml:"inputs"`
}

// Inputs is an ordered mapping of node name to distribution parameters,
// raw values ({raw: [...]}) or, for "multi_" keys, aggregate items.
type Inputs factory.Arguments

// UnmarshalYAML keeps mapping order.
func (in *Inputs) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: inputs must be a mapping", value.Line)
	}
	out := make(Inputs, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, node := value.Content[i], value.Content[i+1]
		arg, err := decodeArgument(key.Value, node)
		if err != nil {
			return fmt.Errorf("line %d: %q: %w", key.Line, key.Value, err)
		}
		out = append(out, arg)
	}
	*in = out
	return nil
}

func decodeArgument(target string, node *yaml.Node) (factory.Argument, error) {
	arg := factory.Argument{Target: target}
	if strings.HasPrefix(target, fair.MultiPrefix) {
		err := node.Decode(&arg.Multi)
		return arg, err
	}
	if node.Kind != yaml.MappingNode {
		return arg, errors.New("parameters must be a mapping")
	}
	if len(node.Content) == 2 && node.Content[0].Value == fair.ParamRaw {
		err := node.Content[1].Decode(&arg.Raw)
		return arg, err
	}
	err := node.Decode(&arg.Params)
	return arg, err
}

// Load reads a scenario file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a scenario. Unknown top-level keys are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidScenario)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	if err := validation.Struct(f); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	switch {
	case len(f.Models) == 0 && len(f.Inputs) == 0:
		return ErrNoModels
	case len(f.Models) > 0 && len(f.Inputs) > 0:
		return fmt.Errorf("%w: use either inputs or models, not both", ErrInvalidScenario)
	case len(f.Models) == 0 && f.Name == "":
		return fmt.Errorf("%w: a single-model scenario needs a name", ErrInvalidScenario)
	}
	return nil
}

// Options control how a scenario is built. Values in the file take
// precedence over Simulations and Seed.
type Options struct {
	Simulations int
	Seed        int64
	Logger      logging.Logger
	Metrics     *metrics.Registry

	// Workers bounds how many models are built at once; zero means one.
	Workers int
}

// Result holds the models built from a scenario. Meta is set when the
// scenario defines more than one model.
type Result struct {
	Models []*fair.Model
	Meta   *metamodel.MetaModel
}

// ToJSON serialises the meta model if there is one, otherwise the model.
func (r *Result) ToJSON() ([]byte, error) {
	if r.Meta != nil {
		return r.Meta.ToJSON()
	}
	return r.Models[0].ToJSON()
}

// Build creates and calculates every model in the scenario.
func (f *File) Build(o Options) (*Result, error) {
	simulations := o.Simulations
	if f.Simulations > 0 {
		simulations = f.Simulations
	}
	if simulations == 0 {
		simulations = fair.DefaultSimulations
	}
	seed := o.Seed
	if f.Seed != nil {
		seed = *f.Seed
	}
	logger := o.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	opts := []fair.Option{fair.WithLogger(logger)}
	if o.Metrics != nil {
		opts = append(opts, fair.WithMetrics(o.Metrics))
	}
	fac, err := factory.New(factory.Arguments(f.Static), simulations, seed, opts...)
	if err != nil {
		return nil, err
	}

	if len(f.Models) == 0 {
		m, err := fac.GenerateFromPartial(f.Name, factory.Arguments(f.Inputs))
		if err != nil {
			return nil, err
		}
		return &Result{Models: []*fair.Model{m}}, nil
	}

	partials := make([]factory.Partial, len(f.Models))
	for i, mc := range f.Models {
		partials[i] = factory.Partial{Name: mc.Name, Arguments: factory.Arguments(mc.Inputs)}
	}
	models, err := fac.GenerateConcurrently(partials, o.Workers)
	if err != nil {
		return nil, err
	}
	res := &Result{Models: models}
	if len(models) == 1 {
		return res, nil
	}

	name := f.Name
	if name == "" {
		name = "Meta Model"
	}
	members := make([]metamodel.Member, len(models))
	for i, m := range models {
		members[i] = metamodel.ModelMember{Model: m}
	}
	metaOpts := []metamodel.Option{metamodel.WithLogger(logger)}
	if o.Metrics != nil {
		metaOpts = append(metaOpts, metamodel.WithMetrics(o.Metrics))
	}
	res.Meta, err = metamodel.New(name, members, metaOpts...)
	if err != nil {
		return nil, err
	}
	if err := res.Meta.CalculateAll(); err != nil {
		return nil, err
	}
	return res, nil
}
