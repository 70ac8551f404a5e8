package fair

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"math/rand/v2"
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/dd0wney/cluso-fair/pkg/validation"
)

// Parameter keywords accepted by Generate.
const (
	ParamConstant   = "constant"
	ParamMean       = "mean"
	ParamStdev      = "stdev"
	ParamLow        = "low"
	ParamMode       = "mode"
	ParamMostLikely = "most_likely" // alias for ParamMode
	ParamHigh       = "high"
	ParamGamma      = "gamma"

	// ParamRaw tags a pre-computed vector in serialised parameters.
	ParamRaw = "raw"
)

// Params holds distribution keywords for one node, e.g.
// {"low": 10, "mode": 20, "high": 100}.
type Params map[string]float64

func (p Params) clone() Params {
	return maps.Clone(p)
}

// MultiParams holds aggregate input: item name -> component node name -> params.
type MultiParams map[string]map[string]Params

func (m MultiParams) clone() MultiParams {
	out := make(MultiParams, len(m))
	for item, components := range m {
		c := make(map[string]Params, len(components))
		for name, p := range components {
			c[name] = p.clone()
		}
		out[item] = c
	}
	return out
}

// InputKind distinguishes how a node's data was supplied.
type InputKind int

const (
	KindParametric InputKind = iota
	KindRaw
	KindMulti
)

func (k InputKind) String() string {
	switch k {
	case KindParametric:
		return "parametric"
	case KindRaw:
		return "raw"
	case KindMulti:
		return "multi"
	default:
		return "unknown"
	}
}

// Input is the record of one successful input call, kept for
// reproducible serialisation. Exactly one of Params, Raw or Multi is set,
// according to Kind.
type Input struct {
	Factor Factor
	Kind   InputKind
	Params Params
	Raw    []float64
	Multi  MultiParams
}

func (in Input) clone() Input {
	out := Input{Factor: in.Factor, Kind: in.Kind}
	switch in.Kind {
	case KindParametric:
		out.Params = in.Params.clone()
	case KindRaw:
		out.Raw = slices.Clone(in.Raw)
	case KindMulti:
		out.Multi = in.Multi.clone()
	}
	return out
}

type distribution int

const (
	constantDist distribution = iota + 1
	normalDist
	pertDist
)

var keywordDistribution = map[string]distribution{
	ParamConstant: constantDist,
	ParamMean:     normalDist,
	ParamStdev:    normalDist,
	ParamLow:      pertDist,
	ParamMode:     pertDist,
	ParamHigh:     pertDist,
	ParamGamma:    pertDist,
}

var requiredKeywords = map[distribution][]string{
	constantDist: {ParamConstant},
	normalDist:   {ParamMean, ParamStdev},
	pertDist:     {ParamLow, ParamMode, ParamHigh},
}

// boundedKeywords must lie in [0, 1] for bounded factors.
var boundedKeywords = []string{ParamConstant, ParamMean, ParamLow, ParamMode, ParamHigh}

type constantParams struct {
	Constant float64 `json:"constant" validate:"gte=0"`
}

type normalParams struct {
	Mean  float64 `json:"mean" validate:"gte=0"`
	Stdev float64 `json:"stdev" validate:"gte=0"`
}

type pertParams struct {
	Low   float64 `json:"low" validate:"gte=0"`
	Mode  float64 `json:"mode" validate:"gte=0,gtefield=Low"`
	High  float64 `json:"high" validate:"gte=0,gtefield=Mode,gtfield=Low"`
	Gamma float64 `json:"gamma" validate:"gt=0"`
}

// draw is a validated request for one vector.
type draw struct {
	factor Factor
	dist   distribution
	params Params
}

// Sampler validates distribution parameters and draws simulation vectors
// from a generator owned by a single model.
type Sampler struct {
	rng    *rand.Rand
	inputs []Input
}

// NewSampler returns a sampler drawing from rng.
func NewSampler(rng *rand.Rand) *Sampler {
	return &Sampler{rng: rng}
}

// Inputs returns the record of every successful input, oldest first. A
// node that was supplied again appears once, at its latest position.
func (s *Sampler) Inputs() []Input {
	out := make([]Input, len(s.inputs))
	for i, in := range s.inputs {
		out[i] = in.clone()
	}
	return out
}

// Generate validates params and draws count values for f. Results are
// clipped to [0, 1] for bounded factors and to [0, +Inf) otherwise.
func (s *Sampler) Generate(f Factor, count int, params Params) ([]float64, error) {
	if err := checkCount(f, count); err != nil {
		return nil, err
	}
	d, err := prepare(f, params)
	if err != nil {
		return nil, err
	}
	vec, err := s.sample(d, count)
	if err != nil {
		return nil, err
	}
	s.record(Input{Factor: f, Kind: KindParametric, Params: d.params.clone()})
	return vec, nil
}

// Raw accepts a pre-computed vector for f. It must hold exactly count
// finite, non-negative values, and values within [0, 1] for bounded factors.
func (s *Sampler) Raw(f Factor, count int, values []float64) ([]float64, error) {
	if len(values) != count {
		return nil, &LengthMismatchError{Factor: f.String(), Want: count, Got: len(values)}
	}
	for i, v := range values {
		if err := validation.Finite(ParamRaw, v); err != nil {
			return nil, &ValidationError{Factor: f.String(), Param: ParamRaw, Reason: fmt.Sprintf("value at index %d is not a finite number", i)}
		}
		if f.Bounded() && (v < 0 || v > 1) {
			return nil, &ValidationError{Factor: f.String(), Param: ParamRaw, Reason: fmt.Sprintf("value %g at index %d is not between zero and one", v, i)}
		}
		if v < 0 {
			return nil, &ValidationError{Factor: f.String(), Param: ParamRaw, Reason: fmt.Sprintf("value %g at index %d is less than zero", v, i)}
		}
	}
	s.record(Input{Factor: f, Kind: KindRaw, Raw: slices.Clone(values)})
	return slices.Clone(values), nil
}

// Multi builds an aggregate vector for f from named items, each supplying
// parameters for both children of f. Within an item the two component
// vectors are multiplied; the per-item products are summed. Items are drawn
// in name order so the result does not depend on map iteration.
func (s *Sampler) Multi(f Factor, count int, items MultiParams) ([]float64, error) {
	if err := checkCount(f, count); err != nil {
		return nil, err
	}
	if f.Combinator() != Multiply {
		return nil, &ValidationError{Factor: f.String(), Reason: "aggregate input requires a node derived by multiplication"}
	}
	if len(items) == 0 {
		return nil, &ValidationError{Factor: f.String(), Reason: "no aggregate items supplied"}
	}
	first, second, _ := f.Children()

	names := slices.Sorted(maps.Keys(items))
	plans := make([][2]draw, len(names))
	recorded := make(MultiParams, len(items))
	for i, name := range names {
		components := items[name]
		for key := range components {
			c, err := ParseFactor(key)
			if err != nil {
				return nil, err
			}
			if c != first && c != second {
				return nil, &ValidationError{Factor: f.String(), Param: key, Reason: fmt.Sprintf("is not a component of %q (item %q)", f, name)}
			}
		}
		for j, c := range [2]Factor{first, second} {
			params, ok := components[c.String()]
			if !ok {
				return nil, &ValidationError{Factor: f.String(), Param: name, Reason: fmt.Sprintf("is missing component %q", c)}
			}
			d, err := prepare(c, params)
			if err != nil {
				return nil, err
			}
			plans[i][j] = d
		}
		recorded[name] = map[string]Params{
			first.String():  plans[i][0].params.clone(),
			second.String(): plans[i][1].params.clone(),
		}
	}

	total := make([]float64, count)
	for _, plan := range plans {
		a, err := s.sample(plan[0], count)
		if err != nil {
			return nil, err
		}
		b, err := s.sample(plan[1], count)
		if err != nil {
			return nil, err
		}
		floats.Add(total, floats.MulTo(a, a, b))
	}
	s.record(Input{Factor: f, Kind: KindMulti, Multi: recorded})
	return total, nil
}

func (s *Sampler) record(in Input) {
	s.inputs = slices.DeleteFunc(s.inputs, func(old Input) bool { return old.Factor == in.Factor })
	s.inputs = append(s.inputs, in)
}

func (s *Sampler) sample(d draw, count int) ([]float64, error) {
	vec := make([]float64, count)
	switch d.dist {
	case constantDist:
		for i := range vec {
			vec[i] = d.params[ParamConstant]
		}
	case normalDist:
		n := distuv.Normal{Mu: d.params[ParamMean], Sigma: d.params[ParamStdev], Src: s.rng}
		for i := range vec {
			vec[i] = n.Rand()
		}
	case pertDist:
		p, err := NewPERT(d.params[ParamLow], d.params[ParamMode], d.params[ParamHigh], d.params[ParamGamma])
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				verr.Factor = d.factor.String()
			}
			return nil, err
		}
		p.Fill(vec, s.rng)
	}
	clip(d.factor, vec)
	return vec, nil
}

func clip(f Factor, vec []float64) {
	upper := math.Inf(1)
	if f.Bounded() {
		upper = 1
	}
	for i, v := range vec {
		vec[i] = min(max(v, 0), upper)
	}
}

func checkCount(f Factor, count int) error {
	if count <= 0 {
		return &ValidationError{Factor: f.String(), Param: "count", Reason: fmt.Sprintf("must be positive, got %d", count)}
	}
	return nil
}

// prepare normalises and validates params for f without drawing anything.
func prepare(f Factor, params Params) (draw, error) {
	if len(params) == 0 {
		return draw{}, &ValidationError{Factor: f.String(), Reason: "no parameters supplied"}
	}
	if _, ok := params[ParamMostLikely]; ok {
		if _, dup := params[ParamMode]; dup {
			return draw{}, &ValidationError{Factor: f.String(), Param: ParamMostLikely, Reason: `duplicates "mode"`}
		}
	}

	keys := slices.Sorted(maps.Keys(params))
	normalized := make(Params, len(params)+1)
	dists := make(map[distribution]bool, 1)
	for _, key := range keys {
		value := params[key]
		if key == ParamMostLikely {
			key = ParamMode
		}
		dist, ok := keywordDistribution[key]
		if !ok {
			return draw{}, &ValidationError{Factor: f.String(), Param: key, Reason: "is not a recognized keyword"}
		}
		if err := validation.Finite(key, value); err != nil {
			return draw{}, &ValidationError{Factor: f.String(), Param: key, Reason: "must be a finite number"}
		}
		dists[dist] = true
		normalized[key] = value
	}
	if len(dists) > 1 {
		return draw{}, &ValidationError{Factor: f.String(), Param: strings.Join(keys, ", "), Reason: "mixes incompatible keywords"}
	}

	var dist distribution
	for d := range dists {
		dist = d
	}
	for _, key := range requiredKeywords[dist] {
		if _, ok := normalized[key]; !ok {
			return draw{}, &ValidationError{Factor: f.String(), Param: key, Reason: "is missing"}
		}
	}

	var typed any
	switch dist {
	case constantDist:
		typed = &constantParams{Constant: normalized[ParamConstant]}
	case normalDist:
		typed = &normalParams{Mean: normalized[ParamMean], Stdev: normalized[ParamStdev]}
	case pertDist:
		if _, ok := normalized[ParamGamma]; !ok {
			normalized[ParamGamma] = DefaultGamma
		}
		typed = &pertParams{
			Low:   normalized[ParamLow],
			Mode:  normalized[ParamMode],
			High:  normalized[ParamHigh],
			Gamma: normalized[ParamGamma],
		}
	}
	if err := validation.Struct(typed); err != nil {
		var fe *validation.FieldError
		if errors.As(err, &fe) {
			return draw{}, &ValidationError{Factor: f.String(), Param: fe.Field, Reason: fe.Reason}
		}
		return draw{}, &ValidationError{Factor: f.String(), Reason: err.Error()}
	}

	if f.Bounded() {
		for _, key := range boundedKeywords {
			v, ok := normalized[key]
			if !ok {
				continue
			}
			if err := validation.Unit(key, v); err != nil {
				return draw{}, &ValidationError{Factor: f.String(), Param: key, Reason: "must be between zero and one"}
			}
		}
	}
	return draw{factor: f, dist: dist, params: normalized}, nil
}
