package fair

import (
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-fair/pkg/logging"
	"github.com/dd0wney/cluso-fair/pkg/metrics"
)

// Model defaults.
const (
	DefaultSimulations = 10_000
	DefaultSeed        = 42

	// MultiPrefix marks aggregate inputs in serialised parameters,
	// e.g. "multi_Secondary Loss".
	MultiPrefix = "multi_"
)

// pcgStream fixes the PCG stream so that a model's draws depend on its seed alone.
const pcgStream = 0x9e3779b97f4a7c15

// Model is one FAIR risk model: a dependency tree, a vector per resolved
// node, and the record of the inputs that produced them.
//
// A Model owns its random generator. Two models with the same seed and the
// same sequence of inputs produce identical vectors regardless of how their
// calls interleave. A Model is not safe for concurrent use.
type Model struct {
	name        string
	id          string
	createdAt   time.Time
	simulations int
	seed        int64

	tree    *Tree
	sampler *Sampler
	vectors [FactorCount][]float64

	logger  logging.Logger
	metrics *metrics.Registry
}

// Option configures a Model.
type Option func(*Model)

// WithSimulations sets the number of Monte Carlo trials.
func WithSimulations(n int) Option {
	return func(m *Model) { m.simulations = n }
}

// WithSeed sets the seed of the model's random generator.
func WithSeed(seed int64) Option {
	return func(m *Model) { m.seed = seed }
}

// WithIdentity restores the identity of a previously serialised model.
func WithIdentity(id string, createdAt time.Time) Option {
	return func(m *Model) {
		m.id = id
		m.createdAt = createdAt
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger logging.Logger) Option {
	return func(m *Model) { m.logger = logger }
}

// WithMetrics records input and calculation metrics in r.
func WithMetrics(r *metrics.Registry) Option {
	return func(m *Model) { m.metrics = r }
}

// New creates an empty model. Every node starts Required.
func New(name string, opts ...Option) (*Model, error) {
	m := &Model{
		name:        name,
		simulations: DefaultSimulations,
		seed:        DefaultSeed,
		tree:        NewTree(),
		logger:      logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.simulations <= 0 {
		return nil, &ValidationError{Factor: name, Param: "n_simulations", Reason: "must be positive"}
	}
	if m.id == "" || m.createdAt.IsZero() {
		m.id = newModelID()
		m.createdAt = time.Now().Truncate(time.Microsecond)
	}
	m.sampler = NewSampler(rand.New(rand.NewPCG(uint64(m.seed), pcgStream)))
	m.logger = m.logger.With(logging.Model(name), logging.ModelID(m.id))
	return m, nil
}

// newModelID returns a time-based UUID, falling back to a random one.
func newModelID() string {
	id, err := uuid.NewUUID()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (m *Model) Name() string         { return m.name }
func (m *Model) UUID() string         { return m.id }
func (m *Model) CreatedAt() time.Time { return m.createdAt }
func (m *Model) Simulations() int     { return m.simulations }
func (m *Model) Seed() int64          { return m.seed }

// Input draws a vector for target from params and marks it Supplied.
// Recognised keyword groups: constant; mean+stdev; low+mode+high(+gamma).
func (m *Model) Input(target string, params Params) error {
	f, err := ParseFactor(target)
	if err != nil {
		m.rejected(KindParametric, target, err)
		return err
	}
	vec, err := m.sampler.Generate(f, m.simulations, params)
	if err != nil {
		m.rejected(KindParametric, target, err)
		return err
	}
	return m.supply(f, KindParametric, vec)
}

// InputRaw stores a pre-computed vector for target and marks it Supplied.
func (m *Model) InputRaw(target string, values []float64) error {
	f, err := ParseFactor(target)
	if err != nil {
		m.rejected(KindRaw, target, err)
		return err
	}
	vec, err := m.sampler.Raw(f, m.simulations, values)
	if err != nil {
		m.rejected(KindRaw, target, err)
		return err
	}
	return m.supply(f, KindRaw, vec)
}

// InputMulti aggregates named line items into target, which is then
// resolved immediately: it becomes Calculated without a combinator step.
// target may carry MultiPrefix.
func (m *Model) InputMulti(target string, items MultiParams) error {
	name := strings.TrimPrefix(target, MultiPrefix)
	f, err := ParseFactor(name)
	if err != nil {
		m.rejected(KindMulti, name, err)
		return err
	}
	vec, err := m.sampler.Multi(f, m.simulations, items)
	if err != nil {
		m.rejected(KindMulti, name, err)
		return err
	}
	if err := m.supply(f, KindMulti, vec); err != nil {
		return err
	}
	return m.tree.UpdateStatus(f, Calculated)
}

// BulkImport supplies several nodes at once, in taxonomy order.
func (m *Model) BulkImport(params map[string]Params) error {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	slices.SortFunc(names, compareFactorNames)
	for _, name := range names {
		if err := m.Input(name, params[name]); err != nil {
			return err
		}
	}
	return nil
}

// Apply replays a recorded input.
func (m *Model) Apply(in Input) error {
	switch in.Kind {
	case KindRaw:
		return m.InputRaw(in.Factor.String(), in.Raw)
	case KindMulti:
		return m.InputMulti(in.Factor.String(), in.Multi)
	default:
		return m.Input(in.Factor.String(), in.Params)
	}
}

func (m *Model) supply(f Factor, kind InputKind, vec []float64) error {
	if err := m.tree.UpdateStatus(f, Supplied); err != nil {
		return err
	}
	m.vectors[f] = vec
	m.logger.Debug("input supplied", logging.Factor(f.String()), logging.String("kind", kind.String()))
	if m.metrics != nil {
		m.metrics.RecordInput(kind.String(), f.String(), nil)
	}
	return nil
}

func (m *Model) rejected(kind InputKind, target string, err error) {
	m.logger.Warn("input rejected", logging.Factor(target), logging.String("kind", kind.String()), logging.Error(err))
	if m.metrics != nil {
		m.metrics.RecordInput(kind.String(), target, err)
	}
}

// Statuses returns the status of every node.
func (m *Model) Statuses() Statuses {
	return m.tree.Statuses()
}

// NodeStatuses returns the status of every node keyed by name.
func (m *Model) NodeStatuses() map[string]string {
	return m.tree.Statuses().Map()
}

// ReadyForCalculation reports whether no node is Required.
func (m *Model) ReadyForCalculation() bool {
	return m.tree.ReadyForCalculation()
}

// CalculationCompleted reports whether Risk has been resolved.
func (m *Model) CalculationCompleted() bool {
	return m.tree.CalculationCompleted()
}

// Results maps node names to simulation vectors.
type Results map[string][]float64

// ExportResults returns a copy of the vector of every Supplied or
// Calculated node.
func (m *Model) ExportResults() Results {
	out := make(Results, FactorCount)
	for i, vec := range m.vectors {
		f := Factor(i)
		if vec == nil || !m.tree.Status(f).Resolved() {
			continue
		}
		out[f.String()] = slices.Clone(vec)
	}
	return out
}

// Vector returns a copy of the vector held for f, if f is resolved.
func (m *Model) Vector(f Factor) ([]float64, bool) {
	if !f.Valid() || !m.tree.Status(f).Resolved() || m.vectors[f] == nil {
		return nil, false
	}
	return slices.Clone(m.vectors[f]), true
}

// Risk returns the resolved Risk vector.
func (m *Model) Risk() ([]float64, error) {
	vec, ok := m.Vector(Risk)
	if !ok {
		return nil, ErrNotCalculated
	}
	return vec, nil
}

// ExportParams returns the recorded inputs, oldest first.
func (m *Model) ExportParams() []Input {
	return m.sampler.Inputs()
}

func compareFactorNames(a, b string) int {
	fa, errA := ParseFactor(a)
	fb, errB := ParseFactor(b)
	switch {
	case errA != nil && errB != nil:
		return strings.Compare(a, b)
	case errA != nil:
		return 1
	case errB != nil:
		return -1
	}
	return int(fa) - int(fb)
}
