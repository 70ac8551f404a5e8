// Package metamodel aggregates several FAIR models into one by summing
// their Risk vectors trial by trial.
package metamodel

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"github.com/dd0wney/cluso-fair/pkg/fair"
	"github.com/dd0wney/cluso-fair/pkg/logging"
	"github.com/dd0wney/cluso-fair/pkg/metrics"
)

var (
	ErrNoMembers       = errors.New("meta model has no members")
	ErrDuplicateMember = errors.New("duplicate member name")
	ErrReservedName    = errors.New("member name is reserved")
	ErrNilMember       = errors.New("nil member")
)

// RiskColumn is the column holding the summed Risk vector.
const RiskColumn = "Risk"

// Member is a component of a meta model: a ModelMember or a MetaMember.
type Member interface {
	models() ([]*fair.Model, error)
}

// ModelMember wraps a single model.
type ModelMember struct {
	Model *fair.Model
}

func (m ModelMember) models() ([]*fair.Model, error) {
	if m.Model == nil {
		return nil, ErrNilMember
	}
	return []*fair.Model{m.Model}, nil
}

// MetaMember contributes every component model of another meta model.
type MetaMember struct {
	Meta *MetaModel
}

func (m MetaMember) models() ([]*fair.Model, error) {
	if m.Meta == nil {
		return nil, ErrNilMember
	}
	return slices.Clone(m.Meta.components), nil
}

// MetaModel sums the Risk of its component models.
type MetaModel struct {
	name      string
	id        string
	createdAt time.Time

	components  []*fair.Model
	simulations int

	columns    fair.Results
	calculated bool

	logger  logging.Logger
	metrics *metrics.Registry
}

// Option configures a MetaModel.
type Option func(*MetaModel)

// WithIdentity restores the identity of a previously serialised meta model.
func WithIdentity(id string, createdAt time.Time) Option {
	return func(mm *MetaModel) {
		mm.id = id
		mm.createdAt = createdAt
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(mm *MetaModel) { mm.logger = logger }
}

// WithMetrics records aggregations in r.
func WithMetrics(r *metrics.Registry) Option {
	return func(mm *MetaModel) { mm.metrics = r }
}

// New builds a meta model. Meta members are flattened into their component
// models. All components must share one simulation count and have distinct
// names.
func New(name string, members []Member, opts ...Option) (*MetaModel, error) {
	mm := &MetaModel{
		name:   name,
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(mm)
	}
	if mm.id == "" || mm.createdAt.IsZero() {
		id, err := uuid.NewUUID()
		if err != nil {
			id = uuid.New()
		}
		mm.id = id.String()
		mm.createdAt = time.Now().Truncate(time.Microsecond)
	}
	mm.logger = mm.logger.With(logging.Model(name), logging.ModelID(mm.id))

	if len(members) == 0 {
		return nil, ErrNoMembers
	}
	seen := make(map[string]bool)
	for _, member := range members {
		if member == nil {
			return nil, ErrNilMember
		}
		models, err := member.models()
		if err != nil {
			return nil, err
		}
		for _, m := range models {
			if err := mm.add(m, seen); err != nil {
				return nil, err
			}
		}
	}
	return mm, nil
}

func (mm *MetaModel) add(m *fair.Model, seen map[string]bool) error {
	switch {
	case m == nil:
		return ErrNilMember
	case m.Name() == RiskColumn:
		return fmt.Errorf("%w: %q", ErrReservedName, m.Name())
	case seen[m.Name()]:
		return fmt.Errorf("%w: %q", ErrDuplicateMember, m.Name())
	}
	if mm.simulations == 0 {
		mm.simulations = m.Simulations()
	} else if m.Simulations() != mm.simulations {
		return &fair.LengthMismatchError{Factor: m.Name(), Want: mm.simulations, Got: m.Simulations()}
	}
	seen[m.Name()] = true
	mm.components = append(mm.components, m)
	return nil
}

func (mm *MetaModel) Name() string         { return mm.name }
func (mm *MetaModel) UUID() string         { return mm.id }
func (mm *MetaModel) CreatedAt() time.Time { return mm.createdAt }
func (mm *MetaModel) Simulations() int     { return mm.simulations }

// Components returns the component models in insertion order.
func (mm *MetaModel) Components() []*fair.Model {
	return slices.Clone(mm.components)
}

// CalculateAll calculates any component that is not yet complete and sums
// the component Risk vectors into the Risk column.
func (mm *MetaModel) CalculateAll() error {
	timer := logging.StartTimer(mm.logger, "calculate meta model", logging.Count(len(mm.components)))
	columns, err := mm.calculate()
	if mm.metrics != nil {
		mm.metrics.RecordMetaModel(len(mm.components), err)
	}
	if err != nil {
		timer.EndError(err)
		return err
	}
	mm.columns = columns
	mm.calculated = true
	timer.End()
	return nil
}

func (mm *MetaModel) calculate() (fair.Results, error) {
	columns := make(fair.Results, len(mm.components)+1)
	total := make([]float64, mm.simulations)
	for _, m := range mm.components {
		if !m.CalculationCompleted() {
			if err := m.CalculateAll(); err != nil {
				return nil, fmt.Errorf("calculate %q: %w", m.Name(), err)
			}
		}
		risk, err := m.Risk()
		if err != nil {
			return nil, fmt.Errorf("%q: %w", m.Name(), err)
		}
		if len(risk) != len(total) {
			return nil, &fair.LengthMismatchError{Factor: m.Name(), Want: len(total), Got: len(risk)}
		}
		floats.Add(total, risk)
		columns[m.Name()] = risk
	}
	columns[RiskColumn] = total
	return columns, nil
}

// CalculationCompleted reports whether the summed Risk is current.
func (mm *MetaModel) CalculationCompleted() bool {
	if !mm.calculated {
		return false
	}
	for _, m := range mm.components {
		if !m.CalculationCompleted() {
			return false
		}
	}
	return true
}

// Columns lists the result columns: component names in insertion order,
// then RiskColumn.
func (mm *MetaModel) Columns() []string {
	out := make([]string, 0, len(mm.components)+1)
	for _, m := range mm.components {
		out = append(out, m.Name())
	}
	return append(out, RiskColumn)
}

// ExportResults returns a copy of each component's Risk and the summed Risk.
// It is empty before CalculateAll.
func (mm *MetaModel) ExportResults() fair.Results {
	out := make(fair.Results, len(mm.columns))
	for name, vec := range mm.columns {
		out[name] = slices.Clone(vec)
	}
	return out
}

// Risk returns the summed Risk vector.
func (mm *MetaModel) Risk() ([]float64, error) {
	if !mm.CalculationCompleted() {
		return nil, fair.ErrNotCalculated
	}
	return slices.Clone(mm.columns[RiskColumn]), nil
}

// ExportParams returns the parameter document of each component, keyed by
// component name.
func (mm *MetaModel) ExportParams() (fair.Document, error) {
	var doc fair.Document
	for _, m := range mm.components {
		sub, err := m.Document()
		if err != nil {
			return nil, err
		}
		if err := doc.Set(m.Name(), sub); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// Document returns the component documents followed by the meta model's
// own metadata.
func (mm *MetaModel) Document() (fair.Document, error) {
	doc, err := mm.ExportParams()
	if err != nil {
		return nil, err
	}
	for _, kv := range []struct {
		key   string
		value any
	}{
		{fair.KeyName, mm.name},
		{fair.KeyUUID, mm.id},
		{fair.KeyCreationDate, fair.FormatCreationDate(mm.createdAt)},
		{fair.KeyType, fair.MetaModelDocumentType},
	} {
		if err := doc.Set(kv.key, kv.value); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// ToJSON serialises the meta model and every component model.
func (mm *MetaModel) ToJSON() ([]byte, error) {
	doc, err := mm.Document()
	if err != nil {
		return nil, err
	}
	return doc.Indent()
}

// ReadJSON rebuilds a meta model from ToJSON output and calculates it.
// Options are applied to the meta model; component models get its logger.
func ReadJSON(data []byte, opts ...Option) (*MetaModel, error) {
	var doc fair.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", fair.ErrInvalidDocument, err)
	}
	return FromDocument(doc, opts...)
}

// FromDocument rebuilds a meta model from a parsed document.
func FromDocument(doc fair.Document, opts ...Option) (*MetaModel, error) {
	var docType, name, id, created string
	for key, dst := range map[string]*string{
		fair.KeyType:         &docType,
		fair.KeyName:         &name,
		fair.KeyUUID:         &id,
		fair.KeyCreationDate: &created,
	} {
		if err := doc.Field(key, dst); err != nil {
			return nil, err
		}
	}
	if docType != fair.MetaModelDocumentType {
		return nil, fmt.Errorf("%w: type %q is not %q", fair.ErrInvalidDocument, docType, fair.MetaModelDocumentType)
	}
	createdAt, err := fair.ParseCreationDate(created)
	if err != nil {
		return nil, err
	}

	probe := &MetaModel{logger: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(probe)
	}

	var members []Member
	for _, f := range doc {
		if fair.IsMetadata(f.Key) {
			continue
		}
		m, err := fair.ReadJSON(f.Value, fair.WithLogger(probe.logger), fair.WithMetrics(probe.metrics))
		if err != nil {
			return nil, fmt.Errorf("member %q: %w", f.Key, err)
		}
		members = append(members, ModelMember{Model: m})
	}

	opts = append(opts, WithIdentity(id, createdAt))
	mm, err := New(name, members, opts...)
	if err != nil {
		return nil, err
	}
	if err := mm.CalculateAll(); err != nil {
		return nil, err
	}
	return mm, nil
}
