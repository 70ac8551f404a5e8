// Package store persists calculated models and meta models together with a
// summary of their Risk distribution.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/dd0wney/cluso-fair/pkg/fair"
	"github.com/dd0wney/cluso-fair/pkg/logging"
	"github.com/dd0wney/cluso-fair/pkg/metamodel"
	"github.com/dd0wney/cluso-fair/pkg/metrics"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverFile     = "file"
)

// Drivers lists the accepted driver names.
func Drivers() []string {
	return []string{DriverSQLite, DriverPostgres, DriverFile}
}

var (
	ErrNotFound      = errors.New("model not found")
	ErrUnknownDriver = errors.New("unknown store driver")
	ErrUnknownType   = errors.New("unrecognized model type")
)

// Storable is implemented by *fair.Model and *metamodel.MetaModel.
type Storable interface {
	Name() string
	UUID() string
	CreatedAt() time.Time
	CalculationCompleted() bool
	Risk() ([]float64, error)
	ToJSON() ([]byte, error)
}

var (
	_ Storable = (*fair.Model)(nil)
	_ Storable = (*metamodel.MetaModel)(nil)
)

// Results summarises a Risk vector.
type Results struct {
	Mean  float64 `json:"mean"`
	Stdev float64 `json:"stdev"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Summarize computes Results for risk. The standard deviation is the
// sample standard deviation, zero for fewer than two values.
func Summarize(risk []float64) Results {
	if len(risk) == 0 {
		return Results{}
	}
	r := Results{
		Mean: stat.Mean(risk, nil),
		Min:  floats.Min(risk),
		Max:  floats.Max(risk),
	}
	if len(risk) > 1 {
		r.Stdev = stat.StdDev(risk, nil)
	}
	if math.IsNaN(r.Stdev) {
		r.Stdev = 0
	}
	return r
}

// Entry describes a stored model.
type Entry struct {
	UUID      string
	Name      string
	Type      string
	CreatedAt time.Time
	Results   Results
}

// Record is an Entry with its serialised document.
type Record struct {
	Entry
	Document []byte
}

// Loaded is a model read back from a store. Exactly one of Model and Meta
// is set, according to Type.
type Loaded struct {
	Entry
	Model *fair.Model
	Meta  *metamodel.MetaModel
}

// Backend is the storage primitive behind a Repository.
type Backend interface {
	// Driver names the backend in metrics and logs.
	Driver() string
	// Put inserts or replaces the record with the same UUID.
	Put(ctx context.Context, r *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	// FindByName returns the oldest record with the given name.
	FindByName(ctx context.Context, name string) (*Record, error)
	// List returns every entry, oldest first.
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

// Store saves and loads models.
type Store interface {
	Save(ctx context.Context, s Storable) error
	Load(ctx context.Context, nameOrUUID string) (*Loaded, error)
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

// Repository implements Store on top of a Backend.
type Repository struct {
	backend Backend
	logger  logging.Logger
	metrics *metrics.Registry
}

var _ Store = (*Repository)(nil)

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger. Loaded models log through it too.
func WithLogger(logger logging.Logger) Option {
	return func(r *Repository) { r.logger = logger }
}

// WithMetrics records store operations in m.
func WithMetrics(m *metrics.Registry) Option {
	return func(r *Repository) { r.metrics = m }
}

// New wraps b.
func New(b Backend, opts ...Option) *Repository {
	r := &Repository{backend: b, logger: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logging.Component("store"), logging.String("driver", b.Driver()))
	return r
}

// Open connects to the store named by driver. dsn is a file path for
// sqlite, a connection URL for postgres and a directory for file.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Repository, error) {
	var (
		b   Backend
		err error
	)
	switch driver {
	case DriverSQLite:
		b, err = OpenSQLite(ctx, dsn)
	case DriverPostgres:
		b, err = OpenPostgres(ctx, dsn)
	case DriverFile:
		b, err = OpenFile(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	if err != nil {
		return nil, err
	}
	return New(b, opts...), nil
}

func (r *Repository) observe(op string, start time.Time, err error) {
	elapsed := time.Since(start)
	if r.metrics != nil {
		r.metrics.RecordStoreOperation(r.backend.Driver(), op, elapsed, err)
	}
	if err != nil {
		r.logger.Warn("store operation failed", logging.Operation(op), logging.Latency(elapsed), logging.Error(err))
		return
	}
	r.logger.Debug("store operation", logging.Operation(op), logging.Latency(elapsed))
}

// Save stores a calculated model, replacing any earlier version with the
// same UUID.
func (r *Repository) Save(ctx context.Context, s Storable) (err error) {
	defer func(start time.Time) { r.observe("save", start, err) }(time.Now())

	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.CalculationCompleted() {
		return fmt.Errorf("save %q: %w", s.Name(), fair.ErrNotCalculated)
	}
	risk, err := s.Risk()
	if err != nil {
		return fmt.Errorf("save %q: %w", s.Name(), err)
	}
	data, err := s.ToJSON()
	if err != nil {
		return fmt.Errorf("save %q: %w", s.Name(), err)
	}
	docType, err := documentType(data)
	if err != nil {
		return fmt.Errorf("save %q: %w", s.Name(), err)
	}
	rec := &Record{
		Entry: Entry{
			UUID:      s.UUID(),
			Name:      s.Name(),
			Type:      docType,
			CreatedAt: s.CreatedAt(),
			Results:   Summarize(risk),
		},
		Document: data,
	}
	return r.backend.Put(ctx, rec)
}

// Load reads a model by UUID or, failing that, by name, and calculates it.
func (r *Repository) Load(ctx context.Context, nameOrUUID string) (_ *Loaded, err error) {
	defer func(start time.Time) { r.observe("load", start, err) }(time.Now())

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec *Record
	if _, perr := uuid.Parse(nameOrUUID); perr == nil {
		rec, err = r.backend.Get(ctx, nameOrUUID)
	} else {
		rec, err = r.backend.FindByName(ctx, nameOrUUID)
	}
	if err != nil {
		return nil, err
	}

	loaded := &Loaded{Entry: rec.Entry}
	switch rec.Type {
	case fair.ModelDocumentType:
		loaded.Model, err = fair.ReadJSON(rec.Document, fair.WithLogger(r.logger))
	case fair.MetaModelDocumentType:
		loaded.Meta, err = metamodel.ReadJSON(rec.Document, metamodel.WithLogger(r.logger))
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownType, rec.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", nameOrUUID, err)
	}
	return loaded, nil
}

// List returns every stored entry, oldest first.
func (r *Repository) List(ctx context.Context) (_ []Entry, err error) {
	defer func(start time.Time) { r.observe("list", start, err) }(time.Now())

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.backend.List(ctx)
}

// Close releases the backend.
func (r *Repository) Close() error {
	if r == nil || r.backend == nil {
		return nil
	}
	return r.backend.Close()
}

func documentType(data []byte) (string, error) {
	var doc fair.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("%w: %v", fair.ErrInvalidDocument, err)
	}
	var docType string
	if err := doc.Field(fair.KeyType, &docType); err != nil {
		return "", err
	}
	return docType, nil
}
