package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
	CREATE TABLE IF NOT EXISTS fair_models (
		uuid TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		document TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fair_models_name ON fair_models(name);

	CREATE TABLE IF NOT EXISTS fair_results (
		uuid TEXT PRIMARY KEY REFERENCES fair_models(uuid) ON DELETE CASCADE,
		mean DOUBLE PRECISION NOT NULL,
		stdev DOUBLE PRECISION NOT NULL,
		min_risk DOUBLE PRECISION NOT NULL,
		max_risk DOUBLE PRECISION NOT NULL
	);
	`

const pgSelect = `
	SELECT m.uuid, m.name, m.type, m.created_at, m.document, r.mean, r.stdev, r.min_risk, r.max_risk
	FROM fair_models m JOIN fair_results r ON r.uuid = m.uuid`

// PGStore keeps models in PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

var _ Backend = (*PGStore)(nil)

// ParsePostgresDSN parses a connection URL or keyword/value DSN without
// connecting.
func ParsePostgresDSN(databaseURL string) (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	return config, nil
}

// OpenPostgres connects to databaseURL and creates the tables if needed.
func OpenPostgres(ctx context.Context, databaseURL string) (*PGStore, error) {
	config, err := ParsePostgresDSN(databaseURL)
	if err != nil {
		return nil, err
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	s := &PGStore{pool: pool}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

func (s *PGStore) Driver() string { return DriverPostgres }

// Ping checks database connectivity.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PGStore) Put(ctx context.Context, r *Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO fair_models (uuid, name, type, created_at, document)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (uuid) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			created_at = EXCLUDED.created_at,
			document = EXCLUDED.document
	`, r.UUID, r.Name, r.Type, r.CreatedAt, string(r.Document))
	if err != nil {
		return fmt.Errorf("failed to store model %q: %w", r.Name, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO fair_results (uuid, mean, stdev, min_risk, max_risk)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (uuid) DO UPDATE SET
			mean = EXCLUDED.mean,
			stdev = EXCLUDED.stdev,
			min_risk = EXCLUDED.min_risk,
			max_risk = EXCLUDED.max_risk
	`, r.UUID, r.Results.Mean, r.Results.Stdev, r.Results.Min, r.Results.Max)
	if err != nil {
		return fmt.Errorf("failed to store results %q: %w", r.Name, err)
	}

	return tx.Commit(ctx)
}

func (s *PGStore) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := scanPGRecord(s.pool.QueryRow(ctx, pgSelect+` WHERE m.uuid = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: uuid %s", ErrNotFound, id)
	}
	return rec, err
}

func (s *PGStore) FindByName(ctx context.Context, name string) (*Record, error) {
	rec, err := scanPGRecord(s.pool.QueryRow(ctx, pgSelect+` WHERE m.name = $1 ORDER BY m.created_at, m.uuid LIMIT 1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: name %q", ErrNotFound, name)
	}
	return rec, err
}

func (s *PGStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, pgSelect+` ORDER BY m.created_at, m.uuid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		rec, err := scanPGRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec.Entry)
	}
	return out, rows.Err()
}

// Close closes the connection pool.
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPGRecord(row pgx.Row) (*Record, error) {
	var (
		rec      Record
		document string
	)
	err := row.Scan(&rec.UUID, &rec.Name, &rec.Type, &rec.CreatedAt, &document,
		&rec.Results.Mean, &rec.Results.Stdev, &rec.Results.Min, &rec.Results.Max)
	if err != nil {
		return nil, err
	}
	rec.Document = []byte(document)
	return &rec, nil
}
