package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/dd0wney/cluso-fair/pkg/fair"
)

// sqliteSchema keeps each model document in models and its Risk summary in results.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS models (
		uuid string,
		name string,
		creation_date text NOT NULL,
		json string NOT NULL,
		CONSTRAINT model_pk PRIMARY KEY (uuid))`,
	`CREATE TABLE IF NOT EXISTS results (
		uuid string,
		mean real NOT NULL,
		stdev real NOT NULL,
		min real NOT NULL,
		max real NOT NULL,
		CONSTRAINT results_pk PRIMARY KEY (uuid))`,
}

const sqliteSelect = `
	SELECT m.uuid, m.name, m.creation_date, m.json, r.mean, r.stdev, r.min, r.max
	FROM models m JOIN results r ON r.uuid = m.uuid`

// SQLiteStore keeps models in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Backend = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite db: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Driver() string { return DriverSQLite }

// Put writes the model and its results in one transaction.
func (s *SQLiteStore) Put(ctx context.Context, r *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO models VALUES(?, ?, ?, ?)`,
		r.UUID, r.Name, fair.FormatCreationDate(r.CreatedAt), string(r.Document),
	); err != nil {
		return fmt.Errorf("put model %q: %w", r.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO results VALUES(?, ?, ?, ?, ?)`,
		r.UUID, r.Results.Mean, r.Results.Stdev, r.Results.Min, r.Results.Max,
	); err != nil {
		return fmt.Errorf("put results %q: %w", r.Name, err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, sqliteSelect+` WHERE m.uuid = ?`, id)
	rec, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: uuid %s", ErrNotFound, id)
	}
	return rec, err
}

func (s *SQLiteStore) FindByName(ctx context.Context, name string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, sqliteSelect+` WHERE m.name = ? ORDER BY m.creation_date, m.uuid LIMIT 1`, name)
	rec, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: name %q", ErrNotFound, name)
	}
	return rec, err
}

func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, sqliteSelect+` ORDER BY m.creation_date, m.uuid`)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec.Entry)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row rowScanner) (*Record, error) {
	var (
		rec      Record
		created  string
		document string
	)
	err := row.Scan(&rec.UUID, &rec.Name, &created, &document,
		&rec.Results.Mean, &rec.Results.Stdev, &rec.Results.Min, &rec.Results.Max)
	if err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = fair.ParseCreationDate(created); err != nil {
		return nil, err
	}
	rec.Document = []byte(document)
	if rec.Type, err = documentType(rec.Document); err != nil {
		return nil, err
	}
	return &rec, nil
}
