package store

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
)

const fileExt = ".fair.sz"

// fileEnvelope is the on-disk form of a Record. The document is kept as a
// string so its bytes survive unchanged.
type fileEnvelope struct {
	UUID      string    `json:"uuid"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Results   Results   `json:"results"`
	Document  string    `json:"document"`
}

// FileStore keeps one snappy-compressed file per model in a directory.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

var _ Backend = (*FileStore)(nil)

// OpenFile uses dir, creating it if needed.
func OpenFile(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Driver() string { return DriverFile }

func (s *FileStore) path(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("invalid model uuid %q: %w", id, err)
	}
	return filepath.Join(s.dir, parsed.String()+fileExt), nil
}

// Put writes the record to a temporary file and renames it into place.
func (s *FileStore) Put(ctx context.Context, r *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(r.UUID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(fileEnvelope{
		UUID:      r.UUID,
		Name:      r.Name,
		Type:      r.Type,
		CreatedAt: r.CreatedAt,
		Results:   r.Results,
		Document:  string(r.Document),
	})
	if err != nil {
		return fmt.Errorf("encode %q: %w", r.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(snappy.Encode(nil, data)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %q: %w", r.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %q: %w", r.Name, err)
	}
	return os.Rename(tmp.Name(), path)
}

func (s *FileStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.path(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := readRecord(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: uuid %s", ErrNotFound, id)
	}
	return rec, err
}

func (s *FileStore) FindByName(ctx context.Context, name string) (*Record, error) {
	records, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.Name == name {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("%w: name %q", ErrNotFound, name)
}

func (s *FileStore) List(ctx context.Context) ([]Entry, error) {
	records, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(records))
	for i, rec := range records {
		out[i] = rec.Entry
	}
	return out, nil
}

// all reads every record, oldest first.
func (s *FileStore) all(ctx context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+fileExt))
	if err != nil {
		return nil, err
	}
	records := make([]*Record, 0, len(matches))
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := readRecord(path)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	slices.SortFunc(records, func(a, b *Record) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), strings.Compare(a.UUID, b.UUID))
	})
	return records, nil
}

func (s *FileStore) Close() error { return nil }

func readRecord(path string) (*Record, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", filepath.Base(path), err)
	}
	var env fileEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return &Record{
		Entry: Entry{
			UUID:      env.UUID,
			Name:      env.Name,
			Type:      env.Type,
			CreatedAt: env.CreatedAt,
			Results:   env.Results,
		},
		Document: []byte(env.Document),
	}, nil
}
