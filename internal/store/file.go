package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/capitalize-ai/support-desk/internal/model"
)

// FileStore keeps each slot in <dir>/<slot>.json.
type FileStore struct {
	mu   sync.Mutex
	dir  string
	path string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir, slot string) (*FileStore, error) {
	if slot == "" {
		return nil, errors.New("file store: missing slot name")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{
		dir:  dir,
		path: filepath.Join(dir, slot+".json"),
	}, nil
}

// Backend implements Named.
func (s *FileStore) Backend() string { return "file" }

// Path returns the slot file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) read() ([]byte, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return b, err
}

// Load reads the slot file. A missing file is an empty log.
func (s *FileStore) Load(ctx context.Context) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.read()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	return DecodeLog(b)
}

// Append rewrites the slot with e added at the end.
func (s *FileStore) Append(ctx context.Context, e model.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.read()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	next, err := appendEncoded(b, e)
	if err != nil {
		return err
	}
	if err := atomicWriteFile(s.dir, s.path, next); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return nil
}

// Clear removes the slot file.
func (s *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear %s: %w", s.path, err)
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

func atomicWriteFile(dir, path string, b []byte) error {
	f, err := os.CreateTemp(dir, ".slot-*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, 0o644)
	return os.Rename(tmp, path)
}
