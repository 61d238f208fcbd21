package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrNotFound = errors.New("storage key not found")

// Store is the durable key/value capability the ledger and the active
// contract cache persist through. Load returns ErrNotFound for missing keys.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// FileStore keeps one file per key under a state root.
type FileStore struct {
	validator *KeyValidator
}

func NewFileStore(root string) (*FileStore, error) {
	validator, err := NewKeyValidator(root)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(validator.RootAbs(), 0o755); err != nil {
		return nil, fmt.Errorf("create state root: %w", err)
	}

	return &FileStore{validator: validator}, nil
}

func (s *FileStore) RootAbs() string {
	return s.validator.RootAbs()
}

// Ping checks that the state root is still a reachable directory.
func (s *FileStore) Ping(_ context.Context) error {
	info, err := os.Stat(s.validator.RootAbs())
	if err != nil {
		return fmt.Errorf("stat state root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("state root %q is not a directory", s.validator.RootAbs())
	}
	return nil
}

func (s *FileStore) Load(_ context.Context, key string) ([]byte, error) {
	resolved, err := s.validator.ResolveKey(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", key, err)
	}

	return data, nil
}

// Save writes through a temp file and rename so a crash never leaves a
// half-written value behind.
func (s *FileStore) Save(_ context.Context, key string, value []byte) error {
	resolved, err := s.validator.ResolveKey(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(resolved), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %q: %w", key, err)
	}
	tmpName := tmp.Name()

	_, writeErr := tmp.Write(value)
	closeErr := tmp.Close()
	if writeErr != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %q: %w", key, writeErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %q: %w", key, closeErr)
	}

	if err := os.Rename(tmpName, resolved); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %q: %w", key, err)
	}

	return nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	resolved, err := s.validator.ResolveKey(key)
	if err != nil {
		return err
	}

	if err := os.Remove(resolved); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %q: %w", key, err)
	}

	return nil
}
