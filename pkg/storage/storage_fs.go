package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// FilesystemSuffix is appended to every key to form the slot file name
const FilesystemSuffix = ".json"

// FilesystemStorage keeps one file per slot in a flat directory.
type FilesystemStorage struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFilesystemStorage creates the base directory if needed.
func NewFilesystemStorage(baseDir string) (*FilesystemStorage, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, errors.Wrap(err, "failed to create storage directory")
	}
	return &FilesystemStorage{baseDir: baseDir}, nil
}

// Dir returns the base directory
func (f *FilesystemStorage) Dir() string {
	return f.baseDir
}

// Write replaces the slot file atomically through a temp file and rename,
// so a reader never sees a partially written slot.
func (f *FilesystemStorage) Write(_ context.Context, key string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.baseDir, "."+key+"-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "failed to write temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close temp file")
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path(key))
}

func (f *FilesystemStorage) Read(_ context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return os.ReadFile(f.path(key))
}

// List only considers slot files in the base directory.
func (f *FilesystemStorage) List(_ context.Context, prefix string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, FilesystemSuffix) {
			continue
		}
		if key := strings.TrimSuffix(name, FilesystemSuffix); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys, nil
}

func (f *FilesystemStorage) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (f *FilesystemStorage) Close() error {
	return nil
}

func (f *FilesystemStorage) path(key string) string {
	return filepath.Join(f.baseDir, key+FilesystemSuffix)
}
