package persist

import (
	"context"
	"sync"

	"github.com/foomo/formpersist/pkg/storage"
	"github.com/pkg/errors"
)

// recordingStorage counts the writes reaching the wrapped storage
type recordingStorage struct {
	storage.Storage
	mu     sync.Mutex
	writes [][]byte
}

func newRecordingStorage() *recordingStorage {
	return &recordingStorage{Storage: storage.NewMemoryStorage()}
}

func (s *recordingStorage) Write(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	s.writes = append(s.writes, append([]byte(nil), data...))
	s.mu.Unlock()
	return s.Storage.Write(ctx, key, data)
}

func (s *recordingStorage) Writes() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.writes...)
}

func (s *recordingStorage) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

var errBroken = errors.New("storage disabled")

// brokenStorage fails every operation
type brokenStorage struct {
	storage.Storage
}

func (brokenStorage) Read(context.Context, string) ([]byte, error) {
	return nil, errBroken
}

func (brokenStorage) Write(context.Context, string, []byte) error {
	return errBroken
}

// readOnlyStorage serves reads and rejects writes
type readOnlyStorage struct {
	storage.Storage
}

func (readOnlyStorage) Write(context.Context, string, []byte) error {
	return errBroken
}
