package storage

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Scope tells how long a slot outlives the process that wrote it
type Scope string

const (
	// ScopeSession slots live as long as the owning process
	ScopeSession Scope = "session"
	// ScopePersistent slots survive restarts
	ScopePersistent Scope = "persistent"
)

// ErrInvalidKey is returned for keys that can not name a slot
var ErrInvalidKey = errors.New("invalid storage key")

// Storage is the key/value contract every slot backend implements.
// Each key holds exactly one value which is replaced on every write.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Write replaces the value stored under key.
	Write(ctx context.Context, key string, data []byte) error

	// Read returns the value stored under key.
	// Returns os.ErrNotExist if the key does not exist.
	Read(ctx context.Context, key string) ([]byte, error)

	// List returns keys matching the given prefix, sorted alphabetically descending.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the value for key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}

// ValidateKey rejects keys that would escape a flat namespace
func ValidateKey(key string) error {
	switch {
	case key == "":
		return errors.Wrap(ErrInvalidKey, "key must not be empty")
	case strings.ContainsAny(key, `/\`):
		return errors.Wrapf(ErrInvalidKey, "key %q must not contain path separators", key)
	case key == "." || key == "..":
		return errors.Wrapf(ErrInvalidKey, "key %q is reserved", key)
	}
	return nil
}
