package persist

import (
	"github.com/pkg/errors"
)

var (
	// ErrConfiguration is returned by New for an unusable configuration
	ErrConfiguration = errors.New("configuration error")
	// ErrSerialization is returned when a state can not be encoded
	ErrSerialization = errors.New("serialization error")
	// ErrDeserialization is returned when a stored slot is not valid JSON
	ErrDeserialization = errors.New("deserialization error")
	// ErrStorageUnavailable wraps any failure reported by the storage backend
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrNotInitialized is returned for changes observed before Initialize
	ErrNotInitialized = errors.New("controller not initialized")
	// ErrClosed is returned for operations on a closed controller
	ErrClosed = errors.New("controller closed")
)
