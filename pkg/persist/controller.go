package persist

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/foomo/formpersist/pkg/metrics"
	"github.com/foomo/formpersist/pkg/redact"
	"github.com/foomo/formpersist/pkg/storage"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiescent window used when WithDebounce is not given
const DefaultDebounce = 300 * time.Millisecond

// Top level state keys the redactor is applied to
const (
	KeyValues  = "values"
	KeyTouched = "touched"
	KeyErrors  = "errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type (
	// State is an observed form state tree, e.g. {values, touched, errors, ...}
	State = map[string]any

	// RestoreFunc replaces the host's form state with a previously stored one
	RestoreFunc func(state State)

	// Backends holds the two storages a controller may be bound to
	Backends struct {
		Session    storage.Storage
		Persistent storage.Storage
	}

	Controller struct {
		l              *zap.Logger
		name           string
		ignoreFields   []string
		debounce       time.Duration
		sessionStorage bool
		fullPath       bool
		storage        storage.Storage
		redactor       *redact.Redactor
		restore        RestoreFunc
		onError        func(error)
		debouncer      *debouncer

		mu          sync.Mutex
		initialized bool
		closed      bool
		mountErr    error
		lastErr     error
	}
	Option func(*Controller)
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

// New binds a controller to the slot name in one of the backends.
func New(l *zap.Logger, name string, backends Backends, restore RestoreFunc, opts ...Option) (*Controller, error) {
	inst := &Controller{
		l:        l.Named("controller").With(zap.String("name", name)),
		name:     name,
		debounce: DefaultDebounce,
		restore:  restore,
	}

	for _, opt := range opts {
		opt(inst)
	}

	if name == "" {
		return nil, errors.Wrap(ErrConfiguration, "name must not be empty")
	}
	if inst.debounce < 0 {
		return nil, errors.Wrapf(ErrConfiguration, "debounce must not be negative: %s", inst.debounce)
	}

	inst.storage = backends.Persistent
	if inst.sessionStorage {
		inst.storage = backends.Session
	}
	if inst.storage == nil {
		return nil, errors.Wrapf(ErrConfiguration, "no %s storage backend configured", inst.Scope())
	}

	if inst.onError == nil {
		inst.onError = inst.logError
	}
	inst.redactor = redact.New(inst.ignoreFields, redact.WithFullPathMatching(inst.fullPath))
	inst.debouncer = newDebouncer(inst.debounce)

	return inst, nil
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func WithIgnoreFields(v []string) Option {
	return func(o *Controller) {
		o.ignoreFields = append([]string(nil), v...)
	}
}

func WithDebounce(v time.Duration) Option {
	return func(o *Controller) {
		o.debounce = v
	}
}

func WithSessionStorage(v bool) Option {
	return func(o *Controller) {
		o.sessionStorage = v
	}
}

func WithFullPathMatching(v bool) Option {
	return func(o *Controller) {
		o.fullPath = v
	}
}

// WithErrorHandler receives errors of writes fired by the debounce timer.
func WithErrorHandler(v func(error)) Option {
	return func(o *Controller) {
		o.onError = v
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Getter
// ------------------------------------------------------------------------------------------------

func (c *Controller) Name() string {
	return c.name
}

func (c *Controller) Debounce() time.Duration {
	return c.debounce
}

func (c *Controller) IgnoreFields() []string {
	return append([]string(nil), c.ignoreFields...)
}

func (c *Controller) Scope() storage.Scope {
	if c.sessionStorage {
		return storage.ScopeSession
	}
	return storage.ScopePersistent
}

func (c *Controller) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// Pending is true while a write waits for the debounce window
func (c *Controller) Pending() bool {
	return c.debouncer.Pending()
}

// LastError returns the error of the most recent write, if it failed
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Initialize rehydrates the host state from the slot. Only the first call
// reads the storage; later calls are no-ops.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.initialized {
		c.l.Debug("already initialized")
		return c.mountErr
	}
	c.initialized = true

	state, ok, err := c.Load(ctx)
	if err != nil {
		c.mountErr = err
		metrics.RestoresCounter.WithLabelValues(string(c.Scope()), "error").Inc()
		return err
	}
	if !ok {
		c.l.Debug("nothing to restore")
		metrics.RestoresCounter.WithLabelValues(string(c.Scope()), "empty").Inc()
		return nil
	}

	if c.restore != nil {
		c.restore(state)
	}
	c.l.Info("restored form state", zap.String("scope", string(c.Scope())))
	metrics.RestoresCounter.WithLabelValues(string(c.Scope()), "success").Inc()
	return nil
}

// Load reads and decodes the slot. ok is false if nothing was stored yet.
func (c *Controller) Load(ctx context.Context) (state State, ok bool, err error) {
	data, err := c.storage.Read(ctx, c.name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("%w: read %q: %w", ErrStorageUnavailable, c.name, err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, false, nil
	}

	if err := json.Unmarshal(data, &state); err != nil {
		return nil, false, fmt.Errorf("%w: decode %q: %w", ErrDeserialization, c.name, err)
	}
	return state, true, nil
}

// OnStateChanged schedules a save when next differs structurally from prev.
// It reports whether a save was scheduled. After a failed Initialize the
// stored slot is left alone and the rehydration error is returned.
func (c *Controller) OnStateChanged(next, prev State) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed:
		return false, ErrClosed
	case !c.initialized:
		return false, ErrNotInitialized
	case c.mountErr != nil:
		return false, c.blocked()
	case reflect.DeepEqual(next, prev):
		metrics.ChangesSkippedCounter.WithLabelValues().Inc()
		return false, nil
	}

	c.saveForm(next)
	return true, nil
}

// SaveForm sanitizes state right away and writes it once the debounce window
// elapsed without another save. Only the most recent state is written.
func (c *Controller) SaveForm(state State) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.mountErr != nil {
		return c.blocked()
	}
	c.saveForm(state)
	return nil
}

// Sanitize returns a copy of state with ignored fields removed from
// values, touched and errors. Other top level keys are copied verbatim.
func (c *Controller) Sanitize(state State) State {
	if state == nil {
		return nil
	}
	out := make(State, len(state))
	for key, value := range state {
		switch key {
		case KeyValues, KeyTouched, KeyErrors:
			if tree, ok := redact.DeepCopy(value).(map[string]any); ok {
				out[key] = c.redactor.Redact(tree)
				continue
			}
		}
		out[key] = redact.DeepCopy(value)
	}
	return out
}

// Encode serializes a sanitized state into its stored form.
func (c *Controller) Encode(state State) ([]byte, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %q: %w", ErrSerialization, c.name, err)
	}
	return data, nil
}

// Flush commits a pending write right away and returns its error.
// Without a pending write it returns nil.
func (c *Controller) Flush(ctx context.Context) error {
	_, err := c.debouncer.Flush(ctx)
	return err
}

// Close commits a pending write and rejects further changes.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	return c.Flush(ctx)
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

// saveForm must be called with mu held
func (c *Controller) saveForm(state State) {
	snapshot := c.Sanitize(state)
	if c.debouncer.Trigger(func(ctx context.Context) error {
		return c.write(ctx, snapshot)
	}) {
		metrics.SavesSupersededCounter.WithLabelValues(string(c.Scope())).Inc()
	}
}

func (c *Controller) write(ctx context.Context, snapshot State) (err error) {
	var (
		start = time.Now()
		l     = c.l.With(zap.String("write_id", uuid.New().String()))
	)

	defer func() {
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()

		result := "success"
		if err != nil {
			result = "error"
			c.onError(err)
		}
		metrics.WritesCounter.WithLabelValues(string(c.Scope()), result).Inc()
		metrics.WriteDuration.WithLabelValues(string(c.Scope())).Observe(time.Since(start).Seconds())
	}()

	data, err := c.Encode(snapshot)
	if err != nil {
		return err
	}

	if werr := c.storage.Write(ctx, c.name, data); werr != nil {
		return fmt.Errorf("%w: write %q: %w", ErrStorageUnavailable, c.name, werr)
	}
	l.Debug("persisted form state", zap.Int("bytes", len(data)))
	return nil
}

// blocked must be called with mu held. A failed rehydration blocks every
// later write so the stored slot is never replaced by defaults.
func (c *Controller) blocked() error {
	return fmt.Errorf("not saving %q after failed rehydration: %w", c.name, c.mountErr)
}

func (c *Controller) logError(err error) {
	c.l.Error("failed to persist form state", zap.Error(err))
}
