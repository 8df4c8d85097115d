package persist

import (
	"context"
	"sort"
	"sync"

	"github.com/foomo/formpersist/pkg/metrics"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type (
	// Registry hands out mounted forms by name, creating them on first use.
	Registry struct {
		l        *zap.Logger
		backends Backends
		profiles *Profiles
		defaults []Option
		maxForms int
		forms    map[string]*Form
		used     map[string]uint64
		tick     uint64
		formsMu  sync.Mutex
	}
	RegistryOption func(*Registry)
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func NewRegistry(l *zap.Logger, backends Backends, opts ...RegistryOption) *Registry {
	inst := &Registry{
		l:        l.Named("registry"),
		backends: backends,
		forms:    map[string]*Form{},
		used:     map[string]uint64{},
	}

	for _, opt := range opts {
		opt(inst)
	}

	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func RegistryWithProfiles(v *Profiles) RegistryOption {
	return func(o *Registry) {
		o.profiles = v
	}
}

// RegistryWithMaxForms caps the number of forms held in memory. The least
// recently used form is closed, committing its pending write, to make room.
// Zero means unlimited.
func RegistryWithMaxForms(v int) RegistryOption {
	return func(o *Registry) {
		o.maxForms = v
	}
}

// RegistryWithDefaults sets options applied to every form before its profile
func RegistryWithDefaults(v ...Option) RegistryOption {
	return func(o *Registry) {
		o.defaults = append(o.defaults, v...)
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Form returns the named form, creating and mounting it on first use.
// A form whose mount failed is not kept, so the next call retries.
func (r *Registry) Form(ctx context.Context, name string) (*Form, error) {
	r.formsMu.Lock()
	defer r.formsMu.Unlock()

	if f, ok := r.forms[name]; ok {
		r.touch(name)
		return f, nil
	}

	opts := append(append([]Option{}, r.defaults...), r.profiles.Options(name)...)
	f, err := NewForm(r.l, name, r.backends, opts...)
	if err != nil {
		return nil, err
	}
	if err := f.Mount(ctx); err != nil {
		return nil, err
	}

	if r.maxForms > 0 && len(r.forms) >= r.maxForms {
		r.evict(ctx)
	}
	r.forms[name] = f
	r.touch(name)
	metrics.FormsGauge.WithLabelValues().Set(float64(len(r.forms)))
	r.l.Info("form mounted",
		zap.String("name", name),
		zap.String("scope", string(f.Controller().Scope())),
		zap.Duration("debounce", f.Controller().Debounce()),
		zap.Strings("ignore_fields", f.Controller().IgnoreFields()),
	)
	return f, nil
}

// Names returns the names of all mounted forms, sorted
func (r *Registry) Names() []string {
	r.formsMu.Lock()
	defer r.formsMu.Unlock()
	names := make([]string, 0, len(r.forms))
	for name := range r.forms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Flush commits the pending writes of all forms.
func (r *Registry) Flush(ctx context.Context) error {
	return r.each(ctx, (*Form).Flush)
}

// Close flushes and closes all forms and forgets them.
func (r *Registry) Close(ctx context.Context) error {
	err := r.each(ctx, (*Form).Close)

	r.formsMu.Lock()
	r.forms = map[string]*Form{}
	r.used = map[string]uint64{}
	r.formsMu.Unlock()
	metrics.FormsGauge.WithLabelValues().Set(0)

	return err
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func (r *Registry) each(ctx context.Context, fn func(*Form, context.Context) error) error {
	r.formsMu.Lock()
	forms := make([]*Form, 0, len(r.forms))
	for _, f := range r.forms {
		forms = append(forms, f)
	}
	r.formsMu.Unlock()

	var (
		mu   sync.Mutex
		errs error
		g    errgroup.Group
	)
	for _, f := range forms {
		g.Go(func() error {
			if err := fn(f, ctx); err != nil {
				r.l.Error("form operation failed", zap.String("name", f.Controller().Name()), zap.Error(err))
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// touch must be called with formsMu held
func (r *Registry) touch(name string) {
	r.tick++
	r.used[name] = r.tick
}

// evict closes the least recently used form, must be called with formsMu held
func (r *Registry) evict(ctx context.Context) {
	var (
		oldest string
		tick   uint64
	)
	for name, used := range r.used {
		if oldest == "" || used < tick {
			oldest, tick = name, used
		}
	}
	f, ok := r.forms[oldest]
	if !ok {
		return
	}
	delete(r.forms, oldest)
	delete(r.used, oldest)
	if err := f.Close(ctx); err != nil {
		r.l.Error("failed to close evicted form", zap.String("name", oldest), zap.Error(err))
		return
	}
	r.l.Debug("form evicted", zap.String("name", oldest))
}
