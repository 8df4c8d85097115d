package persist

import (
	"context"
	"sync"

	"github.com/foomo/formpersist/pkg/redact"
	"go.uber.org/zap"
)

// Form owns the live state of a single form and reports every transition to
// its Controller, the way a UI form library would.
type Form struct {
	l    *zap.Logger
	ctrl *Controller
	// serializes transitions so notifications arrive in state order
	opMu  sync.Mutex
	mu    sync.RWMutex
	state State
}

// NewForm creates a form with an empty state bound to a new controller.
func NewForm(l *zap.Logger, name string, backends Backends, opts ...Option) (*Form, error) {
	inst := &Form{
		l:     l.Named("form").With(zap.String("name", name)),
		state: State{},
	}
	ctrl, err := New(l, name, backends, inst.replace, opts...)
	if err != nil {
		return nil, err
	}
	inst.ctrl = ctrl
	return inst, nil
}

func (f *Form) Controller() *Controller {
	return f.ctrl
}

// Mount rehydrates the form from storage once.
func (f *Form) Mount(ctx context.Context) error {
	f.opMu.Lock()
	defer f.opMu.Unlock()
	return f.ctrl.Initialize(ctx)
}

// State returns a copy of the current form state
func (f *Form) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out, _ := redact.DeepCopy(f.state).(State)
	return out
}

// SetState replaces the whole form state.
func (f *Form) SetState(next State) (bool, error) {
	next, _ = redact.DeepCopy(next).(State)
	if next == nil {
		next = State{}
	}

	f.opMu.Lock()
	defer f.opMu.Unlock()

	f.mu.Lock()
	prev := f.state
	f.state = next
	f.mu.Unlock()

	return f.ctrl.OnStateChanged(next, prev)
}

// SetValues replaces the values of the form, keeping everything else.
func (f *Form) SetValues(values map[string]any) (bool, error) {
	f.opMu.Lock()
	defer f.opMu.Unlock()

	f.mu.Lock()
	prev := f.state
	next := make(State, len(prev)+1)
	for k, v := range prev {
		next[k] = v
	}
	next[KeyValues], _ = redact.DeepCopy(values).(map[string]any)
	f.state = next
	f.mu.Unlock()

	return f.ctrl.OnStateChanged(next, prev)
}

func (f *Form) Flush(ctx context.Context) error {
	return f.ctrl.Flush(ctx)
}

func (f *Form) Close(ctx context.Context) error {
	return f.ctrl.Close(ctx)
}

// replace is the restore callback: a full replacement, no merge
func (f *Form) replace(state State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = state
	f.l.Debug("form state replaced from storage")
}
