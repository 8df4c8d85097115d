package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/foomo/formpersist/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestForm_SetValuesAndRehydrate(t *testing.T) {
	var (
		ctx      = context.Background()
		l        = zaptest.NewLogger(t)
		backends = Backends{Persistent: storage.NewMemoryStorage()}
	)

	f, err := NewForm(l, "signup", backends, WithDebounce(0), WithIgnoreFields([]string{"password"}))
	require.NoError(t, err)
	require.NoError(t, f.Mount(ctx))

	scheduled, err := f.SetValues(map[string]any{"name": "ian", "password": "secret"})
	require.NoError(t, err)
	assert.True(t, scheduled)
	assert.Equal(t, State{"values": map[string]any{"name": "ian", "password": "secret"}}, f.State())
	require.NoError(t, f.Close(ctx))

	g, err := NewForm(l, "signup", backends, WithDebounce(0))
	require.NoError(t, err)
	require.NoError(t, g.Mount(ctx))
	assert.Equal(t, State{"values": map[string]any{"name": "ian"}}, g.State())
}

func TestForm_SetStateUnchanged(t *testing.T) {
	ctx := context.Background()
	s := newRecordingStorage()
	f, err := NewForm(zaptest.NewLogger(t), "signup", Backends{Persistent: s}, WithDebounce(0))
	require.NoError(t, err)
	require.NoError(t, f.Mount(ctx))

	scheduled, err := f.SetState(State{"values": map[string]any{"a": 1}})
	require.NoError(t, err)
	assert.True(t, scheduled)

	scheduled, err = f.SetState(State{"values": map[string]any{"a": 1}})
	require.NoError(t, err)
	assert.False(t, scheduled)

	require.NoError(t, f.Flush(ctx))
	assert.Equal(t, 1, s.WriteCount())
}

func TestForm_StateIsACopy(t *testing.T) {
	ctx := context.Background()
	f, err := NewForm(zaptest.NewLogger(t), "signup", Backends{Persistent: storage.NewMemoryStorage()})
	require.NoError(t, err)
	require.NoError(t, f.Mount(ctx))
	t.Cleanup(func() {
		assert.NoError(t, f.Close(ctx))
		assert.False(t, f.Controller().Pending())
	})

	values := map[string]any{"a": 1}
	_, err = f.SetValues(values)
	require.NoError(t, err)
	values["a"] = 2

	state := f.State()
	state["values"].(map[string]any)["a"] = 3
	assert.Equal(t, 1, f.State()["values"].(map[string]any)["a"])
}

func TestRegistry_Form(t *testing.T) {
	var (
		ctx      = context.Background()
		session  = newRecordingStorage()
		backends = Backends{Session: session, Persistent: storage.NewMemoryStorage()}
	)
	profiles, err := ParseProfiles([]byte(`
forms:
  checkout:
    session_storage: true
    ignore_fields: [card.number]
`))
	require.NoError(t, err)

	r := NewRegistry(zaptest.NewLogger(t), backends,
		RegistryWithDefaults(WithDebounce(time.Hour)),
		RegistryWithProfiles(profiles),
	)

	f, err := r.Form(ctx, "checkout")
	require.NoError(t, err)
	same, err := r.Form(ctx, "checkout")
	require.NoError(t, err)
	assert.Same(t, f, same)
	assert.Equal(t, storage.ScopeSession, f.Controller().Scope())
	assert.Equal(t, []string{"card.number"}, f.Controller().IgnoreFields())

	_, err = f.SetValues(map[string]any{"card": map[string]any{"number": "4111", "holder": "x"}})
	require.NoError(t, err)
	assert.True(t, f.Controller().Pending())

	_, err = r.Form(ctx, "signup")
	require.NoError(t, err)
	assert.Equal(t, []string{"checkout", "signup"}, r.Names())

	require.NoError(t, r.Close(ctx))
	require.Equal(t, 1, session.WriteCount())
	assert.JSONEq(t, `{"values":{"card":{"holder":"x"}}}`, string(session.Writes()[0]))
	assert.Empty(t, r.Names())
}

func TestRegistry_MountFailureIsNotCached(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStorage()
	require.NoError(t, s.Write(ctx, "signup", []byte("{broken")))

	r := NewRegistry(zaptest.NewLogger(t), Backends{Persistent: s})
	_, err := r.Form(ctx, "signup")
	require.ErrorIs(t, err, ErrDeserialization)
	assert.Empty(t, r.Names())

	require.NoError(t, s.Write(ctx, "signup", []byte(`{"values":{"a":1}}`)))
	f, err := r.Form(ctx, "signup")
	require.NoError(t, err)
	assert.Equal(t, State{"values": map[string]any{"a": float64(1)}}, f.State())
}

func TestRegistry_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	s := newRecordingStorage()
	r := NewRegistry(zaptest.NewLogger(t), Backends{Persistent: s},
		RegistryWithDefaults(WithDebounce(time.Hour)),
		RegistryWithMaxForms(2),
	)
	t.Cleanup(func() { _ = r.Close(ctx) })

	signup, err := r.Form(ctx, "signup")
	require.NoError(t, err)
	_, err = signup.SetValues(map[string]any{"name": "ian"})
	require.NoError(t, err)

	_, err = r.Form(ctx, "checkout")
	require.NoError(t, err)
	_, err = r.Form(ctx, "signup")
	require.NoError(t, err)

	_, err = r.Form(ctx, "profile")
	require.NoError(t, err)
	assert.Equal(t, []string{"profile", "signup"}, r.Names())
	assert.Equal(t, 0, s.WriteCount())

	_, err = r.Form(ctx, "contact")
	require.NoError(t, err)
	assert.Equal(t, []string{"contact", "profile"}, r.Names())
	assert.False(t, signup.Controller().Pending())
	require.Equal(t, 1, s.WriteCount())
	assert.JSONEq(t, `{"values":{"name":"ian"}}`, string(s.Writes()[0]))

	again, err := r.Form(ctx, "signup")
	require.NoError(t, err)
	assert.NotSame(t, signup, again)
	assert.Equal(t, State{"values": map[string]any{"name": "ian"}}, again.State())
}

func TestParseProfiles(t *testing.T) {
	p, err := ParseProfiles([]byte(`
defaults:
  debounce: 500ms
  ignore_fields: [password]
forms:
  signup:
    debounce: 0s
    full_path_matching: true
  checkout:
    ignore_fields: [card.cvc]
    session_storage: true
`))
	require.NoError(t, err)

	backends := Backends{Session: storage.NewMemoryStorage(), Persistent: storage.NewMemoryStorage()}
	build := func(name string) *Controller {
		c, err := New(zaptest.NewLogger(t), name, backends, nil, p.Options(name)...)
		require.NoError(t, err)
		return c
	}

	signup := build("signup")
	assert.Equal(t, time.Duration(0), signup.Debounce())
	assert.Equal(t, []string{"password"}, signup.IgnoreFields())
	assert.Equal(t, storage.ScopePersistent, signup.Scope())

	checkout := build("checkout")
	assert.Equal(t, 500*time.Millisecond, checkout.Debounce())
	assert.Equal(t, []string{"card.cvc"}, checkout.IgnoreFields())
	assert.Equal(t, storage.ScopeSession, checkout.Scope())

	other := build("other")
	assert.Equal(t, 500*time.Millisecond, other.Debounce())
	assert.Equal(t, []string{"password"}, other.IgnoreFields())
}

func TestParseProfiles_Invalid(t *testing.T) {
	_, err := ParseProfiles([]byte("forms: [nope"))
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = ParseProfiles([]byte("forms:\n  signup:\n    debounce: -1s\n"))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestLoadProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defaults:\n  session_storage: true\n"), 0600))

	p, err := LoadProfiles(path)
	require.NoError(t, err)
	require.NotNil(t, p.Defaults.SessionStorage)
	assert.True(t, *p.Defaults.SessionStorage)

	_, err = LoadProfiles(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestProfiles_NilOptions(t *testing.T) {
	var p *Profiles
	assert.Empty(t, p.Options("signup"))
}
