// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package plugin_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/crossweb-dev/crossweb/internal/plugin"
	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	sdk "github.com/crossweb-dev/crossweb/pkg/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects lifecycle calls across plugins in order.
type recorder struct {
	calls []string
}

func (r *recorder) plugin(name string, initErr error) *sdk.Funcs {
	return &sdk.Funcs{
		PluginName: name,
		InitFunc: func(ctx sdk.Context) error {
			r.calls = append(r.calls, "init:"+name+":"+string(ctx.Config))
			return initErr
		},
		EventFunc:   func(event, _ string) { r.calls = append(r.calls, "event:"+name+":"+event) },
		CleanupFunc: func() { r.calls = append(r.calls, "cleanup:"+name) },
	}
}

// bare implements only the minimum contract.
type bare struct{ name string }

func (b bare) Name() string { return b.name }
func (b bare) Version() int { return 1 }

// uncomparable has a slice field, so interface equality would panic.
type uncomparable struct {
	name string
	tags []string
}

func (u uncomparable) Name() string { return u.name }
func (u uncomparable) Version() int { return 1 }

func TestRegisterIsIdempotent(t *testing.T) {
	reg := plugin.NewRegistry(nil)
	rec := &recorder{}
	fs := rec.plugin("fs", nil)

	assert.True(t, reg.Register(fs))
	assert.False(t, reg.Register(fs), "same instance")
	assert.False(t, reg.Register(rec.plugin("fs", nil)), "same name")
	assert.True(t, reg.Register(rec.plugin("keystore", nil)))

	assert.Equal(t, []string{"fs", "keystore"}, reg.Names())
	assert.Equal(t, 2, reg.Len())

	got, ok := reg.Lookup("fs")
	require.True(t, ok)
	assert.Same(t, fs, got)
}

func TestRegisterRefusesUnroutableNames(t *testing.T) {
	reg := plugin.NewRegistry(nil)
	assert.False(t, reg.Register(nil))
	assert.False(t, reg.Register(bare{name: ""}))
	assert.False(t, reg.Register(bare{name: "a.b"}))
	assert.Equal(t, 0, reg.Len())
}

func TestRegisterUncomparablePlugins(t *testing.T) {
	reg := plugin.NewRegistry(nil)
	assert.True(t, reg.Register(uncomparable{name: "one"}))
	assert.True(t, reg.Register(uncomparable{name: "two"}))
	assert.False(t, reg.Register(uncomparable{name: "one"}))
}

func TestInitAllRunsOnceInOrderWithConfig(t *testing.T) {
	reg := plugin.NewRegistry(nil)
	rec := &recorder{}
	reg.Register(rec.plugin("a", nil))
	reg.Register(rec.plugin("b", nil))

	configs := map[string]json.RawMessage{"b": json.RawMessage(`{"root":"/tmp"}`)}
	require.NoError(t, reg.InitAll(sdk.Context{Platform: "linux"}, configs))
	require.NoError(t, reg.InitAll(sdk.Context{}, configs))

	assert.Equal(t, []string{"init:a:{}", `init:b:{"root":"/tmp"}`}, rec.calls)

	state, ok := reg.State("a")
	require.True(t, ok)
	assert.Equal(t, plugin.StateRunning, state)
}

func TestInitAllLateRegistrationInitializesOnlyNewcomers(t *testing.T) {
	reg := plugin.NewRegistry(nil)
	rec := &recorder{}
	reg.Register(rec.plugin("a", nil))
	require.NoError(t, reg.InitAll(sdk.Context{}, nil))

	reg.Register(rec.plugin("b", nil))
	require.NoError(t, reg.InitAll(sdk.Context{}, nil))

	assert.Equal(t, []string{"init:a:{}", "init:b:{}"}, rec.calls)
}

func TestInitAllFailureIsolatesPlugin(t *testing.T) {
	reg := plugin.NewRegistry(nil)
	rec := &recorder{}
	reg.Register(rec.plugin("broken", errors.New("no device")))
	reg.Register(rec.plugin("ok", nil))
	reg.Register(bare{name: "plain"})

	err := reg.InitAll(sdk.Context{}, nil)
	require.Error(t, err)
	assert.True(t, cwerr.HasCode(err, cwerr.CodePluginInitFailure))
	assert.Contains(t, err.Error(), "no device")

	broken, _ := reg.State("broken")
	ok, _ := reg.State("ok")
	plain, _ := reg.State("plain")
	assert.Equal(t, plugin.StateError, broken)
	assert.Equal(t, plugin.StateRunning, ok)
	assert.Equal(t, plugin.StateRunning, plain)
}

func TestInitPanicBecomesError(t *testing.T) {
	reg := plugin.NewRegistry(nil)
	reg.Register(&sdk.Funcs{PluginName: "boom", InitFunc: func(sdk.Context) error { panic("bad") }})

	err := reg.InitAll(sdk.Context{}, nil)
	require.Error(t, err)
	state, _ := reg.State("boom")
	assert.Equal(t, plugin.StateError, state)
}

func TestBroadcastReachesRunningPlugins(t *testing.T) {
	reg := plugin.NewRegistry(nil)
	rec := &recorder{}
	reg.Register(rec.plugin("a", nil))
	reg.Register(rec.plugin("bad", errors.New("x")))
	reg.Register(rec.plugin("c", nil))
	_ = reg.InitAll(sdk.Context{}, nil)
	rec.calls = nil

	reg.Broadcast("runtime.reloaded", "{}")
	assert.Equal(t, []string{"event:a:runtime.reloaded", "event:c:runtime.reloaded"}, rec.calls)
}

func TestCleanupAllRunsOnceInRegistrationOrder(t *testing.T) {
	reg := plugin.NewRegistry(nil)
	rec := &recorder{}
	reg.Register(rec.plugin("a", nil))
	reg.Register(rec.plugin("b", errors.New("x")))
	reg.Register(rec.plugin("c", nil))
	_ = reg.InitAll(sdk.Context{}, nil)
	rec.calls = nil

	reg.CleanupAll()
	reg.CleanupAll()

	assert.Equal(t, []string{"cleanup:a", "cleanup:b", "cleanup:c"}, rec.calls)
	for _, name := range reg.Names() {
		state, _ := reg.State(name)
		assert.Equal(t, plugin.StateStopped, state)
	}
}

func TestCleanupAllSkipsUninitialized(t *testing.T) {
	reg := plugin.NewRegistry(nil)
	rec := &recorder{}
	reg.Register(rec.plugin("a", nil))

	reg.CleanupAll()
	assert.Empty(t, rec.calls)
	state, _ := reg.State("a")
	assert.Equal(t, plugin.StateStopped, state)
}
