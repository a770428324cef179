// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package plugin

import (
	"encoding/json"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	sdk "github.com/crossweb-dev/crossweb/pkg/plugin"
)

var emptyConfig = json.RawMessage("{}")

type entry struct {
	plugin   sdk.Plugin
	instance *Instance
}

// Registry holds plugins in registration order. Names are unique; it is
// safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries []*entry
	byName  map[string]*entry
	logger  *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger uses slog.Default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byName: make(map[string]*entry),
		logger: logger,
	}
}

// Register appends p. Registering the same plugin value or another plugin
// with an existing name is a no-op and returns false. Names that are empty
// or contain '.' cannot be routed to and are refused.
func (r *Registry) Register(p sdk.Plugin) bool {
	if p == nil {
		return false
	}
	name := p.Name()
	if name == "" || strings.Contains(name, ".") {
		r.logger.Warn("refusing plugin with unroutable name", "plugin", name)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[name]; ok {
		r.logger.Debug("plugin already registered", "plugin", name, "same_instance", sameInstance(existing.plugin, p))
		return false
	}
	for _, e := range r.entries {
		if sameInstance(e.plugin, p) {
			r.logger.Debug("plugin instance already registered", "plugin", name, "registered_as", e.instance.Name())
			return false
		}
	}

	e := &entry{plugin: p, instance: NewInstance(name, StateRegistered)}
	r.entries = append(r.entries, e)
	r.byName[name] = e
	return true
}

func sameInstance(a, b sdk.Plugin) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// Lookup returns the plugin registered under name.
func (r *Registry) Lookup(name string) (sdk.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return e.plugin, true
}

// State returns the lifecycle state of the named plugin.
func (r *Registry) State(name string) (PluginState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byName[name]
	if !ok {
		return 0, false
	}
	return e.instance.State(), true
}

// Plugins returns the registered plugins in registration order.
func (r *Registry) Plugins() []sdk.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]sdk.Plugin, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.plugin
	}
	return out
}

// Names returns plugin names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.instance.Name()
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) snapshot() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*entry(nil), r.entries...)
}

// InitAll initializes every plugin that has not been initialized yet, in
// registration order. base is copied per plugin with Config set from
// configs and Logger scoped to the plugin. A failing plugin moves to the
// error state; the others still initialize and all failures are joined.
func (r *Registry) InitAll(base sdk.Context, configs map[string]json.RawMessage) error {
	logger := base.Logger
	if logger == nil {
		logger = r.logger
	}

	var errs []error
	for _, e := range r.snapshot() {
		if e.instance.State() != StateRegistered {
			continue
		}
		name := e.instance.Name()
		if err := e.instance.TransitionTo(StateInitializing); err != nil {
			errs = append(errs, err)
			continue
		}

		ctx := base
		ctx.Logger = logger.With("plugin", name)
		ctx.Config = emptyConfig
		if cfg, ok := configs[name]; ok && len(cfg) > 0 {
			ctx.Config = cfg
		}

		if err := initPlugin(e.plugin, ctx); err != nil {
			_ = e.instance.TransitionTo(StateError)
			r.logger.Error("plugin init failed", "plugin", name, "error", err)
			errs = append(errs, cwerr.Wrap(err, cwerr.CodePluginInitFailure, "initializing plugin", cwerr.FieldPlugin(name)))
			continue
		}
		_ = e.instance.TransitionTo(StateRunning)
		r.logger.Debug("plugin initialized", "plugin", name, "version", e.plugin.Version())
	}

	return cwerr.Join(errs...)
}

func initPlugin(p sdk.Plugin, ctx sdk.Context) (err error) {
	initializer, ok := p.(sdk.Initializer)
	if !ok {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = cwerr.Errorf(cwerr.CodePluginInitFailure, "plugin init panicked: %v", rec)
		}
	}()
	return initializer.Init(ctx)
}

// Broadcast delivers an event to every running plugin that handles events.
func (r *Registry) Broadcast(event, data string) {
	for _, e := range r.snapshot() {
		if e.instance.State() != StateRunning {
			continue
		}
		if h, ok := e.plugin.(sdk.EventHandler); ok {
			h.Event(event, data)
		}
	}
}

// CleanupAll runs Cleanup once for every plugin not yet stopped, in
// registration order.
func (r *Registry) CleanupAll() {
	for _, e := range r.snapshot() {
		state := e.instance.State()
		if state == StateStopped {
			continue
		}
		if c, ok := e.plugin.(sdk.Cleaner); ok && state != StateRegistered {
			c.Cleanup()
		}
		if err := e.instance.TransitionTo(StateStopped); err != nil {
			r.logger.Warn("plugin cleanup transition", "plugin", e.instance.Name(), "error", err)
		}
	}
}
