// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

// Package runtime is the reloadable half of crossweb: it owns the plugin
// registry, the dispatcher and the pending request table, and exposes them
// through the module entry points.
package runtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crossweb-dev/crossweb/internal/plugin"
	"github.com/crossweb-dev/crossweb/internal/plugins/app"
	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"github.com/crossweb-dev/crossweb/pkg/module"
	sdk "github.com/crossweb-dev/crossweb/pkg/plugin"
)

// EventReloaded is notified to plugins and emitted to the page after a
// successful PostReload.
const EventReloaded = "runtime.reloaded"

// Options configures a Runtime.
type Options struct {
	Name      string
	Version   string
	Factories []sdk.Factory
	Logger    *slog.Logger
	Clock     func() time.Time
}

// Runtime implements the module entry points.
type Runtime struct {
	instance  string
	name      string
	version   string
	factories []sdk.Factory
	logger    *slog.Logger
	clock     func() time.Time

	hostMu sync.RWMutex
	host   module.Host

	registry   *plugin.Registry
	dispatcher *plugin.Dispatcher

	mu         sync.Mutex
	pending    *plugin.Pending
	platform   string
	generation uint64
	started    time.Time
	values     map[string][]byte
}

var _ app.Inspector = (*Runtime)(nil)

// New creates a runtime. Plugins are instantiated from the factories when
// Init runs; the app plugin is always registered first.
func New(opts Options) *Runtime {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	name := opts.Name
	if name == "" {
		name = "crossweb"
	}

	reg := plugin.NewRegistry(logger)
	r := &Runtime{
		instance:   uuid.NewString(),
		name:       name,
		version:    opts.Version,
		factories:  opts.Factories,
		logger:     logger,
		clock:      clock,
		registry:   reg,
		dispatcher: plugin.NewDispatcher(reg, plugin.WithDispatchLogger(logger)),
		pending:    plugin.NewPending(plugin.DefaultRequestTimeout, plugin.WithClock(clock), plugin.WithPendingLogger(logger)),
		values:     make(map[string][]byte),
	}
	return r
}

// Module returns the entry-point table for this runtime.
func (r *Runtime) Module() module.Symbols {
	return module.Symbols{
		module.SymbolSetHost:    r.SetHost,
		module.SymbolInit:       r.Init,
		module.SymbolInvoke:     r.Invoke,
		module.SymbolUpdate:     r.Update,
		module.SymbolCleanup:    r.Cleanup,
		module.SymbolPreReload:  r.PreReload,
		module.SymbolPostReload: r.PostReload,
		module.SymbolEmit:       r.Emit,
		module.SymbolNotify:     r.Notify,
	}
}

func (r *Runtime) Registry() *plugin.Registry { return r.registry }

func (r *Runtime) tracker() *plugin.Pending {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

// SetHost installs the host callbacks.
func (r *Runtime) SetHost(h module.Host) {
	r.hostMu.Lock()
	r.host = h
	r.hostMu.Unlock()
}

func (r *Runtime) currentHost() module.Host {
	r.hostMu.RLock()
	defer r.hostMu.RUnlock()
	return r.host
}

// Init registers the plugin set and initializes it. A plugin that fails to
// initialize is logged and left answering "plugin unavailable"; Init itself
// only fails on malformed options, which aborts a reload.
func (r *Runtime) Init(_ context.Context, opts module.InitOptions) error {
	for name, raw := range opts.Plugins {
		if len(raw) > 0 && !json.Valid(raw) {
			return cwerr.New(cwerr.CodeReloadInitFailure, "plugin config is not valid JSON", cwerr.FieldPlugin(name))
		}
	}

	timeout := opts.RequestTimeout
	if timeout < 0 {
		timeout = 0
	}

	r.mu.Lock()
	r.pending = plugin.NewPending(timeout, plugin.WithClock(r.clock), plugin.WithPendingLogger(r.logger))
	r.platform = opts.Platform
	r.started = r.clock()
	if r.generation == 0 {
		r.generation = 1
	}
	r.mu.Unlock()

	r.registry.Register(app.New(r))
	for _, factory := range r.factories {
		if factory == nil {
			continue
		}
		r.registry.Register(factory())
	}

	err := r.registry.InitAll(sdk.Context{
		Webview:  opts.Webview,
		Platform: opts.Platform,
		Emit:     r.Emit,
		Logger:   r.logger,
	}, opts.Plugins)

	r.logger.Info("runtime initialized",
		"plugins", r.registry.Names(),
		"platform", opts.Platform,
		"request_timeout", timeout,
	)
	if err != nil {
		r.logger.Warn("some plugins failed to initialize", "error", err)
	}
	return nil
}

// Invoke dispatches one request; the reply reaches Host.Respond.
func (r *Runtime) Invoke(ctx context.Context, id, command, payload string) {
	pctx, respond := r.tracker().Track(ctx, id, command, func(response string) {
		r.respond(id, response)
	})
	if err := r.dispatcher.Dispatch(pctx, id, command, []byte(payload), respond); err != nil {
		r.logger.Debug("dispatch failed", "request_id", id, "command", command, "error", err)
	}
}

func (r *Runtime) respond(id, response string) {
	h := r.currentHost()
	if h == nil {
		r.logger.Debug("no host bound, dropping response", "request_id", id)
		return
	}
	h.Respond(id, response)
}

// Update runs once per host tick and expires overdue requests.
func (r *Runtime) Update(_ context.Context) {
	r.tracker().Expire(r.clock())
}

// Cleanup abandons pending requests and cleans plugins up.
func (r *Runtime) Cleanup(_ context.Context) {
	if n := r.tracker().Abandon(); n > 0 {
		r.logger.Debug("abandoned pending requests", "count", n)
	}
	r.registry.CleanupAll()
}

// Emit forwards an event to the page.
func (r *Runtime) Emit(event, data string) {
	if h := r.currentHost(); h != nil {
		h.Emit(event, data)
	}
}

// Notify delivers a host event to every running plugin.
func (r *Runtime) Notify(event, data string) {
	r.registry.Broadcast(event, data)
}

// Carry stores a value that survives the next reload.
func (r *Runtime) Carry(key string, value []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if value == nil {
		delete(r.values, key)
		return
	}
	r.values[key] = append([]byte(nil), value...)
}

// Carried returns a value stored with Carry, possibly by a previous
// generation.
func (r *Runtime) Carried(key string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[key]
	return v, ok
}

// Info implements app.Inspector.
func (r *Runtime) Info() app.Info {
	r.mu.Lock()
	info := app.Info{
		Instance:   r.instance,
		Name:       r.name,
		Version:    r.version,
		Platform:   r.platform,
		Generation: r.generation,
		Pending:    r.pending.Len(),
	}
	if !r.started.IsZero() {
		info.Uptime = r.clock().Sub(r.started).Round(time.Millisecond).String()
	}
	r.mu.Unlock()

	info.Plugins = r.registry.Names()
	return info
}

func (r *Runtime) reloadedPayload() string {
	r.mu.Lock()
	gen := r.generation
	r.mu.Unlock()
	data, _ := json.Marshal(map[string]uint64{"generation": gen})
	return string(data)
}
