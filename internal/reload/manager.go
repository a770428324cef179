// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

// Package reload loads the runtime module, binds its entry points and swaps
// in rebuilt modules while the host keeps running.
package reload

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"github.com/crossweb-dev/crossweb/pkg/health"
	"github.com/crossweb-dev/crossweb/pkg/module"
)

// ChangeDetector reports source changes; *Watcher implements it.
type ChangeDetector interface {
	Changed() bool
}

// Options configures a Manager.
type Options struct {
	Loader   Loader
	Artifact string
	// Builder runs before a reload that follows a detected change. Nil
	// means the artifact is produced elsewhere.
	Builder Builder
	// Watcher drives CheckForChange. Nil disables change detection.
	Watcher ChangeDetector
	Host    module.Host
	Init    module.InitOptions
	Logger  *slog.Logger
}

// Manager owns the entry-point table. Writers are serialized by a mutex;
// readers load the table through an atomic pointer and never observe a
// partially bound module.
type Manager struct {
	loader   Loader
	artifact string
	builder  Builder
	watcher  ChangeDetector
	host     module.Host
	init     module.InitOptions
	logger   *slog.Logger

	mu         sync.Mutex
	table      atomic.Pointer[EntryPoints]
	state      stateMachine
	generation atomic.Uint64
	rebuild    atomic.Bool
	health     *health.Tracker
}

func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		loader:   opts.Loader,
		artifact: opts.Artifact,
		builder:  opts.Builder,
		watcher:  opts.Watcher,
		host:     opts.Host,
		init:     opts.Init,
		logger:   logger.With("component", "reload"),
		health:   health.NewTracker(),
	}
}

// Table returns the bound entry points, or nil before Load.
func (m *Manager) Table() *EntryPoints { return m.table.Load() }

func (m *Manager) State() State { return m.state.get() }

// Generation counts successful binds, starting at 1 for the initial load.
func (m *Manager) Generation() uint64 { return m.generation.Load() }

// LastError returns the error of the most recent failed load or reload,
// cleared by the next success.
func (m *Manager) LastError() error { return m.health.LastError() }

// Health reports load and reload outcomes over the manager's lifetime.
func (m *Manager) Health() health.Metrics { return m.health.Metrics() }

func (m *Manager) setErr(err error) {
	if err == nil {
		m.health.RecordSuccess()
		return
	}
	m.health.RecordFailure(err)
}

// Load binds the initial module and initializes it.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.state.transition(StateLoading); err != nil {
		return err
	}

	table, _, err := m.open(ctx)
	if err == nil {
		table.SetHost(m.host)
		if initErr := table.Init(ctx, m.init); initErr != nil {
			m.closeModule(table)
			err = cwerr.Wrap(initErr, cwerr.CodeReloadInitFailure, "initializing module")
		}
	}
	if err != nil {
		m.setErr(err)
		_ = m.state.transition(StateUnloaded)
		return err
	}

	m.bind(table)
	_ = m.state.transition(StateBound)
	m.setErr(nil)
	m.logger.Info("module loaded", "artifact", m.artifact, "generation", table.generation)
	return nil
}

// CheckForChange polls the watcher and, on a change, marks the next
// Reload as needing a rebuild.
func (m *Manager) CheckForChange() bool {
	if m.watcher == nil || !m.watcher.Changed() {
		return false
	}
	m.rebuild.Store(true)
	m.logger.Debug("source change detected")
	return true
}

// RequestRebuild makes the next Reload run the builder.
func (m *Manager) RequestRebuild() { m.rebuild.Store(true) }

// Reload rebuilds if requested, loads a candidate module and swaps it in.
// On any failure the previous table stays bound untouched and false is
// returned; the error is available from LastError.
func (m *Manager) Reload(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.table.Load()
	if old == nil {
		m.setErr(cwerr.New(cwerr.CodeReloadNotBound, "no module bound"))
		return false
	}
	if err := m.state.transition(StateReloading); err != nil {
		m.setErr(err)
		return false
	}
	start := time.Now()

	if m.rebuild.Swap(false) && m.builder != nil {
		m.logger.Info("rebuilding module")
		if err := m.builder.Build(ctx); err != nil {
			return m.fail(ResultBuildFailed, err)
		}
	}

	cand, result, err := m.open(ctx)
	if err != nil {
		return m.fail(result, err)
	}

	state, err := old.PreReload()
	if err != nil {
		m.closeModule(cand)
		return m.fail(ResultStateFailed, cwerr.Wrap(err, cwerr.CodeReloadStateInvalid, "capturing reload state"))
	}

	cand.SetHost(m.host)
	if err := cand.Init(ctx, m.init); err != nil {
		if perr := old.PostReload(state); perr != nil {
			m.logger.Warn("restoring state after failed init", "error", perr)
		}
		m.closeModule(cand)
		return m.fail(ResultInitFailed, cwerr.Wrap(err, cwerr.CodeReloadInitFailure, "initializing candidate module"))
	}

	m.bind(cand)

	if err := cand.PostReload(state); err != nil {
		m.logger.Warn("new module rejected reload state", "error", err)
	}
	old.Cleanup(ctx)
	m.closeModule(old)

	_ = m.state.transition(StateBound)
	m.setErr(nil)
	Attempts.WithLabelValues(ResultSwapped).Inc()
	m.logger.Info("module reloaded",
		"generation", cand.generation,
		"state_bytes", len(state),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return true
}

// Close cleans the bound module up and releases it.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	table := m.table.Swap(nil)
	if table == nil {
		return nil
	}
	table.Cleanup(ctx)
	err := table.module.Close()
	_ = m.state.transition(StateUnloaded)
	BoundGeneration.Set(0)
	return err
}

// open loads the artifact and binds it, closing the module again when
// binding fails. The returned result labels the failing step.
func (m *Manager) open(ctx context.Context) (*EntryPoints, string, error) {
	if m.loader == nil {
		return nil, ResultLoadFailed, cwerr.New(cwerr.CodeReloadLoadFailure, "no loader configured")
	}
	mod, err := m.loader.Load(ctx, m.artifact)
	if err != nil {
		if cwerr.CodeOf(err) == "" {
			err = cwerr.Wrap(err, cwerr.CodeReloadLoadFailure, "loading module", cwerr.FieldPath(m.artifact))
		}
		return nil, ResultLoadFailed, err
	}

	table, err := Bind(mod)
	if err != nil {
		if cerr := mod.Close(); cerr != nil {
			m.logger.Warn("closing rejected module", "error", cerr)
		}
		return nil, ResultBindFailed, err
	}
	return table, "", nil
}

func (m *Manager) bind(table *EntryPoints) {
	table.generation = m.generation.Add(1)
	m.table.Store(table)
	BoundGeneration.Set(float64(table.generation))
}

func (m *Manager) closeModule(table *EntryPoints) {
	if err := table.module.Close(); err != nil {
		m.logger.Warn("closing module", "error", err)
	}
}

func (m *Manager) fail(result string, err error) bool {
	m.setErr(err)
	Attempts.WithLabelValues(result).Inc()
	_ = m.state.transition(StateFailed)
	m.logger.Warn("reload failed, keeping current module", "result", result, "error", err)
	return false
}
