// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

// Package host drives the bound module: a cooperative loop for desktop
// shells and a goroutine-per-request worker for mobile embedders.
package host

import (
	"context"
	"log/slog"
	"time"

	"github.com/crossweb-dev/crossweb/internal/ipc"
	"github.com/crossweb-dev/crossweb/internal/reload"
	"github.com/crossweb-dev/crossweb/pkg/module"
)

// DefaultInterval is roughly one frame at 60Hz.
const DefaultInterval = 16 * time.Millisecond

// shutdownTimeout bounds module cleanup after the loop stops.
const shutdownTimeout = 5 * time.Second

// Reloader is the part of *reload.Manager the loop drives.
type Reloader interface {
	Table() *reload.EntryPoints
	CheckForChange() bool
	Reload(ctx context.Context) bool
	Close(ctx context.Context) error
}

// Loop pumps bridge messages into the bound module. Everything except
// Respond and Emit runs on the goroutine calling Tick or Run.
type Loop struct {
	bridge   *ipc.Bridge
	reloader Reloader
	hot      bool
	interval time.Duration
	logger   *slog.Logger
}

var _ module.Host = (*Loop)(nil)

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithHotReload makes each tick poll for source changes.
func WithHotReload(enabled bool) LoopOption {
	return func(l *Loop) { l.hot = enabled }
}

// WithInterval sets the tick interval used by Run.
func WithInterval(d time.Duration) LoopOption {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

func WithLoopLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewLoop(bridge *ipc.Bridge, reloader Reloader, opts ...LoopOption) *Loop {
	l := &Loop{
		bridge:   bridge,
		reloader: reloader,
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) Respond(id, response string) { l.bridge.Respond(id, response) }
func (l *Loop) Emit(event, data string)     { l.bridge.Emit(event, data) }

// Tick reloads when a change is pending, drains the queue into the module
// and lets it run its update hook. It returns how many messages were
// dispatched. At most one queue's worth is drained per tick so a chatty
// page cannot starve the update hook.
func (l *Loop) Tick(ctx context.Context) int {
	if l.hot && l.reloader.CheckForChange() {
		l.reloader.Reload(ctx)
	}

	table := l.reloader.Table()
	if table == nil {
		return 0
	}

	n := 0
	for limit := l.bridge.Queue().Cap(); n < limit; n++ {
		msg, ok := l.bridge.Receive()
		if !ok {
			break
		}
		table.Invoke(ctx, msg.ID, msg.Command, string(msg.Payload))
	}
	table.Update(ctx)
	return n
}

// Run ticks until ctx ends, then cleans the module up and detaches the
// bridge.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("host loop started", "interval", l.interval, "hot_reload", l.hot)
	for {
		l.Tick(ctx)
		select {
		case <-ctx.Done():
			return l.shutdown(ctx)
		case <-ticker.C:
		}
	}
}

func (l *Loop) shutdown(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err := l.reloader.Close(cctx)
	l.bridge.Detach()
	l.logger.Info("host loop stopped")
	return err
}
