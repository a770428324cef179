// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package plugin

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	sdk "github.com/crossweb-dev/crossweb/pkg/plugin"
)

// Replies produced by the dispatcher itself.
const (
	ReplyInvalidCommand = `{"error":"invalid command format"}`
	ReplyUnknownPlugin  = `{"error":"unknown plugin"}`
	ReplyUnavailable    = `{"ok":false,"error":"plugin unavailable"}`
	ReplyUnsupported    = `{"ok":false,"error":"unsupported command"}`
)

// SplitCommand splits "<plugin>.<subcommand>" at the first '.'. It fails
// when there is no '.' or the plugin part is empty.
func SplitCommand(command string) (name, subcommand string, ok bool) {
	name, subcommand, ok = strings.Cut(command, ".")
	if !ok || name == "" {
		return "", "", false
	}
	return name, subcommand, true
}

// Dispatcher routes commands to plugins in a Registry.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatchLogger sets the dispatcher logger.
func WithDispatchLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{registry: registry, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch routes command to its plugin. Exactly one reply reaches respond
// unless the plugin accepts the request and never answers. The returned
// error describes a failed dispatch; the caller does not need to reply.
func (d *Dispatcher) Dispatch(ctx context.Context, id, command string, payload []byte, respond sdk.Responder) error {
	once := Once(id, respond, d.logger)
	start := time.Now()

	name, sub, ok := SplitCommand(command)
	if !ok {
		once.Respond(ReplyInvalidCommand)
		RecordDispatch(labelUnrouted, StatusInvalidCommand, time.Since(start))
		return cwerr.New(cwerr.CodeDispatchCommandInvalid, "invalid command format",
			cwerr.FieldCommand(command), cwerr.FieldRequestID(id))
	}

	p, ok := d.registry.Lookup(name)
	if !ok {
		once.Respond(ReplyUnknownPlugin)
		RecordDispatch(labelUnrouted, StatusUnknownPlugin, time.Since(start))
		return cwerr.New(cwerr.CodeDispatchPluginNotFound, "unknown plugin",
			cwerr.FieldPlugin(name), cwerr.FieldCommand(command), cwerr.FieldRequestID(id))
	}

	if state, _ := d.registry.State(name); state != StateRunning {
		once.Respond(ReplyUnavailable)
		RecordDispatch(name, StatusUnavailable, time.Since(start))
		return cwerr.New(cwerr.CodeDispatchUnavailable, "plugin unavailable",
			cwerr.FieldPlugin(name), cwerr.Field("state", state.String()), cwerr.FieldRequestID(id))
	}

	invoker, ok := p.(sdk.Invoker)
	if !ok {
		once.Respond(ReplyUnsupported)
		RecordDispatch(name, StatusUnsupported, time.Since(start))
		return cwerr.New(cwerr.CodeDispatchUnsupported, "plugin has no invoke capability",
			cwerr.FieldPlugin(name), cwerr.FieldRequestID(id))
	}

	err := invoke(ctx, invoker, sub, payload, once.Func())
	if err == nil {
		RecordDispatch(name, StatusSuccess, time.Since(start))
		return nil
	}
	RecordDispatch(name, StatusError, time.Since(start))

	if !once.Responded() {
		if errors.Is(err, sdk.ErrUnsupported) {
			once.Respond(ReplyUnsupported)
		} else {
			sdk.Fail(once.Func(), err.Error())
		}
	}
	d.logger.WarnContext(ctx, "plugin invoke failed",
		"plugin", name,
		"subcommand", sub,
		"request_id", id,
		"error", err,
	)
	if errors.Is(err, sdk.ErrUnsupported) {
		return cwerr.Wrap(err, cwerr.CodeDispatchUnsupported, "unsupported command",
			cwerr.FieldPlugin(name), cwerr.FieldCommand(command), cwerr.FieldRequestID(id))
	}
	return cwerr.Wrap(err, cwerr.CodePluginInvokeFailure, "plugin invoke failed",
		cwerr.FieldPlugin(name), cwerr.FieldCommand(command), cwerr.FieldRequestID(id))
}

func invoke(ctx context.Context, inv sdk.Invoker, sub string, payload []byte, respond sdk.Responder) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = cwerr.Errorf(cwerr.CodePluginInvokeFailure, "plugin panicked: %v", rec)
		}
	}()
	return inv.Invoke(ctx, sub, payload, respond)
}
