// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

// Package plugin provides public types for plugin authors.
//
// A plugin is identified by Name and optionally implements Initializer,
// Invoker, EventHandler and Cleaner. Commands reach a plugin as
// "<name>.<subcommand>"; the subcommand and the raw payload are forwarded
// to Invoke together with a Responder that delivers exactly one reply.
package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
)

// ErrUnsupported is returned by Invoke when the plugin does not handle the
// subcommand or has no invoke capability at all.
var ErrUnsupported = errors.New("unsupported command")

// Responder delivers the single reply for a request. Calls after the first
// are dropped by the runtime.
type Responder func(response string)

// EmitFunc sends a fire-and-forget event to the web content.
type EmitFunc func(event, data string)

// Context is handed to Init. Config holds the plugin's own configuration
// blob and is "{}" when none was supplied.
type Context struct {
	Webview  any
	Platform string
	Config   json.RawMessage
	Emit     EmitFunc
	Logger   *slog.Logger
}

// Plugin is the minimum contract.
type Plugin interface {
	Name() string
	Version() int
}

type Initializer interface {
	Init(ctx Context) error
}

type Invoker interface {
	Invoke(ctx context.Context, subcommand string, payload []byte, respond Responder) error
}

type EventHandler interface {
	Event(name, data string)
}

type Cleaner interface {
	Cleanup()
}

// Factory builds a fresh plugin instance. Modules construct their plugin
// set from factories on every load.
type Factory func() Plugin

// Funcs adapts plain functions to the plugin interfaces. Nil functions are
// no-ops; a nil InvokeFunc makes every command unsupported.
type Funcs struct {
	PluginName    string
	PluginVersion int
	InitFunc      func(ctx Context) error
	InvokeFunc    func(ctx context.Context, subcommand string, payload []byte, respond Responder) error
	EventFunc     func(name, data string)
	CleanupFunc   func()
}

var (
	_ Initializer  = (*Funcs)(nil)
	_ Invoker      = (*Funcs)(nil)
	_ EventHandler = (*Funcs)(nil)
	_ Cleaner      = (*Funcs)(nil)
)

func (f *Funcs) Name() string { return f.PluginName }
func (f *Funcs) Version() int { return f.PluginVersion }

func (f *Funcs) Init(ctx Context) error {
	if f.InitFunc == nil {
		return nil
	}
	return f.InitFunc(ctx)
}

func (f *Funcs) Invoke(ctx context.Context, subcommand string, payload []byte, respond Responder) error {
	if f.InvokeFunc == nil {
		return ErrUnsupported
	}
	return f.InvokeFunc(ctx, subcommand, payload, respond)
}

func (f *Funcs) Event(name, data string) {
	if f.EventFunc != nil {
		f.EventFunc(name, data)
	}
}

func (f *Funcs) Cleanup() {
	if f.CleanupFunc != nil {
		f.CleanupFunc()
	}
}

// Reply marshals v as JSON and sends it through respond. A value that
// cannot be marshalled produces an error reply instead.
func Reply(respond Responder, v any) {
	if respond == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		Fail(respond, err.Error())
		return
	}
	respond(string(data))
}

// Fail sends {"ok":false,"error":msg}.
func Fail(respond Responder, msg string) {
	if respond == nil {
		return
	}
	data, _ := json.Marshal(struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}{Error: msg})
	respond(string(data))
}
