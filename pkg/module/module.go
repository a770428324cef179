// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

// Package module defines the entry-point ABI between the host and a loadable
// module. A module exports one value per symbol in Required, each with the
// signature documented next to its name.
package module

import (
	"encoding/json"
	"sort"
	"time"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
)

// Well-known entry-point symbols.
const (
	SymbolSetHost    = "SetHost"    // func(Host)
	SymbolInit       = "Init"       // func(context.Context, InitOptions) error
	SymbolInvoke     = "Invoke"     // func(ctx context.Context, id, command, payload string)
	SymbolUpdate     = "Update"     // func(context.Context)
	SymbolCleanup    = "Cleanup"    // func(context.Context)
	SymbolPreReload  = "PreReload"  // func() ([]byte, error)
	SymbolPostReload = "PostReload" // func([]byte) error
	SymbolEmit       = "Emit"       // func(event, data string)
	SymbolNotify     = "Notify"     // func(event, data string)
)

// Required lists every symbol a module must export, in bind order.
var Required = []string{
	SymbolSetHost,
	SymbolInit,
	SymbolInvoke,
	SymbolUpdate,
	SymbolCleanup,
	SymbolPreReload,
	SymbolPostReload,
	SymbolEmit,
	SymbolNotify,
}

// Host is implemented by the runtime shell and handed to a module through
// SetHost before Init. Respond and Emit may be called from any goroutine.
type Host interface {
	Respond(id, response string)
	Emit(event, data string)
}

// HostFuncs adapts two functions to Host.
type HostFuncs struct {
	RespondFunc func(id, response string)
	EmitFunc    func(event, data string)
}

func (h HostFuncs) Respond(id, response string) {
	if h.RespondFunc != nil {
		h.RespondFunc(id, response)
	}
}

func (h HostFuncs) Emit(event, data string) {
	if h.EmitFunc != nil {
		h.EmitFunc(event, data)
	}
}

// InitOptions is passed to a module's Init. Plugins maps plugin names to
// their configuration blobs. Webview is only meaningful for in-process
// modules and is nil across a process boundary.
type InitOptions struct {
	Platform       string                     `json:"platform"`
	Plugins        map[string]json.RawMessage `json:"plugins,omitempty"`
	RequestTimeout time.Duration              `json:"request_timeout"`
	Webview        any                        `json:"-"`
}

// Module is a loaded artifact from which entry points are resolved.
type Module interface {
	Lookup(name string) (any, error)
	Close() error
}

// Symbols is an in-memory Module backed by a map.
type Symbols map[string]any

func (s Symbols) Lookup(name string) (any, error) {
	v, ok := s[name]
	if !ok || v == nil {
		return nil, cwerr.New(cwerr.CodeReloadSymbolNotFound, "symbol not found", cwerr.FieldSymbol(name))
	}
	return v, nil
}

func (s Symbols) Close() error { return nil }

// Names returns the exported symbol names in sorted order.
func (s Symbols) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
