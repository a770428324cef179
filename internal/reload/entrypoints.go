// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package reload

import (
	"context"
	"fmt"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"github.com/crossweb-dev/crossweb/pkg/module"
)

// EntryPoints is the bound entry-point table of one loaded module.
type EntryPoints struct {
	SetHost    func(module.Host)
	Init       func(context.Context, module.InitOptions) error
	Invoke     func(ctx context.Context, id, command, payload string)
	Update     func(context.Context)
	Cleanup    func(context.Context)
	PreReload  func() ([]byte, error)
	PostReload func([]byte) error
	Emit       func(event, data string)
	Notify     func(event, data string)

	module     module.Module
	generation uint64
}

// Module returns the module the table was bound from.
func (e *EntryPoints) Module() module.Module { return e.module }

// Generation returns the manager generation that bound this table.
func (e *EntryPoints) Generation() uint64 { return e.generation }

// Bind resolves every required symbol of m. A module missing any symbol,
// or exporting one with the wrong signature, is rejected as a whole.
func Bind(m module.Module) (*EntryPoints, error) {
	e := &EntryPoints{module: m}

	var err error
	if e.SetHost, err = Lookup[func(module.Host)](m, module.SymbolSetHost); err != nil {
		return nil, err
	}
	if e.Init, err = Lookup[func(context.Context, module.InitOptions) error](m, module.SymbolInit); err != nil {
		return nil, err
	}
	if e.Invoke, err = Lookup[func(context.Context, string, string, string)](m, module.SymbolInvoke); err != nil {
		return nil, err
	}
	if e.Update, err = Lookup[func(context.Context)](m, module.SymbolUpdate); err != nil {
		return nil, err
	}
	if e.Cleanup, err = Lookup[func(context.Context)](m, module.SymbolCleanup); err != nil {
		return nil, err
	}
	if e.PreReload, err = Lookup[func() ([]byte, error)](m, module.SymbolPreReload); err != nil {
		return nil, err
	}
	if e.PostReload, err = Lookup[func([]byte) error](m, module.SymbolPostReload); err != nil {
		return nil, err
	}
	if e.Emit, err = Lookup[func(string, string)](m, module.SymbolEmit); err != nil {
		return nil, err
	}
	if e.Notify, err = Lookup[func(string, string)](m, module.SymbolNotify); err != nil {
		return nil, err
	}
	return e, nil
}

// Lookup resolves one symbol as F. The stdlib plugin package hands back
// exported functions as plain func values and exported variables as
// pointers, so a pointer to F is accepted too.
func Lookup[F any](m module.Module, name string) (F, error) {
	var zero F
	sym, err := m.Lookup(name)
	if err != nil {
		if cwerr.CodeOf(err) == "" {
			err = cwerr.Wrap(err, cwerr.CodeReloadSymbolNotFound, "symbol not found", cwerr.FieldSymbol(name))
		}
		return zero, err
	}

	switch fn := sym.(type) {
	case F:
		return fn, nil
	case *F:
		if fn != nil {
			return *fn, nil
		}
	}
	return zero, cwerr.New(cwerr.CodeReloadSymbolInvalid, "symbol has unexpected type",
		cwerr.FieldSymbol(name), cwerr.Field("type", fmt.Sprintf("%T", sym)))
}
