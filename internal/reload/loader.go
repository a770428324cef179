// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package reload

import (
	"context"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"github.com/crossweb-dev/crossweb/pkg/module"
)

// Loader opens a module artifact.
type Loader interface {
	Load(ctx context.Context, path string) (module.Module, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, path string) (module.Module, error)

func (f LoaderFunc) Load(ctx context.Context, path string) (module.Module, error) {
	return f(ctx, path)
}

// StaticLoader builds a module in process on every load. It is used when
// hot reload is off and by tests; the path is ignored.
type StaticLoader func() module.Module

func (f StaticLoader) Load(_ context.Context, _ string) (module.Module, error) {
	if f == nil {
		return nil, cwerr.New(cwerr.CodeReloadLoadFailure, "no module constructor")
	}
	m := f()
	if m == nil {
		return nil, cwerr.New(cwerr.CodeReloadLoadFailure, "module constructor returned nil")
	}
	return m, nil
}
