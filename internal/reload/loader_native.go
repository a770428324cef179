// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

//go:build (linux || darwin || freebsd) && cgo

package reload

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"plugin"

	"github.com/google/uuid"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"github.com/crossweb-dev/crossweb/pkg/module"
)

// NativeSupported reports whether NativeLoader works on this build.
const NativeSupported = true

// NativeLoader opens Go plugins built with -buildmode=plugin. A shared
// object cannot be unloaded or opened twice from the same path, so each
// load copies the artifact to a fresh file under ScratchDir first.
type NativeLoader struct {
	ScratchDir string
}

type nativeModule struct {
	p    *plugin.Plugin
	path string
}

func (l *NativeLoader) Load(ctx context.Context, path string) (module.Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, cwerr.Wrap(err, cwerr.CodeReloadLoadFailure, "loading module", cwerr.FieldPath(path))
	}

	dir := l.ScratchDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "crossweb-modules")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, cwerr.Wrap(err, cwerr.CodeReloadLoadFailure, "creating scratch dir", cwerr.FieldPath(dir))
	}

	dst := filepath.Join(dir, uuid.NewString()+filepath.Ext(path))
	if err := copyFile(path, dst); err != nil {
		return nil, cwerr.Wrap(err, cwerr.CodeReloadLoadFailure, "copying module", cwerr.FieldPath(path))
	}

	p, err := plugin.Open(dst)
	if err != nil {
		_ = os.Remove(dst)
		return nil, cwerr.Wrap(err, cwerr.CodeReloadLoadFailure, "opening module", cwerr.FieldPath(path))
	}
	return &nativeModule{p: p, path: dst}, nil
}

func (m *nativeModule) Lookup(name string) (any, error) {
	sym, err := m.p.Lookup(name)
	if err != nil {
		return nil, cwerr.Wrap(err, cwerr.CodeReloadSymbolNotFound, "symbol not found", cwerr.FieldSymbol(name))
	}
	return sym, nil
}

// Close removes the scratch copy. The code stays mapped for the life of
// the process.
func (m *nativeModule) Close() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return cwerr.Wrap(err, cwerr.CodeReloadLoadFailure, "removing module copy", cwerr.FieldPath(m.path))
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o700)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
