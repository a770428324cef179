// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

//go:build !((linux || darwin || freebsd) && cgo)

package reload

import (
	"context"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"github.com/crossweb-dev/crossweb/pkg/module"
)

// NativeSupported reports whether NativeLoader works on this build.
const NativeSupported = false

// NativeLoader is unavailable on this platform; use the process loader.
type NativeLoader struct {
	ScratchDir string
}

func (l *NativeLoader) Load(_ context.Context, path string) (module.Module, error) {
	return nil, cwerr.New(cwerr.CodeReloadLoadUnsupported,
		"native modules need cgo on linux, darwin or freebsd", cwerr.FieldPath(path))
}
