// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

// Package plugins lists the built-in plugin set.
package plugins

import (
	"github.com/crossweb-dev/crossweb/internal/plugins/fs"
	"github.com/crossweb-dev/crossweb/internal/plugins/keystore"
	sdk "github.com/crossweb-dev/crossweb/pkg/plugin"
)

// Builtin describes one bundled plugin.
type Builtin struct {
	Name        string
	Description string
	Factory     sdk.Factory
}

// Builtins returns the bundled plugins in registration order. The app
// plugin is registered by the runtime itself and is not listed here.
func Builtins() []Builtin {
	return []Builtin{
		{Name: fs.Name, Description: "sandboxed file read/write/stat/list", Factory: fs.New},
		{Name: keystore.Name, Description: "OS keyring storage with encrypt/decrypt", Factory: keystore.New},
	}
}

// Factories returns the factories of the enabled built-ins. A nil enabled
// map enables all of them.
func Factories(enabled map[string]bool) []sdk.Factory {
	var out []sdk.Factory
	for _, b := range Builtins() {
		if enabled != nil && !enabled[b.Name] {
			continue
		}
		out = append(out, b.Factory)
	}
	return out
}
