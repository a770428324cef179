// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/crossweb-dev/crossweb/internal/reload"
	"github.com/crossweb-dev/crossweb/pkg/module"
)

// exported mirrors what plugin.Lookup hands back for each symbol.
func exported() module.Symbols {
	return module.Symbols{
		module.SymbolSetHost:    SetHost,
		module.SymbolInit:       Init,
		module.SymbolInvoke:     Invoke,
		module.SymbolUpdate:     Update,
		module.SymbolCleanup:    Cleanup,
		module.SymbolPreReload:  PreReload,
		module.SymbolPostReload: PostReload,
		module.SymbolEmit:       Emit,
		module.SymbolNotify:     Notify,
	}
}

func TestExportsBind(t *testing.T) {
	keyring.MockInit()
	table, err := reload.Bind(exported())
	require.NoError(t, err)

	got := make(chan string, 1)
	table.SetHost(module.HostFuncs{RespondFunc: func(_, response string) { got <- response }})
	fsConfig, err := json.Marshal(map[string]string{"root": t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, table.Init(context.Background(), module.InitOptions{
		Platform: "test",
		Plugins:  map[string]json.RawMessage{"fs": fsConfig},
	}))
	t.Cleanup(func() { table.Cleanup(context.Background()) })

	table.Invoke(context.Background(), "r1", "app.ping", "")
	assert.Equal(t, `{"ok":true,"pong":null}`, <-got)
}
