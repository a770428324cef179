// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/crossweb-dev/crossweb/internal/config"
	"github.com/crossweb-dev/crossweb/internal/ipc"
	"github.com/crossweb-dev/crossweb/internal/reload"
	"github.com/crossweb-dev/crossweb/internal/reload/goplugin"
	"github.com/crossweb-dev/crossweb/internal/webview"
	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
)

func shellConfig(t *testing.T) *config.Config {
	t.Helper()
	keyring.MockInit()

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.App.WebDir = t.TempDir()
	cfg.DevServer.Listen = "127.0.0.1:0"
	cfg.Loop.Interval = 5 * time.Millisecond
	cfg.Plugins = map[string]map[string]any{
		"fs": {"root": t.TempDir()},
	}
	return cfg
}

type runningShell struct {
	shell *Shell
	addr  string
	done  chan error
}

func startShell(t *testing.T, cfg *config.Config) *runningShell {
	t.Helper()
	shell, err := WireShell(cfg, nil)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	rs := &runningShell{shell: shell, addr: ln.Addr().String(), done: make(chan error, 1)}
	go func() { rs.done <- shell.Run(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-rs.done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("shell did not stop")
		}
	})

	require.Eventually(t, func() bool {
		return shell.Manager.Generation() == 1
	}, 2*time.Second, 5*time.Millisecond)
	return rs
}

func TestWireShellRelaysFrames(t *testing.T) {
	rs := startShell(t, shellConfig(t))

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+rs.addr+webview.PathSocket, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, first, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, ipc.BridgeScript(), string(first))

	sep := string(ipc.Separator)
	frame := "r1" + sep + "app.ping" + sep + base64.StdEncoding.EncodeToString([]byte(`"hi"`))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))

	want := ipc.ResponseScript("r1", []byte(`{"ok":true,"pong":"hi"}`))
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		if string(msg) == want {
			break
		}
	}
}

func TestWireShellStatusReportsGeneration(t *testing.T) {
	rs := startShell(t, shellConfig(t))

	resp, err := http.Get("http://" + rs.addr + webview.PathStatus)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st webview.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, "crossweb", st.Name)
	assert.Equal(t, uint64(1), st.Generation)
	assert.Equal(t, "bound", st.ReloadState)
	require.NotNil(t, st.Reload)
	assert.True(t, st.Reload.Available)
	assert.Equal(t, 64, st.QueueCap)
}

func TestWireShellMetricsEndpoint(t *testing.T) {
	rs := startShell(t, shellConfig(t))

	resp, err := http.Get("http://" + rs.addr + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "crossweb_reload_generation 1")
}

func TestWireShellRejectsBadWatchPattern(t *testing.T) {
	cfg := shellConfig(t)
	cfg.Reload.Enabled = true
	cfg.Reload.Ignore = []string{"[unclosed"}

	_, err := WireShell(cfg, nil)
	require.Error(t, err)
	assert.True(t, cwerr.HasCode(err, cwerr.CodeReloadWatchFailure))
	assert.True(t, cwerr.IsReload(err))
	assert.Contains(t, err.Error(), "creating source watcher")
}

func TestNewLoader(t *testing.T) {
	cfg := shellConfig(t)

	cfg.Reload.Loader = config.LoaderStatic
	l, err := newLoader(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, reload.StaticLoader(nil), l)

	cfg.Reload.Loader = config.LoaderProcess
	l, err = newLoader(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &goplugin.Loader{}, l)

	cfg.Reload.Loader = config.LoaderNative
	l, err = newLoader(cfg, nil)
	if reload.NativeSupported {
		require.NoError(t, err)
		assert.IsType(t, &reload.NativeLoader{}, l)
	} else {
		assert.True(t, cwerr.HasCode(err, cwerr.CodeReloadLoadUnsupported))
	}

	cfg.Reload.Loader = "dlopen"
	_, err = newLoader(cfg, nil)
	assert.True(t, cwerr.IsInvalidInput(err))
}

func TestBuiltinNames(t *testing.T) {
	assert.Equal(t, []string{"app", "fs", "keystore"}, builtinNames())
}
