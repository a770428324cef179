// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package ipc_test

import (
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/crossweb-dev/crossweb/internal/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWebview struct {
	mu      sync.Mutex
	scripts []string
	fail    bool
}

func (w *recordingWebview) Eval(script string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errors.New("webview gone")
	}
	w.scripts = append(w.scripts, script)
	return nil
}

func (w *recordingWebview) Scripts() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.scripts...)
}

func newBridge(t *testing.T, capacity int) (*ipc.Bridge, *recordingWebview) {
	t.Helper()
	b := ipc.NewBridge(ipc.NewCodec(ipc.Limits{}), ipc.NewQueue(capacity))
	wv := &recordingWebview{}
	require.NoError(t, b.Attach(wv))
	return b, wv
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestAttachInstallsBridgeAndClearsQueue(t *testing.T) {
	b := ipc.NewBridge(ipc.NewCodec(ipc.Limits{}), ipc.NewQueue(4))
	require.True(t, b.Queue().Push(ipc.Message{ID: "stale", Command: "a.b"}))

	wv := &recordingWebview{}
	require.NoError(t, b.Attach(wv))

	assert.Equal(t, 0, b.Queue().Len())
	require.Len(t, wv.Scripts(), 1)
	assert.Equal(t, ipc.BridgeScript(), wv.Scripts()[0])
	assert.Same(t, wv, b.Webview())
}

func TestHandleMessageQueuesValidFrame(t *testing.T) {
	b, wv := newBridge(t, 4)

	ok := b.HandleMessage("r1" + sep + "fs.read" + sep + b64(`{"path":"a.txt"}`))
	require.True(t, ok)

	got, ok := b.Receive()
	require.True(t, ok)
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, "fs.read", got.Command)
	assert.JSONEq(t, `{"path":"a.txt"}`, string(got.Payload))
	assert.Len(t, wv.Scripts(), 1, "no reply for an accepted frame")
}

func TestHandleMessageRepliesToRecoverableErrors(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		reply string
	}{
		{name: "bad payload", frame: "r1" + sep + "fs.read" + sep + "%%%", reply: ipc.ReplyInvalidPayload},
		{name: "missing payload field", frame: "r1" + sep + "fs.read", reply: ipc.ReplyInvalidFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, wv := newBridge(t, 4)
			assert.False(t, b.HandleMessage(tt.frame))
			assert.Equal(t, 0, b.Queue().Len())

			scripts := wv.Scripts()
			require.Len(t, scripts, 2)
			assert.Equal(t, ipc.ResponseScript("r1", []byte(tt.reply)), scripts[1])
		})
	}
}

func TestHandleMessageDropsUnaddressableFrame(t *testing.T) {
	b, wv := newBridge(t, 4)
	assert.False(t, b.HandleMessage("no separators here"))
	assert.Len(t, wv.Scripts(), 1)
}

func TestQueueFullRepliesAndKeepsQueue(t *testing.T) {
	// Scenario: capacity-4 queue, fifth frame is refused with an error reply.
	b, wv := newBridge(t, 4)
	for i := range 4 {
		require.True(t, b.HandleMessage(string(rune('a'+i))+sep+"app.ping"+sep))
	}

	assert.False(t, b.HandleMessage("e"+sep+"app.ping"+sep))
	assert.Equal(t, 4, b.Queue().Len())

	scripts := wv.Scripts()
	assert.Equal(t, ipc.ResponseScript("e", []byte(ipc.ReplyQueueFull)), scripts[len(scripts)-1])

	for _, want := range []string{"a", "b", "c", "d"} {
		got, ok := b.Receive()
		require.True(t, ok)
		assert.Equal(t, want, got.ID)
	}
}

func TestRespondAndEmit(t *testing.T) {
	b, wv := newBridge(t, 4)

	b.Respond("r9", `{"ok":true}`)
	b.Respond("", `{"ok":true}`)
	b.Emit("file.changed", `{"path":"x"}`)
	b.Emit("", "ignored")

	scripts := wv.Scripts()
	require.Len(t, scripts, 3)
	assert.Equal(t, ipc.ResponseScript("r9", []byte(`{"ok":true}`)), scripts[1])
	assert.True(t, strings.Contains(scripts[2], "onEvent"))
}

func TestDetachDropsOutput(t *testing.T) {
	b, wv := newBridge(t, 4)
	require.True(t, b.HandleMessage("r1"+sep+"app.ping"+sep))

	b.Detach()
	assert.Nil(t, b.Webview())
	assert.Equal(t, 0, b.Queue().Len())

	b.Respond("r1", "{}")
	b.Emit("x", "{}")
	assert.Len(t, wv.Scripts(), 1)
}

func TestEvalFailureIsTolerated(t *testing.T) {
	b, wv := newBridge(t, 4)
	wv.mu.Lock()
	wv.fail = true
	wv.mu.Unlock()

	b.Respond("r1", "{}")
	b.Emit("x", "{}")
	assert.Error(t, b.Inject())
}

func TestAttachReportsInjectFailure(t *testing.T) {
	b := ipc.NewBridge(ipc.NewCodec(ipc.Limits{}), ipc.NewQueue(4))
	err := b.Attach(&recordingWebview{fail: true})
	assert.Error(t, err)
}

func TestRespondDeliversFirstReplyPerReceivedRequest(t *testing.T) {
	b, wv := newBridge(t, 4)
	require.True(t, b.HandleMessage("r1"+sep+"app.ping"+sep))
	_, ok := b.Receive()
	require.True(t, ok)

	b.Respond("r1", `{"ok":true}`)
	b.Respond("r1", `{"ok":false,"error":"request timed out"}`)

	scripts := wv.Scripts()
	require.Len(t, scripts, 2)
	assert.Equal(t, ipc.ResponseScript("r1", []byte(`{"ok":true}`)), scripts[1])
	assert.Equal(t, 0, b.Ledger().InFlight())
}
