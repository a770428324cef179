// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package fs_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/crossweb-dev/crossweb/internal/plugins/fs"
	sdk "github.com/crossweb-dev/crossweb/pkg/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlugin(t *testing.T, cfg fs.Config) (sdk.Invoker, string) {
	t.Helper()
	if cfg.Root == "" {
		cfg.Root = t.TempDir()
	}
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)

	p := fs.New()
	require.NoError(t, p.(sdk.Initializer).Init(sdk.Context{Config: raw, Platform: "linux"}))
	t.Cleanup(p.(sdk.Cleaner).Cleanup)
	return p.(sdk.Invoker), cfg.Root
}

func invoke(t *testing.T, p sdk.Invoker, sub, payload string) string {
	t.Helper()
	var out string
	require.NoError(t, p.Invoke(context.Background(), sub, []byte(payload), func(r string) { out = r }))
	return out
}

func TestReadFile(t *testing.T) {
	p, root := newPlugin(t, fs.Config{})
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o600))

	assert.JSONEq(t, `{"data":"hello"}`, invoke(t, p, "read", `{"path":"a.txt"}`))

	want := base64.StdEncoding.EncodeToString([]byte("hello"))
	assert.JSONEq(t, `{"data":"`+want+`","binary":true}`, invoke(t, p, "read", `{"path":"a.txt","binary":true}`))
}

func TestReadErrors(t *testing.T) {
	p, _ := newPlugin(t, fs.Config{})

	assert.JSONEq(t, `{"error":"File not found"}`, invoke(t, p, "read", `{"path":"missing.txt"}`))
	assert.JSONEq(t, `{"error":"Invalid path"}`, invoke(t, p, "read", `{"path":"../outside.txt"}`))
	assert.JSONEq(t, `{"error":"Invalid path"}`, invoke(t, p, "read", `{"path":"/etc/passwd"}`))
	assert.JSONEq(t, `{"error":"invalid payload"}`, invoke(t, p, "read", `not json`))
	assert.JSONEq(t, `{"error":"unknown command"}`, invoke(t, p, "chmod", `{}`))
}

func TestWriteFileCreatesParents(t *testing.T) {
	p, root := newPlugin(t, fs.Config{})

	assert.JSONEq(t, `{"success":true}`, invoke(t, p, "write", `{"path":"notes/today.txt","content":"hi"}`))
	data, err := os.ReadFile(filepath.Join(root, "notes", "today.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))

	bin := base64.StdEncoding.EncodeToString([]byte{0, 1, 2})
	assert.JSONEq(t, `{"success":true}`, invoke(t, p, "write", `{"path":"b.bin","content":"`+bin+`","binary":true}`))
	data, err = os.ReadFile(filepath.Join(root, "b.bin"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2}, data)

	assert.JSONEq(t, `{"error":"Invalid path"}`, invoke(t, p, "write", `{"path":"","content":"x"}`))
	assert.JSONEq(t, `{"error":"invalid payload"}`, invoke(t, p, "write", `{"path":"c.bin","content":"%%","binary":true}`))
}

func TestWriteReadOnly(t *testing.T) {
	p, _ := newPlugin(t, fs.Config{ReadOnly: true})
	assert.JSONEq(t, `{"error":"Permission denied"}`, invoke(t, p, "write", `{"path":"a","content":"x"}`))
}

func TestStatAndList(t *testing.T) {
	p, root := newPlugin(t, fs.Config{})
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dir", "f.txt"), []byte("1234"), 0o600))

	var info fs.FileInfo
	require.NoError(t, json.Unmarshal([]byte(invoke(t, p, "stat", `{"path":"dir/f.txt"}`)), &info))
	assert.Equal(t, "dir/f.txt", info.Path)
	assert.Equal(t, int64(4), info.Size)
	assert.False(t, info.IsDirectory)

	var listing struct {
		Entries []fs.FileInfo `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(invoke(t, p, "list", "")), &listing))
	require.Len(t, listing.Entries, 1)
	assert.Equal(t, "dir", listing.Entries[0].Path)
	assert.True(t, listing.Entries[0].IsDirectory)

	require.NoError(t, json.Unmarshal([]byte(invoke(t, p, "list", `{"path":"dir"}`)), &listing))
	require.Len(t, listing.Entries, 1)
	assert.Equal(t, "dir/f.txt", listing.Entries[0].Path)
}

func TestInitRejectsBadConfig(t *testing.T) {
	p := fs.New()
	err := p.(sdk.Initializer).Init(sdk.Context{Config: json.RawMessage(`{"root":`)})
	assert.Error(t, err)
}
