// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

// Package fs is the built-in filesystem plugin. All paths are relative to
// a configured root directory and cannot escape it.
package fs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	iofs "io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	sdk "github.com/crossweb-dev/crossweb/pkg/plugin"
)

const (
	Name    = "fs"
	version = 100

	// DefaultRoot is used when the plugin config names no root.
	DefaultRoot = "data"
)

// Error messages, as shown to the page.
const (
	msgNotFound       = "File not found"
	msgPermission     = "Permission denied"
	msgInvalidPath    = "Invalid path"
	msgIO             = "I/O error"
	msgInvalidPayload = "invalid payload"
	msgUnknownCommand = "unknown command"
)

// Config is the plugin's configuration blob.
type Config struct {
	Root     string `json:"root"`
	ReadOnly bool   `json:"read_only"`
}

// FileInfo describes one file or directory.
type FileInfo struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	IsDirectory  bool   `json:"is_directory"`
	ModifiedTime int64  `json:"modified_time"`
}

type ReadFileRequest struct {
	Path   string `json:"path"`
	Binary bool   `json:"binary"`
}

type WriteFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Binary  bool   `json:"binary"`
}

type pathRequest struct {
	Path string `json:"path"`
}

type Plugin struct {
	mu       sync.RWMutex
	root     *os.Root
	readOnly bool
	logger   *slog.Logger
}

var (
	_ sdk.Initializer  = (*Plugin)(nil)
	_ sdk.Invoker      = (*Plugin)(nil)
	_ sdk.EventHandler = (*Plugin)(nil)
	_ sdk.Cleaner      = (*Plugin)(nil)
)

func New() sdk.Plugin {
	return &Plugin{logger: slog.Default()}
}

func (p *Plugin) Name() string { return Name }
func (p *Plugin) Version() int { return version }

func (p *Plugin) Init(ctx sdk.Context) error {
	var cfg Config
	if len(ctx.Config) > 0 {
		if err := json.Unmarshal(ctx.Config, &cfg); err != nil {
			return cwerr.Wrap(err, cwerr.CodeConfigParseInvalidFormat, "parsing fs plugin config")
		}
	}
	if cfg.Root == "" {
		cfg.Root = DefaultRoot
	}
	if ctx.Logger != nil {
		p.logger = ctx.Logger
	}

	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return cwerr.Wrap(err, cwerr.CodeFSPathInvalid, "creating fs root", cwerr.FieldPath(cfg.Root))
	}
	root, err := os.OpenRoot(cfg.Root)
	if err != nil {
		return cwerr.Wrap(err, cwerr.CodeFSPathInvalid, "opening fs root", cwerr.FieldPath(cfg.Root))
	}

	p.mu.Lock()
	p.root = root
	p.readOnly = cfg.ReadOnly
	p.mu.Unlock()

	p.logger.Info("fs plugin initialized", "root", cfg.Root, "platform", ctx.Platform, "read_only", cfg.ReadOnly)
	return nil
}

func (p *Plugin) Invoke(_ context.Context, sub string, payload []byte, respond sdk.Responder) error {
	p.mu.RLock()
	root := p.root
	readOnly := p.readOnly
	p.mu.RUnlock()
	if root == nil {
		fail(respond, msgIO)
		return cwerr.New(cwerr.CodeFSReadFailure, "fs plugin not initialized")
	}

	var err error
	switch sub {
	case "read":
		err = p.read(root, payload, respond)
	case "write":
		if readOnly {
			fail(respond, msgPermission)
			return nil
		}
		err = p.write(root, payload, respond)
	case "stat":
		err = p.stat(root, payload, respond)
	case "list":
		err = p.list(root, payload, respond)
	default:
		fail(respond, msgUnknownCommand)
		return nil
	}
	if err != nil {
		p.logger.Debug("fs command failed", "subcommand", sub, "error", err)
	}
	return nil
}

func (p *Plugin) Event(name, data string) {
	p.logger.Debug("fs event", "event", name, "data", data)
}

func (p *Plugin) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.root != nil {
		_ = p.root.Close()
		p.root = nil
	}
}

func (p *Plugin) read(root *os.Root, payload []byte, respond sdk.Responder) error {
	var req ReadFileRequest
	if err := decode(payload, &req); err != nil {
		fail(respond, msgInvalidPayload)
		return err
	}
	name, err := localPath(req.Path)
	if err != nil {
		fail(respond, msgInvalidPath)
		return err
	}

	data, err := root.ReadFile(name)
	if err != nil {
		fail(respond, describe(err))
		return cwerr.Wrap(err, cwerr.CodeFSReadFailure, "reading file", cwerr.FieldPath(req.Path))
	}

	out := map[string]any{"data": string(data)}
	if req.Binary {
		out = map[string]any{"data": base64.StdEncoding.EncodeToString(data), "binary": true}
	}
	sdk.Reply(respond, out)
	return nil
}

func (p *Plugin) write(root *os.Root, payload []byte, respond sdk.Responder) error {
	var req WriteFileRequest
	if err := decode(payload, &req); err != nil {
		fail(respond, msgInvalidPayload)
		return err
	}
	name, err := localPath(req.Path)
	if err != nil || name == "." {
		fail(respond, msgInvalidPath)
		return cwerr.New(cwerr.CodeFSPathInvalid, "invalid write path", cwerr.FieldPath(req.Path))
	}

	content := []byte(req.Content)
	if req.Binary {
		content, err = base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			fail(respond, msgInvalidPayload)
			return cwerr.Wrap(err, cwerr.CodeFSRequestInvalid, "decoding binary content")
		}
	}

	if dir := filepath.Dir(name); dir != "." {
		if err := root.MkdirAll(dir, 0o755); err != nil {
			fail(respond, describe(err))
			return cwerr.Wrap(err, cwerr.CodeFSWriteFailure, "creating parent directory", cwerr.FieldPath(req.Path))
		}
	}
	if err := root.WriteFile(name, content, 0o644); err != nil {
		fail(respond, describe(err))
		return cwerr.Wrap(err, cwerr.CodeFSWriteFailure, "writing file", cwerr.FieldPath(req.Path))
	}

	respond(`{"success":true}`)
	return nil
}

func (p *Plugin) stat(root *os.Root, payload []byte, respond sdk.Responder) error {
	var req pathRequest
	if err := decode(payload, &req); err != nil {
		fail(respond, msgInvalidPayload)
		return err
	}
	name, err := localPath(req.Path)
	if err != nil {
		fail(respond, msgInvalidPath)
		return err
	}

	fi, err := root.Stat(name)
	if err != nil {
		fail(respond, describe(err))
		return cwerr.Wrap(err, cwerr.CodeFSReadFailure, "stat", cwerr.FieldPath(req.Path))
	}
	sdk.Reply(respond, toFileInfo(filepath.ToSlash(name), fi))
	return nil
}

func (p *Plugin) list(root *os.Root, payload []byte, respond sdk.Responder) error {
	req := pathRequest{Path: "."}
	if len(payload) > 0 {
		if err := decode(payload, &req); err != nil {
			fail(respond, msgInvalidPayload)
			return err
		}
	}
	name, err := localPath(req.Path)
	if err != nil {
		fail(respond, msgInvalidPath)
		return err
	}

	entries, err := iofs.ReadDir(root.FS(), filepath.ToSlash(name))
	if err != nil {
		fail(respond, describe(err))
		return cwerr.Wrap(err, cwerr.CodeFSReadFailure, "listing directory", cwerr.FieldPath(req.Path))
	}

	infos := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, toFileInfo(filepath.ToSlash(filepath.Join(name, e.Name())), fi))
	}
	sdk.Reply(respond, map[string]any{"entries": infos})
	return nil
}

func toFileInfo(name string, fi iofs.FileInfo) FileInfo {
	info := FileInfo{
		Path:         name,
		IsDirectory:  fi.IsDir(),
		ModifiedTime: fi.ModTime().Unix(),
	}
	if !fi.IsDir() {
		info.Size = fi.Size()
	}
	return info
}

func decode(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return cwerr.Wrap(err, cwerr.CodeFSRequestInvalid, "decoding request")
	}
	return nil
}

// localPath turns a slash-separated request path into a root-relative one.
// An empty path names the root itself.
func localPath(p string) (string, error) {
	if p == "" {
		return ".", nil
	}
	name := filepath.Clean(filepath.FromSlash(p))
	if !filepath.IsLocal(name) && name != "." {
		return "", cwerr.New(cwerr.CodeFSPathInvalid, "path escapes root", cwerr.FieldPath(p))
	}
	return name, nil
}

func describe(err error) string {
	switch {
	case errors.Is(err, iofs.ErrNotExist):
		return msgNotFound
	case errors.Is(err, iofs.ErrPermission):
		return msgPermission
	default:
		return msgIO
	}
}

func fail(respond sdk.Responder, msg string) {
	if respond == nil {
		return
	}
	data, _ := json.Marshal(map[string]string{"error": msg})
	respond(string(data))
}
