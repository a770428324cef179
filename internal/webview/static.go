// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package webview

import (
	"bytes"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
)

var shimTag = []byte(`<script src="` + PathShim + `"></script>`)

// staticHandler serves the web directory. HTML documents get the shim
// script tag injected so the page can reach the host.
type staticHandler struct {
	root   fs.FS
	files  http.Handler
	logger *slog.Logger
}

func newStaticHandler(dir string, logger *slog.Logger) http.Handler {
	if dir == "" {
		dir = "."
	}
	root := os.DirFS(dir)
	return &staticHandler{root: root, files: http.FileServerFS(root), logger: logger}
}

func (h *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		name = "."
	}
	if info, err := fs.Stat(h.root, name); err == nil && info.IsDir() {
		name = path.Join(name, "index.html")
	}
	if !isHTML(name) {
		h.files.ServeHTTP(w, r)
		return
	}

	page, err := fs.ReadFile(h.root, name)
	if err != nil {
		h.files.ServeHTTP(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(InjectShim(page)); err != nil {
		h.logger.Debug("writing page", "path", name, "error", err)
	}
}

func isHTML(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".html" || ext == ".htm"
}

// InjectShim inserts the shim script tag before </head>, else after
// <body ...>, else at the front of the document. Pages that already carry
// the tag are returned unchanged.
func InjectShim(page []byte) []byte {
	if bytes.Contains(page, shimTag) {
		return page
	}
	lower := bytes.ToLower(page)

	if i := bytes.Index(lower, []byte("</head>")); i >= 0 {
		return splice(page, i, shimTag)
	}
	if i := bytes.Index(lower, []byte("<body")); i >= 0 {
		if j := bytes.IndexByte(lower[i:], '>'); j >= 0 {
			return splice(page, i+j+1, shimTag)
		}
	}
	return splice(page, 0, shimTag)
}

func splice(page []byte, at int, insert []byte) []byte {
	out := make([]byte, 0, len(page)+len(insert))
	out = append(out, page[:at]...)
	out = append(out, insert...)
	return append(out, page[at:]...)
}
