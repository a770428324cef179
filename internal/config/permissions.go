// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

// groupOrOtherRead covers bits 040 and 004.
const groupOrOtherRead fs.FileMode = 0o044

// WarnInsecurePermissions logs a warning when the config file is readable
// by group or others. Plugin sections may hold keystore service names and
// filesystem roots, so 0600 is recommended. Startup continues either way.
func WarnInsecurePermissions(path string) {
	if path == "" {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("could not stat config file for permission check", "path", path, "error", err)
		return
	}

	if mode := info.Mode(); mode.Perm()&groupOrOtherRead != 0 {
		slog.Warn("config file has insecure permissions",
			"path", path,
			"mode", mode,
			"recommended", "0600",
		)
	}
}
