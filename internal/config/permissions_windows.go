// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

//go:build windows

package config

import "log/slog"

// WarnInsecurePermissions is a no-op on Windows, where ACLs rather than
// mode bits govern access.
func WarnInsecurePermissions(path string) {
	if path != "" {
		slog.Debug("config permission check not implemented on Windows", "path", path)
	}
}
