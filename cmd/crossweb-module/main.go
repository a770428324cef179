// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

// Command crossweb-module serves the built-in runtime as a go-plugin child
// process. Point reload.artifact at the built binary and set
// reload.loader to process.
package main

import (
	"log/slog"
	"os"

	"github.com/crossweb-dev/crossweb/internal/logging"
	"github.com/crossweb-dev/crossweb/internal/plugins"
	"github.com/crossweb-dev/crossweb/internal/reload/goplugin"
	"github.com/crossweb-dev/crossweb/internal/runtime"
)

var version = "dev"

func main() {
	// stderr is relayed to the host's log by go-plugin.
	logger, err := logging.Setup("crossweb-module", version, "json", os.Getenv("CROSSWEB_LOG_LEVEL"), os.Stderr)
	if err != nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
		logger.Warn("falling back to default log level", "error", err)
	}
	slog.SetDefault(logger)

	rt := runtime.New(runtime.Options{
		Name:      "crossweb-module",
		Version:   version,
		Factories: plugins.Factories(nil),
		Logger:    logger,
	})
	goplugin.Serve(rt.Module())
}
