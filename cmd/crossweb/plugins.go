// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/crossweb-dev/crossweb/internal/plugins"
	"github.com/crossweb-dev/crossweb/internal/plugins/app"
	"github.com/spf13/cobra"
)

func newPluginsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List built-in plugins",
		Long:  "List the plugins compiled into the static module and whether the configuration enables them.",
		RunE:  runPlugins,
	}
}

func runPlugins(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tENABLED\tDESCRIPTION")
	// app is registered by the runtime and cannot be disabled.
	_, _ = fmt.Fprintf(tw, "%s\t%t\t%s\n", app.Name, true, "runtime info and ping")
	for _, b := range plugins.Builtins() {
		_, _ = fmt.Fprintf(tw, "%s\t%t\t%s\n", b.Name, cfg.PluginEnabled(b.Name), b.Description)
	}
	return tw.Flush()
}
