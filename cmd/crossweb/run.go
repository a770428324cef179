// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/crossweb-dev/crossweb/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the dev webview and the host loop",
		Long:  "Load configuration, bind the module, serve the web directory with the IPC bridge and tick the host loop until interrupted.",
		RunE:  runRun,
	}

	cmd.Flags().String("listen", "", "override dev webview listen address (host:port)")
	cmd.Flags().String("web-dir", "", "override the served web directory")
	cmd.Flags().Bool("hot", false, "enable hot reload")
	_ = viper.BindPFlag("devserver.listen", cmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("app.web_dir", cmd.Flags().Lookup("web-dir"))
	_ = viper.BindPFlag("reload.enabled", cmd.Flags().Lookup("hot"))

	return cmd
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.SetDefault(cfg.App.Name, version, cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	shell, err := WireShell(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting crossweb",
		"listen", cfg.DevServer.Listen,
		"web_dir", cfg.App.WebDir,
		"loader", cfg.Reload.Loader,
		"hot_reload", cfg.Reload.Enabled,
	)
	return shell.Run(ctx, nil)
}
