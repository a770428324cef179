// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package main

import (
	"fmt"
	"os"
	goruntime "runtime"

	"github.com/crossweb-dev/crossweb/internal/config"
	"github.com/crossweb-dev/crossweb/internal/reload"
	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check the platform, configuration, web directory, module artifact, dev webview and disk space.",
		RunE:  runDoctor,
	}

	cmd.Flags().String("address", "", "dev webview address to check (defaults to devserver.listen)")

	return cmd
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	addr, _ := cmd.Flags().GetString("address")

	cfg, cfgErr := loadConfig()
	if addr == "" {
		addr = viper.GetString("devserver.listen")
	}

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Config", func() string { return checkConfig(cfgErr) }},
		{"Web Dir", func() string { return checkWebDir(cfg) }},
		{"Module", func() string { return checkModule(cfg) }},
		{"Dev Webview", func() string { return checkDevServer(addr) }},
		{"Disk Space", func() string { return checkDiskSpace(".") }},
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

func checkBinary() string {
	return fmt.Sprintf("crossweb %s (%s/%s)", version, goruntime.GOOS, goruntime.GOARCH)
}

func checkPlatform() string {
	native := "unsupported"
	if reload.NativeSupported {
		native = "supported"
	}
	return fmt.Sprintf("%s/%s, Go %s, native modules %s", goruntime.GOOS, goruntime.GOARCH, goruntime.Version(), native)
}

func checkConfig(err error) string {
	if err != nil {
		return fmt.Sprintf("invalid: %s", err)
	}
	if cfgFile := viper.ConfigFileUsed(); cfgFile != "" {
		return fmt.Sprintf("loaded from %s", cfgFile)
	}
	return "using defaults (no config file found)"
}

func checkWebDir(cfg *config.Config) string {
	if cfg == nil {
		return "skipped (config invalid)"
	}
	info, err := os.Stat(cfg.App.WebDir)
	switch {
	case os.IsNotExist(err):
		return fmt.Sprintf("missing: %s", cfg.App.WebDir)
	case err != nil:
		return fmt.Sprintf("error: %s", err)
	case !info.IsDir():
		return fmt.Sprintf("not a directory: %s", cfg.App.WebDir)
	}
	entries, _ := os.ReadDir(cfg.App.WebDir)
	return fmt.Sprintf("%s (%d entries)", cfg.App.WebDir, len(entries))
}

func checkModule(cfg *config.Config) string {
	if cfg == nil {
		return "skipped (config invalid)"
	}
	if cfg.Reload.Loader == config.LoaderStatic {
		return "static (built-in plugins)"
	}
	if cfg.Reload.Loader == config.LoaderNative && !reload.NativeSupported {
		return "native loader unavailable in this build"
	}
	info, err := os.Stat(cfg.Reload.Artifact)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("%s artifact missing: %s", cfg.Reload.Loader, cfg.Reload.Artifact)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s artifact %s (%s)", cfg.Reload.Loader, cfg.Reload.Artifact, formatBytes(uint64(info.Size())))
}

func checkDevServer(addr string) string {
	var body struct {
		Status string `json:"status"`
	}
	if err := newDevClient(addr).getJSON("/health", &body); err != nil {
		if cwerr.HasCode(err, cwerr.CodeCLIServerDown) {
			return fmt.Sprintf("not running at %s (run 'crossweb run')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s at %s", body.Status, addr)
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
