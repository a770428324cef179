// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package main

import (
	"fmt"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration as YAML",
		Long:  "Print the configuration after defaults, config file, environment and flags are merged.",
		RunE:  runConfigPrint,
	})
	return cmd
}

func runConfigPrint(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return cwerr.Errorf(cwerr.CodeConfigParseInvalidFormat, "encoding config: %w", err)
	}

	w := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		_, _ = fmt.Fprintf(w, "# loaded from %s\n", used)
	} else {
		_, _ = fmt.Fprintln(w, "# defaults (no config file found)")
	}
	_, err = w.Write(out)
	return err
}
