// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package main

import (
	"fmt"

	"github.com/crossweb-dev/crossweb/internal/webview"
	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running dev webview's status",
		Long:  "Query the status endpoint of a running 'crossweb run' and display connected pages, queue depth and module generation.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", "", "dev webview address (defaults to devserver.listen)")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	if addr == "" {
		addr = viper.GetString("devserver.listen")
	}
	out := cmd.OutOrStdout()

	var st webview.Status
	if err := newDevClient(addr).getJSON(webview.PathStatus, &st); err != nil {
		if cwerr.HasCode(err, cwerr.CodeCLIServerDown) {
			_, _ = fmt.Fprintf(out, "Dev webview at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Dev webview at %s: %s\n", addr, err)
		return nil
	}

	_, _ = fmt.Fprintf(out, "%-14s %s %s\n", "App:", st.Name, st.Version)
	_, _ = fmt.Fprintf(out, "%-14s %d\n", "Pages:", st.Clients)
	_, _ = fmt.Fprintf(out, "%-14s %d/%d\n", "Queue:", st.QueueLen, st.QueueCap)
	_, _ = fmt.Fprintf(out, "%-14s %d (%s)\n", "Generation:", st.Generation, st.ReloadState)
	if st.Reload != nil {
		_, _ = fmt.Fprintf(out, "%-14s %d\n", "Reload errors:", st.Reload.FailureCount)
	}
	if st.LastError != "" {
		_, _ = fmt.Fprintf(out, "%-14s %s\n", "Last error:", st.LastError)
	}
	return nil
}
