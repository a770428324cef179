// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package main

import (
	"fmt"
	"slices"

	"github.com/crossweb-dev/crossweb/internal/plugins/keystore"
	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"github.com/spf13/cobra"
)

// secretStoreFactory creates a keystore.Store. It is a package-level variable
// so tests can substitute a mock implementation.
var secretStoreFactory = func() keystore.Store {
	return keystore.NewKeyringStore()
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage keystore entries in the OS keyring",
		Long:  "List and delete the entries the keystore plugin stored in the operating system keyring.",
	}

	cmd.PersistentFlags().String("service", keystore.DefaultService, "keyring service name")

	cmd.AddCommand(
		newSecretListCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stored entry names",
		RunE:  runSecretList,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an entry by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

func runSecretList(cmd *cobra.Command, _ []string) error {
	service, _ := cmd.Flags().GetString("service")
	keys, err := secretStoreFactory().List(service)
	if err != nil {
		return cwerr.Errorf(cwerr.CodeKeystoreListFailure, "listing entries: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(out, "No entries stored.")
		return nil
	}

	slices.Sort(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintln(out, k)
	}
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	service, _ := cmd.Flags().GetString("service")

	if err := secretStoreFactory().Delete(service, name); err != nil {
		if cwerr.HasCode(err, cwerr.CodeKeystoreNotFound) {
			return cwerr.Errorf(cwerr.CodeKeystoreNotFound, "entry %q not found", name)
		}
		return cwerr.Errorf(cwerr.CodeKeystoreDeleteFailure, "deleting entry %q: %w", name, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted entry: %s\n", name)
	return nil
}
