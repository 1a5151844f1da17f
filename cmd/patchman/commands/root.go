// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Patchman - Patchman curates upstream commits into a reviewable, re-appliable patch set for downstream forks.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package commands contains the Cobra commands of the patchman CLI.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd constructs the patchman root Cobra command.
func NewRootCmd() *cobra.Command {
	version := os.Getenv("PATCHMAN_VERSION")
	if version == "" {
		version = "0.0.0-dev"
	}

	cmd := &cobra.Command{
		Use:   "patchman",
		Short: "Patchman - manage a curated upstream patch set for a downstream fork",
		Long: `Patchman selects upstream commits by git log filters, records them in an
editable manifest next to one patch file per commit, and later replays the
manifest oldest-first onto a fresh branch.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().String("config", "", "path to config file (default: <repo>/.patchman.yaml)")
	cmd.PersistentFlags().String("repo", ".", "repository directory")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of patchman",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "patchman version %s\n", version)
		},
	})

	cmd.AddCommand(NewGenCommand())
	cmd.AddCommand(NewApplyCommand())
	cmd.AddCommand(NewDryRunCommand())
	cmd.AddCommand(NewReportCommand())
	cmd.AddCommand(NewStatusCommand())

	return cmd
}
