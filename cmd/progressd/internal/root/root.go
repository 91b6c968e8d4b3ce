// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package root wires the progressd CLI: the cobra command tree and the
// shared config/bridge/registry construction every subcommand needs. One
// file per subcommand, a package-level rootCmd wiring them together.
package root

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	jsonOutput bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "progressd",
	Short: "Operate the dual-sink progress persistence core outside the browser runtime",
	Long: `progressd drives the save orchestrator, save manager, and save cleaner
against a real Pod (GCS) and Local (Badger) sink pair, for local development,
staging smoke tests, and ops debugging. It is not how the progress core runs
in production -- there it is embedded directly in the browser-resident
learning platform -- but every code path it exercises is the same core.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "progressd.yaml", "path to the progressd config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON instead of text")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(initCmd)
}

// Execute runs the progressd command tree. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}
