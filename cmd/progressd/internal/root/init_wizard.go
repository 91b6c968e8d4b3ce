// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package root

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mera-learn/progress-core/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactive wizard that writes a progressd config file",
	Long: `init asks for the webId, the GCS bucket backing the Pod sink, and the
local Badger directory backing the Local sink, then writes the resulting
config to --config (progressd.yaml by default). Re-running it overwrites
the existing file after confirmation.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if !stdoutIsTerminal() {
		return runInitPlain()
	}

	cfg := config.Defaults()
	var useGCS bool
	var overwrite = true

	if _, err := os.Stat(configPath); err == nil {
		confirm := huh.NewConfirm().
			Title(fmt.Sprintf("%s already exists. Overwrite?", configPath)).
			Affirmative("Yes").
			Negative("No").
			Value(&overwrite)
		if err := huh.NewForm(huh.NewGroup(confirm)).Run(); err != nil {
			return err
		}
		if !overwrite {
			return emitResult("init", map[string]string{"status": "cancelled"}, nil)
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("webId").
				Description("The opaque identifier this progressd instance acts as").
				Value(&cfg.Identity.WebID),
			huh.NewInput().
				Title("Curriculum file").
				Description("Path to a YAML curriculum snapshot (leave blank to use an empty registry)").
				Value(&cfg.Identity.CurriculumFile),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Back the Pod sink with a real GCS bucket?").
				Affirmative("Yes").
				Negative("No, use an in-memory stand-in").
				Value(&useGCS),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("GCS bucket").
				Value(&cfg.Storage.GCS.Bucket),
			huh.NewInput().
				Title("GCS credentials file").
				Description("Leave blank to use application-default credentials").
				Value(&cfg.Storage.GCS.CredentialsFile),
		).WithHideFunc(func() bool { return !useGCS }),
		huh.NewGroup(
			huh.NewInput().
				Title("Local Badger directory").
				Description("Leave blank for an in-memory Local sink").
				Value(&cfg.Storage.Badger.Dir),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	cfg.Storage.Badger.InMemory = cfg.Storage.Badger.Dir == ""

	return writeConfig(cfg)
}

// runInitPlain is the non-interactive fallback for piped/CI invocations,
// where huh's terminal form would fail to render.
func runInitPlain() error {
	cfg := config.Defaults()
	return writeConfig(cfg)
}

func writeConfig(cfg config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("progressd: marshaling config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("progressd: writing %s: %w", configPath, err)
	}
	return emitResult("init", map[string]string{"path": configPath}, nil)
}
