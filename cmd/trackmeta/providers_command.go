package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"trackmeta/internal/backends"
	"trackmeta/internal/config"
	"trackmeta/internal/preflight"
)

func newProvidersCommand(ctx *commandContext) *cobra.Command {
	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "Inspect classifier backends",
	}
	providersCmd.AddCommand(newProvidersListCommand(ctx))
	providersCmd.AddCommand(newProvidersCheckCommand(ctx))
	return providersCmd
}

func newProvidersListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backends and whether they have credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			configured := make(map[string]bool)
			for _, name := range backends.Configured(cfg) {
				configured[name] = true
			}
			rows := make([][]string, 0, len(config.ProviderNames()))
			for _, name := range config.ProviderNames() {
				settings, _ := cfg.Provider(name)
				modes := "thorough"
				if backends.IsFast(name) {
					modes = "fast, thorough"
				}
				rows = append(rows, []string{name, settings.Model, modes, yesNo(configured[name])})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Provider", "Model", "Modes", "Configured"}, rows, nil))
			return nil
		},
	}
}

func newProvidersCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Send a health request to each configured backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.CheckProviders(cmd.Context(), cfg, nil)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := "ok"
				switch {
				case r.Skipped:
					status = "skipped"
				case !r.Passed:
					status = "failed"
				}
				rows = append(rows, []string{r.Name, status, r.Detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Provider", "Status", "Detail"}, rows, nil))

			if failed := preflight.Failed(results); len(failed) > 0 {
				names := make([]string, 0, len(failed))
				for _, r := range failed {
					names = append(names, r.Name)
				}
				return fmt.Errorf("provider check failed: %s", strings.Join(names, ", "))
			}
			return nil
		},
	}
}
