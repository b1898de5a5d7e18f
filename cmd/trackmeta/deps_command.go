package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"trackmeta/internal/deps"
	"trackmeta/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Report external binaries trackmeta uses",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := preflight.CheckSystemDeps(cmd.Context(), cfg)
			rows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				required := "required"
				if s.Optional {
					required = "optional"
				}
				rows = append(rows, []string{s.Name, required, yesNo(s.Available), s.Path, s.Version, s.Detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Dependency", "Need", "Available", "Path", "Version", "Detail"}, rows, nil))

			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d required dependencies missing; MP3 input still decodes without FFmpeg\n", len(missing))
			}
			return nil
		},
	}
}
