package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"blindtest/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools and writable paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			failed := 0
			var rows [][]string
			for _, status := range preflight.CheckSystemDeps(cmd.Context(), cfg) {
				ok := status.Available || status.Optional
				if !ok {
					failed++
				}
				command := status.Command
				if status.Path != "" {
					command = status.Path
				}
				rows = append(rows, []string{status.Name, yesNo(status.Available), command, status.Detail})
			}
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				if !result.Passed {
					failed++
				}
				rows = append(rows, []string{result.Name, yesNo(result.Passed), "", result.Detail})
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTable(
				[]string{"Check", "OK", "Command", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			if failed > 0 {
				return fmt.Errorf("%d checks failed", failed)
			}
			fmt.Fprintln(out, "\nAll checks passed")
			return nil
		},
	}
}
