package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"blindtest/internal/api"
	"blindtest/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent export runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				items := make([]api.ExportRun, 0, len(runs))
				for _, run := range runs {
					items = append(items, api.FromRun(run))
				}
				return writeJSON(cmd, items)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No exports recorded")
				return nil
			}
			now := time.Now()
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.ID),
					string(run.Status),
					run.StartedAt.Local().Format("2006-01-02 15:04"),
					run.Elapsed(now).Round(time.Second).String(),
					strconv.Itoa(run.Items),
					progressCell(run),
					run.Output,
				})
			}
			fmt.Fprint(out, renderTable(
				[]string{"ID", "Status", "Started", "Elapsed", "Clips", "Frames", "Output"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func progressCell(run history.Run) string {
	if run.TotalFrames == 0 {
		return strconv.FormatUint(run.Frame, 10)
	}
	return fmt.Sprintf("%d/%d", run.Frame, run.TotalFrames)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
