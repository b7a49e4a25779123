package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"clipdub/internal/preflight"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue state and runtime dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			summary, err := store.Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderTable(
				[]string{"TOTAL", "WAITING", "PROCESSING", "COMPLETED", "FAILED", "CANCELLED"},
				[][]string{{
					strconv.Itoa(summary.Total),
					strconv.Itoa(summary.Created),
					strconv.Itoa(summary.Processing),
					strconv.Itoa(summary.Completed),
					strconv.Itoa(summary.Failed),
					strconv.Itoa(summary.Cancelled),
				}},
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
			))

			report := preflight.Run(cfg, nil)
			rows := make([][]string, 0, len(report.Checks))
			for _, check := range report.Checks {
				state := "ok"
				if !check.OK {
					state = "missing"
					if check.Optional {
						state = "missing (optional)"
					}
				}
				rows = append(rows, []string{check.Name, state, check.Detail})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"DEPENDENCY", "STATE", "DETAIL"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))

			if !report.Ready() {
				return fmt.Errorf("%d required dependency check(s) failed", len(report.Failures()))
			}
			fmt.Fprintln(out, "All required checks passed")
			return nil
		},
	}
}
