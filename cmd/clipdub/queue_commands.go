package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clipdub/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the task queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newQueueListCommand(ctx))
	cmd.AddCommand(newQueueClearCommand(ctx))
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}

			var statuses []queue.Status
			if statusFilter != "" {
				status, ok := queue.ParseStatus(statusFilter)
				if !ok {
					return fmt.Errorf("unknown status %q", statusFilter)
				}
				statuses = append(statuses, status)
			}

			tasks, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}

			rows := make([][]string, 0, len(tasks))
			for _, task := range tasks {
				rows = append(rows, []string{
					strconv.FormatInt(task.ID, 10),
					colorStatus(task.Status),
					task.ProgressStage,
					task.Platform,
					formatTimestamp(task.CreatedAt),
					formatTimestamp(task.UpdatedAt),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "STATUS", "STAGE", "PLATFORM", "CREATED", "UPDATED"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show tasks with this status")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove completed tasks from the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			var removed int64
			if all {
				removed, err = store.Clear(cmd.Context())
			} else {
				removed, err = store.ClearCompleted(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d task(s)\n", removed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remove every task regardless of status")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Show one task in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			task, err := store.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			if task == nil {
				return fmt.Errorf("task %d not found", id)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Task #%d  %s\n", task.ID, colorStatus(task.Status))
			if task.InputURL != "" {
				fmt.Fprintf(out, "  Source:    %s\n", task.InputURL)
			} else {
				fmt.Fprintf(out, "  Source:    chat file %s\n", task.InputFileID)
			}
			if task.Platform != "" {
				fmt.Fprintf(out, "  Platform:  %s\n", task.Platform)
			}
			if task.DetectedLanguage != "" {
				fmt.Fprintf(out, "  Language:  %s\n", task.DetectedLanguage)
			}
			fmt.Fprintf(out, "  Options:   %s\n", describeOptions(task.Options))
			if task.ProgressStage != "" {
				fmt.Fprintf(out, "  Stage:     %s\n", task.ProgressStage)
			}
			if task.ProgressMessage != "" {
				fmt.Fprintf(out, "  Progress:  %s\n", task.ProgressMessage)
			}
			if task.ErrorMessage != "" {
				fmt.Fprintf(out, "  Error:     %s\n", task.ErrorMessage)
			}
			if task.OutputFile != "" {
				fmt.Fprintf(out, "  Output:    %s\n", task.OutputFile)
			}
			fmt.Fprintf(out, "  Created:   %s\n", formatTimestamp(task.CreatedAt))
			if task.CompletedAt != nil {
				fmt.Fprintf(out, "  Finished:  %s (%.0fs)\n", formatTimestamp(*task.CompletedAt), task.ProcessingSecs)
			}
			return nil
		},
	}
}

func describeOptions(options queue.Options) string {
	parts := make([]string, 0, 6)
	if options.GenerateSubtitles {
		parts = append(parts, "subtitles")
	}
	if options.Translate {
		target := options.TargetLanguage
		if target == "" {
			target = "default"
		}
		parts = append(parts, "translate→"+target)
	}
	if options.Voiceover {
		parts = append(parts, "voiceover")
	}
	if options.Vertical {
		parts = append(parts, "vertical")
	}
	if options.Watermark {
		parts = append(parts, "watermark")
	}
	if len(parts) == 0 {
		return "plain re-encode"
	}
	return strings.Join(parts, ", ")
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a waiting task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			cancelled, err := store.Cancel(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !cancelled {
				return fmt.Errorf("task %d is not waiting (already running or finished)", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task #%d cancelled\n", id)
			return nil
		},
	}
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Requeue failed tasks (all of them when no ids are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid task id %q", arg)
				}
				ids = append(ids, id)
			}
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			retried, err := store.RetryFailed(cmd.Context(), ids...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d task(s)\n", retried)
			return nil
		},
	}
}
