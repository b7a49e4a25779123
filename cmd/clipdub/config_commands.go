package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"clipdub/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newConfigInitCommand(ctx))
	cmd.AddCommand(newConfigShowCommand(ctx))
	return cmd
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if ctx.configFlag != nil {
				path = *ctx.configFlag
			}
			if path == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			} else {
				expanded, err := config.ExpandPath(path)
				if err != nil {
					return err
				}
				path = expanded
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, pass --force to overwrite", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			if err := config.CreateSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			fmt.Fprintln(cmd.OutOrStdout(), "Set telegram.bot_token before starting clipdubd")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config file: %s\n", ctx.configPath)
			fmt.Fprintf(out, "Work dir:    %s\n", cfg.Paths.WorkDir)
			fmt.Fprintf(out, "Log dir:     %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "Cache dir:   %s\n", cfg.Paths.CacheDir)
			fmt.Fprintf(out, "Queue db:    %s\n", cfg.QueueDatabasePath())
			fmt.Fprintf(out, "Workers:     %d\n", cfg.Workflow.Workers)
			fmt.Fprintf(out, "Whisper:     %s (%s)\n", cfg.Transcribe.Model, cfg.Transcribe.Device)
			fmt.Fprintf(out, "Target lang: %s\n", cfg.Translate.DefaultTarget)
			fmt.Fprintf(out, "Voice:       %s (%s)\n", cfg.Voice.Engine, cfg.Voice.DefaultGender)
			return nil
		},
	}
}
