// Package cmd defines the command-line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ultrasop/ultrasop/internal/app"
	"github.com/ultrasop/ultrasop/internal/config"
	"github.com/ultrasop/ultrasop/internal/log"
)

var userFlag string

var rootCmd = &cobra.Command{
	Use:          "ultrasop",
	Short:        "UltraSOP is a standard-operating-procedure editor",
	Long:         "UltraSOP edits, versions, generates and exports standard operating procedures,\nlocally or against a shared Postgres workspace.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "user id for the remote workspace (requires postgres)")
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and assembles the application for a command.
func setup(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.Log.Level),
		JSON:      cfg.Log.JSON,
		AddSource: cfg.Log.AddSource,
	})
	a, err := app.Setup(cmd.Context(), cfg, logger, userFlag)
	if err != nil {
		return nil, err
	}
	return a, nil
}
