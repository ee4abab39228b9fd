package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ultrasop/ultrasop/internal/api"
	"github.com/ultrasop/ultrasop/internal/config"
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint a bearer token for the API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.ValidateServe(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), api.SignUserID(args[0], cfg.Auth.Secret))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}
