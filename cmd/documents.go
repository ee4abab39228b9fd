package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var showJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents in the workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		fmt.Fprint(cmd.OutOrStdout(), a.Renderer.ListView(a.Store.List(), a.Store.Active().ID))
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active document",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		d := a.Store.Active()
		if showJSON {
			out, err := a.Renderer.JSONView(d)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), a.Renderer.Preview(d))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the active document's version history",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		fmt.Fprint(cmd.OutOrStdout(), a.Renderer.VersionHistory(a.Store.Active()))
		return nil
	},
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "print the document as JSON")
	rootCmd.AddCommand(listCmd, showCmd, historyCmd)
}
