package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ultrasop/ultrasop/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the active document as PDF",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		d := a.Store.Active()
		path := "sop.pdf"
		if len(args) == 1 {
			path = args[0]
		}

		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer f.Close()

		if err := export.ToPDF(d, f, export.Options{ProductName: a.Config.ProductName}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %q to %s\n", d.DisplayTitle(), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
