package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ultrasop/ultrasop/internal/generate"
)

var (
	generateTitle  string
	generateDetail string
)

var generateCmd = &cobra.Command{
	Use:   "generate [notes-file]",
	Short: "Generate a new document from notes",
	Long:  "Generate a new document from a notes file, or from stdin when no file is given.\nWithout a model API key a heuristic line parser is used instead.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		notes, err := readNotes(cmd, args)
		if err != nil {
			return err
		}
		if strings.TrimSpace(notes) == "" {
			return errors.New("notes are empty")
		}

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		detail := generate.DetailLevel(generateDetail)
		if generateDetail == "" {
			detail = generate.DetailLevel(a.Config.Generate.Detail)
		}
		if !detail.Valid() {
			return fmt.Errorf("invalid detail level %q", generateDetail)
		}

		doc, err := a.Gen.GenerateFromNotes(cmd.Context(), notes, generateTitle, detail)
		switch {
		case err == nil:
		case errors.Is(err, generate.ErrNotConfigured):
			fmt.Fprintln(cmd.ErrOrStderr(), "no model API key, using heuristic parsing")
			doc = generate.FallbackFromNotes(notes, generateTitle)
		case errors.Is(err, generate.ErrUpstream) && doc != nil:
			fmt.Fprintln(cmd.ErrOrStderr(), "model backend error, generated a heuristic draft")
		default:
			return err
		}

		a.Store.Insert(doc)
		a.Store.Flush(cmd.Context())
		fmt.Fprint(cmd.OutOrStdout(), a.Renderer.Preview(doc))
		return nil
	},
}

func readNotes(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		b, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("reading notes: %w", err)
		}
		return string(b), nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(b), nil
}

func init() {
	generateCmd.Flags().StringVar(&generateTitle, "title", "", "override the generated title")
	generateCmd.Flags().StringVar(&generateDetail, "detail", "", "detail level: preview, full or rich")
	rootCmd.AddCommand(generateCmd)
}
