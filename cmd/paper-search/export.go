// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export papers to YAML or JSON on stdout",
	Long: `Export writes the stored papers (or a filtered subset) with their
categories and summaries to stdout. The count goes to stderr.`,
	Example: `  paper-search export --format json --category nlp > nlp.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		f, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}
		f.Limit, _ = cmd.Flags().GetInt("limit")

		a, err := openApp(io.Discard)
		if err != nil {
			return err
		}
		defer a.Close()

		var n int
		switch format {
		case "yaml", "":
			n, err = a.store.ExportYAML(context.Background(), out, f)
		case "json":
			n, err = a.store.ExportJSON(context.Background(), out, f)
		default:
			return fmt.Errorf("unsupported format %q: use yaml or json", format)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported %d paper(s)\n", n)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	exportCmd.Flags().Int("limit", 0, "maximum papers to export (0 = all)")
	addFilterFlags(exportCmd)
	rootCmd.AddCommand(exportCmd)
}
