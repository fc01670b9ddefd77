// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List categories with paper counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(io.Discard)
		if err != nil {
			return err
		}
		defer a.Close()

		cats, err := a.store.ListCategories(context.Background())
		if err != nil {
			return err
		}
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return writeJSON(cats)
		}
		if len(cats) == 0 {
			fmt.Fprintln(out, "No categories yet. Run papers process to classify papers.")
			return nil
		}
		fmt.Fprintln(out, styles.title.Render(fmt.Sprintf("Categories (%d)", len(cats))))
		for _, c := range cats {
			fmt.Fprintf(out, "- %s %s\n", c.Name, styles.hint.Render(fmt.Sprintf("(%d)", c.PaperCount)))
		}
		return nil
	},
}

func init() {
	categoriesCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(categoriesCmd)
}
