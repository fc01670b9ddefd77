// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-search/pkg/types"
)

var reportCmd = &cobra.Command{
	Use:   "report [daily|weekly]",
	Short: "Generate a Markdown digest, or list past ones",
	Long: `Report builds a daily (last 24 hours) or weekly (last 7 days) digest of
new papers, stores it, and prints the Markdown. With --list it prints the
stored reports instead.`,
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"daily", "weekly"},
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := types.ReportDaily
		if len(args) == 1 {
			rt = types.ReportType(args[0])
		}

		ctx, cancel := signalContext()
		defer cancel()
		a, err := openApp(io.Discard)
		if err != nil {
			return err
		}
		defer a.Close()

		if list, _ := cmd.Flags().GetBool("list"); list {
			limit, _ := cmd.Flags().GetInt("limit")
			var filter types.ReportType
			if len(args) == 1 {
				filter = rt
			}
			reports, err := a.store.ListReports(ctx, filter, limit)
			if err != nil {
				return err
			}
			for _, r := range reports {
				fmt.Fprintf(out, "%-4d %-6s %s\n", r.ID, r.Type, r.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		}

		var rep types.Report
		_, err = a.store.RunJob(ctx, types.JobReport, "", func(ctx context.Context) (any, error) {
			var err error
			rep, err = a.reports.Generate(ctx, rt)
			return map[string]any{"report_id": rep.ID, "report_type": rt}, err
		})
		if err != nil {
			return err
		}
		fmt.Fprint(out, rep.Content)
		return nil
	},
}

func init() {
	reportCmd.Flags().Bool("list", false, "list stored reports instead of generating one")
	reportCmd.Flags().Int("limit", 20, "maximum reports to list")
	rootCmd.AddCommand(reportCmd)
}
