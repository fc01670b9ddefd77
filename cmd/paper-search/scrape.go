// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-search/internal/ingest"
	"github.com/pdiddy/paper-search/internal/sources"
	"github.com/pdiddy/paper-search/pkg/types"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Fetch recent papers from the configured sources",
	Long: `Scrape fetches recent papers from arXiv, bioRxiv, and PubMed and saves the
ones not already in the store. Each source run is recorded in the job
history. A failing source is reported and the remaining sources still run.`,
	Example: `  paper-search scrape
  paper-search scrape --source arxiv --max-results 50 --query "cat:cs.LG"
  paper-search scrape --source biorxiv --days-back 3`,
	RunE: runScrape,
}

func init() {
	scrapeCmd.Flags().String("source", "all", "source to scrape: arxiv, biorxiv, pubmed, or all")
	scrapeCmd.Flags().Int("max-results", 0, "records per source (default from sources.max_results)")
	scrapeCmd.Flags().Int("days-back", 0, "bioRxiv posting window in days (default from sources.days_back)")
	scrapeCmd.Flags().String("query", "", "arXiv or PubMed query (default from config)")

	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("source")
	var p sources.Params
	p.MaxResults, _ = cmd.Flags().GetInt("max-results")
	p.DaysBack, _ = cmd.Flags().GetInt("days-back")
	p.Query, _ = cmd.Flags().GetString("query")

	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	targets := a.ingest.Enabled()
	if n := strings.ToLower(strings.TrimSpace(name)); n != "" && n != "all" {
		src, err := types.ParseSource(n)
		if err != nil || src == types.SourceManual {
			return fmt.Errorf("unknown source %q: use arxiv, biorxiv, pubmed, or all", name)
		}
		targets = []types.Source{src}
	}

	var sum ingest.Summary
	for _, src := range targets {
		o, err := a.ingest.ScrapeSource(ctx, src, p)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sum.Sources = append(sum.Sources, o)
		sum.Fetched += o.Fetched
		sum.Saved += o.Saved
		if err != nil {
			sum.Failed++
		}
	}

	printScrapeSummary(sum)
	if sum.HasFailures() {
		return fmt.Errorf("%d source(s) failed", sum.Failed)
	}
	return nil
}

func printScrapeSummary(sum ingest.Summary) {
	fmt.Fprintln(out, styles.title.Render("Scrape results"))
	for _, o := range sum.Sources {
		line := fmt.Sprintf("  %s %-8s fetched %3d  saved %3d", status(o.Error == ""), o.Source, o.Fetched, o.Saved)
		if o.Error != "" {
			line += "  " + styles.fail.Render(clip(o.Error, 60))
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "\n%d new paper(s), %d fetched, %d error(s)\n", sum.Saved, sum.Fetched, sum.Failed)
}
