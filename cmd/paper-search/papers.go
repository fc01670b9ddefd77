// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-search/internal/orchestrator"
	"github.com/pdiddy/paper-search/pkg/types"
)

var papersCmd = &cobra.Command{
	Use:   "papers",
	Short: "List, inspect, add, and process papers",
}

// --- list ---

var papersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored papers, newest first",
	Example: `  paper-search papers list --category "machine learning" --limit 20
  paper-search papers list --unprocessed --source pubmed`,
	RunE: runPapersList,
}

func runPapersList(cmd *cobra.Command, args []string) error {
	f, err := filterFromFlags(cmd)
	if err != nil {
		return err
	}
	f.Limit, _ = cmd.Flags().GetInt("limit")
	f.Offset, _ = cmd.Flags().GetInt("offset")

	a, err := openApp(io.Discard)
	if err != nil {
		return err
	}
	defer a.Close()

	papers, err := a.store.ListPapers(context.Background(), f)
	if err != nil {
		return err
	}
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return writeJSON(papers)
	}
	printPaperTable(papers)
	return nil
}

// --- show ---

var papersShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one paper with its summary and categories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(io.Discard)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.store.GetPaper(context.Background(), id)
		if err != nil {
			return err
		}
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return writeJSON(p)
		}
		printPaper(p)
		return nil
	},
}

// --- search ---

var papersSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search titles and abstracts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		a, err := openApp(io.Discard)
		if err != nil {
			return err
		}
		defer a.Close()

		papers, err := a.store.SearchPapers(context.Background(), strings.Join(args, " "), limit)
		if err != nil {
			return err
		}
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return writeJSON(papers)
		}
		printPaperTable(papers)
		return nil
	},
}

// --- add ---

var papersAddCmd = &cobra.Command{
	Use:   "add <identifier>...",
	Short: "Add papers by arXiv ID, DOI, or PMID",
	Long: `Add looks up each identifier at its source and saves the paper. arXiv IDs
("2401.12345", "arXiv:2401.12345v2"), bioRxiv DOIs ("10.1101/..."), and PubMed
IDs ("PMID:12345678" or a bare number) are accepted. Papers already in the
store are reported and left unchanged.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := openApp(io.Discard)
		if err != nil {
			return err
		}
		defer a.Close()

		var failed int
		for _, id := range args {
			p, created, err := a.ingest.AddByIdentifier(ctx, id)
			switch {
			case err != nil:
				failed++
				fmt.Fprintf(out, "%s %s: %v\n", status(false), id, err)
			case created:
				fmt.Fprintf(out, "%s added   [%d] %s\n", status(true), p.ID, p.Title)
			default:
				fmt.Fprintf(out, "%s exists  [%d] %s\n", styles.hint.Render("-"), p.ID, p.Title)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d identifier(s) failed", failed, len(args))
		}
		return nil
	},
}

// --- process ---

var papersProcessCmd = &cobra.Command{
	Use:   "process [id]",
	Short: "Classify and summarize papers",
	Long: `Process classifies and summarizes a single paper when an id is given, or
up to --limit unprocessed papers otherwise. Abstracts longer than
processing.min_abstract_length are used as the summary directly; shorter
ones are summarized by the summarization worker.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPapersProcess,
}

func runPapersProcess(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 1 {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		res, err := a.orch.Process(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s paper %d: categories %v, summary from %s\n",
			status(true), res.PaperID, res.Classification.Categories, res.Summary.Source)
		if len(res.Classification.Rejected) > 0 {
			fmt.Fprintln(out, styles.hint.Render(fmt.Sprintf("  rejected %v", res.Classification.Rejected)))
		}
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		limit = cfg.Processing.BatchSize
	}
	var res orchestrator.BatchResult
	_, err = a.store.RunJob(ctx, types.JobProcess, "", func(ctx context.Context) (any, error) {
		var err error
		res, err = a.orch.ProcessNew(ctx, limit)
		return res, err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d processed, %d error(s)\n", res.Processed, res.Errors)
	if res.Errors > 0 {
		return fmt.Errorf("%d paper(s) failed processing", res.Errors)
	}
	return nil
}

// --- delete ---

var papersDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a paper and its category links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(io.Discard)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.DeletePaper(context.Background(), id); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s deleted paper %d\n", status(true), id)
		return nil
	},
}

// --- summarize, tldr, keypoints ---

var papersSummarizeCmd = &cobra.Command{
	Use:   "summarize <id>",
	Short: "Print a paper's summary, or a detailed LLM analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")
		detailed, _ := cmd.Flags().GetBool("detailed")

		ctx, cancel := signalContext()
		defer cancel()
		a, err := openApp(io.Discard)
		if err != nil {
			return err
		}
		defer a.Close()

		if detailed {
			text, err := a.orch.DetailedAnalysis(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, text)
			return nil
		}
		s, err := a.orch.Summarize(ctx, id, force)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, s.Text)
		fmt.Fprintln(out, styles.hint.Render("source: "+string(s.Source)))
		return nil
	},
}

var papersTLDRCmd = &cobra.Command{
	Use:   "tldr <id>",
	Short: "Generate a one-sentence TL;DR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()
		a, err := openApp(io.Discard)
		if err != nil {
			return err
		}
		defer a.Close()

		text, err := a.orch.TLDR(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)
		return nil
	},
}

var papersKeyPointsCmd = &cobra.Command{
	Use:   "keypoints <id>",
	Short: "Extract key points from a paper",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()
		a, err := openApp(io.Discard)
		if err != nil {
			return err
		}
		defer a.Close()

		points, err := a.orch.KeyPoints(ctx, id)
		if err != nil {
			return err
		}
		for _, p := range points {
			fmt.Fprintf(out, "- %s\n", p)
		}
		return nil
	},
}

// --- shared helpers ---

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid paper id %q", s)
	}
	return id, nil
}

// filterFromFlags reads the shared --category, --source, and --unprocessed flags.
func filterFromFlags(cmd *cobra.Command) (types.PaperFilter, error) {
	var f types.PaperFilter
	f.Categories, _ = cmd.Flags().GetStringSlice("category")
	f.UnprocessedOnly, _ = cmd.Flags().GetBool("unprocessed")
	if name, _ := cmd.Flags().GetString("source"); name != "" {
		src, err := types.ParseSource(name)
		if err != nil {
			return f, err
		}
		f.Source = src
	}
	return f, nil
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("category", nil, "require category (repeatable; all must match)")
	cmd.Flags().String("source", "", "filter by source: arxiv, biorxiv, pubmed, manual")
	cmd.Flags().Bool("unprocessed", false, "only papers without a summary")
}

func writeJSON(v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printPaperTable(papers []types.Paper) {
	if len(papers) == 0 {
		fmt.Fprintln(out, "No papers found.")
		return
	}

	titleWidth := termWidth() - 32
	if titleWidth < 20 {
		titleWidth = 20
	}
	fmt.Fprintln(out, styles.label.Render(fmt.Sprintf("%-6s  %-8s  %-10s  %s  %s", "ID", "Source", "Published", " ", "Title")))
	fmt.Fprintln(out, strings.Repeat("-", titleWidth+32))
	for _, p := range papers {
		fmt.Fprintf(out, "%-6d  %-8s  %-10s  %s  %s\n",
			p.ID, p.Source, p.Published.Format("2006-01-02"), status(p.Processed()), clip(p.Title, titleWidth))
	}
	fmt.Fprintf(out, "\n%d paper(s)\n", len(papers))
}

func printPaper(p types.Paper) {
	fmt.Fprintln(out, styles.title.Render(p.Title))
	row := func(label, value string) {
		if value != "" {
			fmt.Fprintf(out, "%s %s\n", styles.label.Render(fmt.Sprintf("%-11s", label+":")), value)
		}
	}
	row("ID", strconv.FormatInt(p.ID, 10))
	row("Identifier", p.Identifier)
	row("Source", string(p.Source))
	row("Authors", p.Authors)
	if !p.Published.IsZero() {
		row("Published", p.Published.Format("2006-01-02"))
	}
	row("PDF", p.PDFURL)
	row("Status", string(p.Status))
	row("Categories", strings.Join(p.Categories, ", "))

	if p.Abstract != "" {
		fmt.Fprintf(out, "\n%s\n%s\n", styles.label.Render("Abstract"), p.Abstract)
	}
	if p.Processed() {
		fmt.Fprintf(out, "\n%s\n%s\n", styles.label.Render("Summary ("+string(p.SummarySource)+")"), p.Summary)
	}
}

func init() {
	papersListCmd.Flags().Int("limit", 50, "maximum papers to list")
	papersListCmd.Flags().Int("offset", 0, "papers to skip")
	papersListCmd.Flags().Bool("json", false, "output as JSON")
	addFilterFlags(papersListCmd)

	papersShowCmd.Flags().Bool("json", false, "output as JSON")

	papersSearchCmd.Flags().Int("limit", 20, "maximum results")
	papersSearchCmd.Flags().Bool("json", false, "output as JSON")

	papersProcessCmd.Flags().Int("limit", 0, "papers to process (default from processing.batch_size)")

	papersSummarizeCmd.Flags().Bool("force", false, "regenerate with the summarization worker even if a summary exists")
	papersSummarizeCmd.Flags().Bool("detailed", false, "print a detailed analysis instead of the summary")

	papersCmd.AddCommand(papersListCmd, papersShowCmd, papersSearchCmd, papersAddCmd,
		papersProcessCmd, papersDeleteCmd, papersSummarizeCmd, papersTLDRCmd, papersKeyPointsCmd)
	rootCmd.AddCommand(papersCmd)
}
