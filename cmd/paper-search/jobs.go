// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-search/internal/scheduler"
	"github.com/pdiddy/paper-search/pkg/types"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and trigger pipeline jobs",
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show paper processing counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(io.Discard)
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.store.Stats(context.Background())
		if err != nil {
			return err
		}
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return writeJSON(st)
		}
		fmt.Fprintln(out, styles.title.Render("Paper status"))
		fmt.Fprintf(out, "  %s %d\n", styles.label.Render("Total:      "), st.Total)
		fmt.Fprintf(out, "  %s %d\n", styles.label.Render("Processed:  "), st.Processed)
		fmt.Fprintf(out, "  %s %d\n", styles.label.Render("Unprocessed:"), st.Unprocessed)
		fmt.Fprintf(out, "  %s %d\n", styles.label.Render("This week:  "), st.ThisWeek)
		fmt.Fprintf(out, "  %s %.1f%%\n", styles.label.Render("Rate:       "), st.ProcessingRate)
		return nil
	},
}

var jobsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent job runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		jobType, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")
		switch types.JobType(jobType) {
		case "", types.JobScrape, types.JobProcess, types.JobReport:
		default:
			return fmt.Errorf("unknown job type %q: use scrape, process, or report", jobType)
		}

		a, err := openApp(io.Discard)
		if err != nil {
			return err
		}
		defer a.Close()

		jobs, err := a.store.ListJobs(context.Background(), types.JobType(jobType), limit)
		if err != nil {
			return err
		}
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return writeJSON(jobs)
		}
		if len(jobs) == 0 {
			fmt.Fprintln(out, "No jobs recorded.")
			return nil
		}
		for _, j := range jobs {
			printJob(j)
		}
		return nil
	},
}

func printJob(j types.JobHistory) {
	mark := styles.hint.Render("…")
	switch j.Status {
	case types.JobSuccess:
		mark = status(true)
	case types.JobFailed:
		mark = status(false)
	}
	kind := string(j.Type)
	if j.Source != "" {
		kind += "/" + string(j.Source)
	}
	took := ""
	if j.CompletedAt != nil {
		took = j.CompletedAt.Sub(j.StartedAt).Round(time.Millisecond).String()
	}
	fmt.Fprintf(out, "%s %-16s %s  %-8s %s\n", mark, kind, j.StartedAt.Local().Format("2006-01-02 15:04"), took, styles.hint.Render(j.ID))
	if j.Error != "" {
		fmt.Fprintf(out, "    %s\n", styles.fail.Render(clip(j.Error, termWidth()-4)))
	} else if len(j.Result) > 0 {
		fmt.Fprintf(out, "    %s\n", clip(string(j.Result), termWidth()-4))
	}
}

var jobsRunCmd = &cobra.Command{
	Use:       "run <scrape|process|report>",
	Short:     "Run a scheduled job once, now",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"scrape", "process", "report"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := openApp(os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		t := a.tasks()
		var task scheduler.Task
		var jobType types.JobType
		switch args[0] {
		case "scrape":
			// Scrape records one job per source itself.
			res, err := t.Scrape(ctx)
			if err != nil {
				return err
			}
			return writeJSON(res)
		case "process":
			task, jobType = t.Process, types.JobProcess
		case "report":
			task, jobType = t.Report, types.JobReport
		}

		var res any
		job, err := a.store.RunJob(ctx, jobType, "", func(ctx context.Context) (any, error) {
			var err error
			res, err = task(ctx)
			return res, err
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s job %s\n", status(true), jobType, styles.hint.Render(job.ID))
		return writeJSON(res)
	},
}

// tasks are the scheduled jobs, shared by serve and jobs run.
func (a *app) tasks() scheduler.Tasks {
	return scheduler.Tasks{
		Scrape: func(ctx context.Context) (any, error) {
			sum, err := a.ingest.ScrapeAll(ctx)
			return sum, err
		},
		Process: func(ctx context.Context) (any, error) {
			return a.orch.ProcessNew(ctx, cfg.Processing.BatchSize)
		},
		Report: func(ctx context.Context) (any, error) {
			rep, err := a.reports.Daily(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{"report_id": rep.ID, "report_type": rep.Type}, nil
		},
	}
}

func init() {
	jobsStatusCmd.Flags().Bool("json", false, "output as JSON")
	jobsHistoryCmd.Flags().String("type", "", "filter by job type: scrape, process, report")
	jobsHistoryCmd.Flags().Int("limit", 20, "maximum jobs to list")
	jobsHistoryCmd.Flags().Bool("json", false, "output as JSON")

	jobsCmd.AddCommand(jobsStatusCmd, jobsHistoryCmd, jobsRunCmd)
	rootCmd.AddCommand(jobsCmd)
}
