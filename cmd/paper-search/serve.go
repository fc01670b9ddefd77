// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-search/internal/scheduler"
	"github.com/pdiddy/paper-search/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web API and the job scheduler",
	Long: `Serve starts the JSON web API. When scheduler.enabled is set (or
--scheduler is given) it also runs scrape, process, and report jobs on their
cron schedules. Jobs left running by a previous process are marked failed
at startup. SIGINT or SIGTERM shuts down gracefully.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")
	serveCmd.Flags().Bool("scheduler", false, "run the scheduler even if scheduler.enabled is false")
	serveCmd.Flags().Bool("no-scheduler", false, "do not run the scheduler")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}
	withSched := cfg.Scheduler.Enabled
	if on, _ := cmd.Flags().GetBool("scheduler"); on {
		withSched = true
	}
	if off, _ := cmd.Flags().GetBool("no-scheduler"); off {
		withSched = false
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	var sched *scheduler.Scheduler
	if withSched {
		sched, err = scheduler.New(a.store, cfg.Scheduler, a.tasks(), logger)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
			defer stop()
			if err := sched.Stop(stopCtx); err != nil {
				logger.Warn("scheduler did not stop cleanly", "error", err)
			}
		}()
	}

	srv := server.New(server.Deps{
		Store:        a.store,
		Orchestrator: a.orch,
		Ingest:       a.ingest,
		Reports:      a.reports,
		Scheduler:    sched,
		Metrics:      a.metrics,
		Version:      version,
	}, logger)

	if err := srv.ListenAndServe(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
