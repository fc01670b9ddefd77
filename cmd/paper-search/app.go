// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"io"
	"os"

	"github.com/pdiddy/paper-search/internal/ingest"
	"github.com/pdiddy/paper-search/internal/llm"
	"github.com/pdiddy/paper-search/internal/metrics"
	"github.com/pdiddy/paper-search/internal/orchestrator"
	"github.com/pdiddy/paper-search/internal/report"
	"github.com/pdiddy/paper-search/internal/store"
	"github.com/pdiddy/paper-search/internal/worker"
	"github.com/pdiddy/paper-search/pkg/types"
)

// app holds the services a command needs, all sharing one store.
type app struct {
	store   *store.Store
	ingest  *ingest.Service
	orch    *orchestrator.Orchestrator
	reports *report.Generator
	metrics *metrics.Collector
}

// openApp opens the store and wires ingestion, processing, and reporting.
// Progress lines go to progress.
func openApp(progress io.Writer) (*app, error) {
	st, err := store.Open(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	m := metrics.NewCollector()

	svc, err := ingest.NewFromConfig(st, cfg, nil, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	svc.Metrics = m
	svc.Progress = progress

	env := workerEnv(st.Path())
	classifier := worker.NewClient("classification", workerConfig(cfg.Workers.Classification), env, logger)
	summarizer := worker.NewClient("summarization", workerConfig(cfg.Workers.Summarization), env, logger)

	orch := orchestrator.New(st, classifier, summarizer, cfg.Processing, logger)
	orch.Metrics = m
	orch.Progress = progress

	reports := report.New(st, overviewModel(), logger)
	reports.Metrics = m

	return &app{store: st, ingest: svc, orch: orch, reports: reports, metrics: m}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// workerEnv points spawned workers at the same database and log level.
func workerEnv(dbPath string) []string {
	env := []string{"PAPER_SEARCH_DATABASE_PATH=" + dbPath}
	if cfg.Log.Level != "" {
		env = append(env, "PAPER_SEARCH_LOG_LEVEL="+cfg.Log.Level)
	}
	return env
}

// workerConfig forwards an explicit --config file to the worker.
func workerConfig(wc types.WorkerConfig) types.WorkerConfig {
	if cfgFile == "" {
		return wc
	}
	wc.Args = append(append([]string(nil), wc.Args...), "--config", cfgFile)
	return wc
}

// overviewModel returns the digest overview generator, or nil when
// overviews are disabled or the model cannot be built.
func overviewModel() llm.Generator {
	if !cfg.LLM.ReportOverview {
		return nil
	}
	m, err := llm.NewModel(cfg.LLM, logger)
	if err != nil {
		logger.Warn("report overview disabled", "error", err)
		return nil
	}
	return m
}

// out is where command results are printed.
var out io.Writer = os.Stdout
