// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the worker process spawned by paper-search for
// classification and summarization calls. It reads JSON-RPC request lines
// on stdin and writes one response line per request to stdout. Logs go to
// stderr so they never mix with responses.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-search/internal/config"
	"github.com/pdiddy/paper-search/internal/llm"
	"github.com/pdiddy/paper-search/internal/secrets"
	"github.com/pdiddy/paper-search/internal/store"
	"github.com/pdiddy/paper-search/internal/tools"
	"github.com/pdiddy/paper-search/internal/worker"
	"github.com/pdiddy/paper-search/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	cfgFile string
	cfg     types.Config
	logger  = slog.Default()

	closeLog = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "paper-worker",
	Short: "Serve classification or summarization tools over stdio",
	Long: `paper-worker answers tools/call requests from paper-search. The
classification worker scores titles and abstracts against the category
vocabulary; the summarization worker reads papers from the store and asks
the configured LLM for summaries, TL;DRs, and key points.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.New()
		config.Prepare(v, cfgFile)
		if _, err := config.ReadFile(v); err != nil {
			return err
		}
		var err error
		if cfg, err = config.Decode(v); err != nil {
			return err
		}
		level, err := config.ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		var l *slog.Logger
		l, closeLog = config.SetupLogger(cfg.Log.File, level)
		logger = l.With("worker", cmd.Name())

		s, err := secrets.Load(secrets.DefaultDir, logger)
		if err != nil {
			return err
		}
		secrets.Apply(&cfg, s)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

var classificationCmd = &cobra.Command{
	Use:   "classification",
	Short: "Serve classify_paper",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := worker.NewServer("classification", version, logger)
		for _, t := range tools.ClassificationTools(tools.NewClassifier(cfg.Processing.Vocabulary)) {
			srv.Register(t)
		}
		return serve(srv)
	},
}

var summarizationCmd = &cobra.Command{
	Use:   "summarization",
	Short: "Serve summarize_abstract, summarize_detailed, generate_tldr, extract_key_points, and batch_summarize",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Database, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		model, err := llm.NewModel(cfg.LLM, logger)
		if err != nil {
			return err
		}

		srv := worker.NewServer("summarization", version, logger)
		for _, t := range tools.SummarizationTools(st, model) {
			srv.Register(t)
		}
		return serve(srv)
	},
}

func serve(srv *worker.Server) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return srv.Serve(ctx, os.Stdin, os.Stdout)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./paper-search.yaml or ~/.config/paper-search/paper-search.yaml)")
	rootCmd.AddCommand(classificationCmd, summarizationCmd, &cobra.Command{
		Use:              "version",
		Short:            "Print the worker version",
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("paper-worker %s\n", version)
		},
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
