// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-search CLI.
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
	"github.com/pdiddy/paper-search/internal/secrets"
	"github.com/pdiddy/paper-search/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// v holds flag, env, and file settings; cfg is its decoded form.
	v        = viper.New()
	cfg      types.Config
	cfgFile  string
	logger   = slog.Default()
	closeLog = func() error { return nil }
)

// rootCmd is the base command for the paper-search CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-search",
	Short: "Ingest, classify, and summarize research papers",
	Long: `paper-search collects recent papers from arXiv, bioRxiv, and PubMed into a
local SQLite store, classifies them into topic categories, and summarizes
them through worker processes.

Use scrape to ingest, papers process to classify and summarize, report for
daily and weekly digests, and serve to run the web API with the scheduler.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./paper-search.yaml or ~/.config/paper-search/paper-search.yaml)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides database.path)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	_ = v.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// loadConfig reads the config file, environment, and secrets, then sets up
// logging. It runs before every subcommand.
func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	config.Prepare(v, cfgFile)
	used, err := config.ReadFile(v)
	if err != nil {
		return err
	}
	if cfg, err = config.Decode(v); err != nil {
		return err
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger, closeLog = config.SetupLogger(cfg.Log.File, level)
	slog.SetDefault(logger)
	if used != "" {
		logger.Debug("using config file", "path", used)
	}

	s, err := secrets.Load(secrets.DefaultDir, logger)
	if err != nil {
		return err
	}
	if applied := secrets.Apply(&cfg, s); len(applied) > 0 {
		fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", applied)
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styles.fail.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
