// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-search/internal/apperr"
	"github.com/pdiddy/paper-search/pkg/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paper-search.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, []string{"arxiv", "biorxiv", "pubmed"}, cfg.Sources.Enabled)
	assert.Equal(t, 10, cfg.Sources.MaxResults)
	assert.Equal(t, 7, cfg.Sources.DaysBack)
	assert.Equal(t, "cancer OR diabetes", cfg.Sources.PubMedQuery)
	assert.Equal(t, "data/papers.db", cfg.Database.Path)
	assert.Equal(t, "paper-worker", cfg.Workers.Classification.Command)
	assert.Equal(t, []string{"classification"}, cfg.Workers.Classification.Args)
	assert.Equal(t, []string{"summarization"}, cfg.Workers.Summarization.Args)
	assert.Equal(t, 60*time.Second, cfg.Workers.Summarization.Timeout)
	assert.Equal(t, 50, cfg.Processing.MinAbstractLength)
	assert.Contains(t, cfg.Processing.Vocabulary, "machine learning")
	assert.Equal(t, 120*time.Minute, cfg.Scheduler.ProcessInterval)
	assert.Equal(t, "0 6 * * *", cfg.Scheduler.ScrapeSchedule)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, types.ProviderAnthropic, cfg.LLM.Provider)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := writeConfig(t, `
sources:
  enabled: [pubmed]
  max_results: 250
processing:
  vocabulary: [genomics, proteomics]
scheduler:
  process_interval: 15m
workers:
  summarization:
    timeout: 90s
llm:
  provider: ollama
`)
	t.Setenv("PAPER_SEARCH_DATABASE_PATH", "/tmp/override.db")
	t.Setenv("PAPER_SEARCH_SOURCES_PUBMED_QUERY", "malaria")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"pubmed"}, cfg.Sources.Enabled)
	assert.Equal(t, 250, cfg.Sources.MaxResults)
	assert.Equal(t, []string{"genomics", "proteomics"}, cfg.Processing.Vocabulary)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.ProcessInterval)
	assert.Equal(t, 90*time.Second, cfg.Workers.Summarization.Timeout)
	assert.Equal(t, types.ProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, "malaria", cfg.Sources.PubMedQuery)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown source", "sources:\n  enabled: [scopus]\n", "unknown source"},
		{"unknown provider", "llm:\n  provider: bard\n", "unknown llm.provider"},
		{"bad level", "log:\n  level: loud\n", "unknown log level"},
		{"negative batch", "processing:\n  batch_size: -1\n", "batch_size"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.Fatal))
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "sources: [unclosed\n"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Fatal))
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("scrape complete", "source", "arxiv", "saved", 3)

	assert.Contains(t, stderr.String(), "scrape complete")
	assert.NotContains(t, stderr.String(), "hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(file.String())), &line))
	assert.Equal(t, "scrape complete", line["msg"])
	assert.Equal(t, "arxiv", line["source"])
}

func TestSetupLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper-search.log")
	var stderr bytes.Buffer
	logger, closeFn := setupLogger(&stderr, path, slog.LevelInfo)
	logger.Info("hello")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, stderr.String(), "hello")
}

func TestSetupLogger_NoFile(t *testing.T) {
	var stderr bytes.Buffer
	logger, closeFn := setupLogger(&stderr, "", slog.LevelWarn)
	logger.Info("quiet")
	logger.Warn("loud")
	assert.NoError(t, closeFn())
	assert.NotContains(t, stderr.String(), "quiet")
	assert.Contains(t, stderr.String(), "loud")
}
