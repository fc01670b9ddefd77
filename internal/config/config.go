// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads paper-search settings with viper and builds the
// process logger.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/paper-search/internal/apperr"
	"github.com/pdiddy/paper-search/internal/tools"
	"github.com/pdiddy/paper-search/pkg/types"
)

// EnvPrefix prefixes environment overrides: database.path is read from
// PAPER_SEARCH_DATABASE_PATH.
const EnvPrefix = "PAPER_SEARCH"

// ConfigName is the config file base name searched for in the working
// directory and ~/.config/paper-search/.
const ConfigName = "paper-search"

// SetDefaults registers every known key with its default. Keys must be
// registered for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http.timeout", 60*time.Second)
	v.SetDefault("http.user_agent", "paper-search/0.1")

	v.SetDefault("sources.enabled", []string{"arxiv", "biorxiv", "pubmed"})
	v.SetDefault("sources.max_results", 10)
	v.SetDefault("sources.days_back", 7)
	v.SetDefault("sources.arxiv_query", "all")
	v.SetDefault("sources.pubmed_query", "cancer OR diabetes")
	v.SetDefault("sources.ncbi_api_key", "")

	v.SetDefault("database.path", "data/papers.db")

	for _, w := range []string{"classification", "summarization"} {
		v.SetDefault("workers."+w+".command", "paper-worker")
		v.SetDefault("workers."+w+".args", []string{w})
		v.SetDefault("workers."+w+".timeout", 60*time.Second)
	}

	v.SetDefault("processing.batch_size", 10)
	v.SetDefault("processing.min_abstract_length", 50)
	v.SetDefault("processing.vocabulary", tools.DefaultVocabulary())

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.scrape_schedule", "0 6 * * *")
	v.SetDefault("scheduler.process_interval", 120*time.Minute)
	v.SetDefault("scheduler.report_schedule", "0 9 * * *")

	v.SetDefault("server.addr", ":8000")

	v.SetDefault("llm.provider", string(types.ProviderAnthropic))
	v.SetDefault("llm.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.anthropic_api_key", "")
	v.SetDefault("llm.openai_api_key", "")
	v.SetDefault("llm.ollama_host", "http://localhost:11434")
	v.SetDefault("llm.report_overview", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// Prepare points v at the config file and environment. An empty cfgFile
// searches the working directory, then ~/.config/paper-search/.
func Prepare(v *viper.Viper, cfgFile string) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", ConfigName))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
}

// ReadFile reads the config file if there is one. A missing file is not
// an error; it returns the path used, or "".
func ReadFile(v *viper.Viper) (string, error) {
	err := v.ReadInConfig()
	if err == nil {
		return v.ConfigFileUsed(), nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return "", nil
	}
	return "", apperr.New(apperr.Fatal, "config.read", err)
}

// Decode unmarshals v into a Config and validates it.
func Decode(v *viper.Viper) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, apperr.New(apperr.Fatal, "config.decode", err)
	}
	if err := Validate(cfg); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

// Load is Prepare, ReadFile, and Decode on a fresh viper instance.
func Load(cfgFile string) (types.Config, error) {
	v := viper.New()
	Prepare(v, cfgFile)
	if _, err := ReadFile(v); err != nil {
		return types.Config{}, err
	}
	return Decode(v)
}

// Validate rejects settings no component can run with.
func Validate(cfg types.Config) error {
	var problems []string
	for _, name := range cfg.Sources.Enabled {
		if _, err := types.ParseSource(name); err != nil {
			problems = append(problems, err.Error())
		}
	}
	switch cfg.LLM.Provider {
	case "", types.ProviderAnthropic, types.ProviderOpenAI, types.ProviderOllama:
	default:
		problems = append(problems, fmt.Sprintf("unknown llm.provider %q", cfg.LLM.Provider))
	}
	if cfg.Processing.BatchSize < 0 {
		problems = append(problems, "processing.batch_size must not be negative")
	}
	if cfg.Processing.MinAbstractLength < 0 {
		problems = append(problems, "processing.min_abstract_length must not be negative")
	}
	if cfg.Scheduler.ProcessInterval < 0 {
		problems = append(problems, "scheduler.process_interval must not be negative")
	}
	if strings.TrimSpace(cfg.Database.Path) == "" {
		problems = append(problems, "database.path is required")
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return apperr.Errorf(apperr.Fatal, "config.validate", "%s", strings.Join(problems, "; "))
	}
	return nil
}
