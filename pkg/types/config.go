// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by the source adapters.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paper-search/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// SourcesConfig holds ingestion settings.
type SourcesConfig struct {
	// Enabled lists the sources a full scrape visits (default: all).
	Enabled []string `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// MaxResults caps records fetched per source per run (default 10).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// DaysBack is the bioRxiv posting window in days (default 7).
	DaysBack int `json:"days_back" yaml:"days_back" mapstructure:"days_back"`

	// ArxivQuery is the arXiv search_query term (default "all").
	ArxivQuery string `json:"arxiv_query" yaml:"arxiv_query" mapstructure:"arxiv_query"`

	// PubMedQuery is the esearch term (default "cancer OR diabetes").
	PubMedQuery string `json:"pubmed_query" yaml:"pubmed_query" mapstructure:"pubmed_query"`

	// NCBIAPIKey is an optional E-utilities key for higher rate limits.
	NCBIAPIKey string `json:"ncbi_api_key,omitempty" yaml:"ncbi_api_key,omitempty" mapstructure:"ncbi_api_key"`
}

// DatabaseConfig locates the SQLite paper store.
type DatabaseConfig struct {
	// Path is the SQLite database file (default "data/papers.db").
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// WorkerConfig describes how to spawn one kind of worker process.
type WorkerConfig struct {
	// Command is the executable to run (default "paper-worker").
	Command string `json:"command" yaml:"command" mapstructure:"command"`

	// Args are passed to Command on every call.
	Args []string `json:"args" yaml:"args" mapstructure:"args"`

	// Timeout bounds a single call; the process is killed on expiry (default 60s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// WorkersConfig groups the classification and summarization workers.
type WorkersConfig struct {
	Classification WorkerConfig `json:"classification" yaml:"classification" mapstructure:"classification"`
	Summarization  WorkerConfig `json:"summarization" yaml:"summarization" mapstructure:"summarization"`
}

// ProcessingConfig holds orchestrator settings.
type ProcessingConfig struct {
	// BatchSize caps papers per scheduled processing tick (default 10).
	BatchSize int `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`

	// MinAbstractLength is the trimmed abstract length above which the
	// abstract is used as the summary (default 50).
	MinAbstractLength int `json:"min_abstract_length" yaml:"min_abstract_length" mapstructure:"min_abstract_length"`

	// Vocabulary is the controlled category list accepted from classification.
	Vocabulary []string `json:"vocabulary" yaml:"vocabulary" mapstructure:"vocabulary"`
}

// SchedulerConfig holds cron settings for the periodic jobs.
type SchedulerConfig struct {
	// Enabled starts the scheduler with the API server.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// ScrapeSchedule is a cron expression for full ingestion (default "0 6 * * *").
	ScrapeSchedule string `json:"scrape_schedule" yaml:"scrape_schedule" mapstructure:"scrape_schedule"`

	// ProcessInterval is the gap between processing ticks (default 120m).
	ProcessInterval time.Duration `json:"process_interval" yaml:"process_interval" mapstructure:"process_interval"`

	// ReportSchedule is a cron expression for the daily digest (default "0 9 * * *").
	ReportSchedule string `json:"report_schedule" yaml:"report_schedule" mapstructure:"report_schedule"`
}

// ServerConfig holds web API settings.
type ServerConfig struct {
	// Addr is the listen address (default ":8000").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`
}

// LLMProvider selects the text-generation backend.
type LLMProvider string

const (
	ProviderAnthropic LLMProvider = "anthropic"
	ProviderOpenAI    LLMProvider = "openai"
	ProviderOllama    LLMProvider = "ollama"
)

// LLMConfig configures the text-generation capability used by the
// summarization worker and the digest overview.
type LLMConfig struct {
	Provider LLMProvider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the provider model name (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	AnthropicAPIKey string `json:"anthropic_api_key,omitempty" yaml:"anthropic_api_key,omitempty" mapstructure:"anthropic_api_key"`
	OpenAIAPIKey    string `json:"openai_api_key,omitempty" yaml:"openai_api_key,omitempty" mapstructure:"openai_api_key"`
	OllamaHost      string `json:"ollama_host" yaml:"ollama_host" mapstructure:"ollama_host"`

	// ReportOverview enables an LLM-written opening paragraph in digests.
	ReportOverview bool `json:"report_overview" yaml:"report_overview" mapstructure:"report_overview"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error (default info).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// File receives JSON log lines in addition to stderr; empty disables it.
	File string `json:"file" yaml:"file" mapstructure:"file"`
}

// Config groups all settings for the CLI, API server, and workers.
type Config struct {
	HTTP       HTTPConfig       `json:"http" yaml:"http" mapstructure:"http"`
	Sources    SourcesConfig    `json:"sources" yaml:"sources" mapstructure:"sources"`
	Database   DatabaseConfig   `json:"database" yaml:"database" mapstructure:"database"`
	Workers    WorkersConfig    `json:"workers" yaml:"workers" mapstructure:"workers"`
	Processing ProcessingConfig `json:"processing" yaml:"processing" mapstructure:"processing"`
	Scheduler  SchedulerConfig  `json:"scheduler" yaml:"scheduler" mapstructure:"scheduler"`
	Server     ServerConfig     `json:"server" yaml:"server" mapstructure:"server"`
	LLM        LLMConfig        `json:"llm" yaml:"llm" mapstructure:"llm"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
}
