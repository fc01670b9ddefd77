// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm provides the text-generation capability used by the
// summarization worker and the digest overview.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/pdiddy/paper-search/internal/apperr"
	"github.com/pdiddy/paper-search/pkg/types"
)

// Generator produces text from prompts.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// backend builds the langchaingo client for one provider.
type backend func(cfg types.LLMConfig) (llms.Model, error)

// backends maps each provider to its constructor. An empty provider means
// Anthropic.
var backends = map[types.LLMProvider]backend{
	types.ProviderAnthropic: func(cfg types.LLMConfig) (llms.Model, error) {
		if cfg.AnthropicAPIKey == "" {
			return nil, missingKey("llm.anthropic_api_key", ".secrets/anthropic-api-key")
		}
		return anthropic.New(anthropic.WithToken(cfg.AnthropicAPIKey), anthropic.WithModel(cfg.Model))
	},
	types.ProviderOpenAI: func(cfg types.LLMConfig) (llms.Model, error) {
		if cfg.OpenAIAPIKey == "" {
			return nil, missingKey("llm.openai_api_key", ".secrets/openai-api-key")
		}
		return openai.New(openai.WithToken(cfg.OpenAIAPIKey), openai.WithModel(cfg.Model))
	},
	types.ProviderOllama: func(cfg types.LLMConfig) (llms.Model, error) {
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.OllamaHost != "" {
			opts = append(opts, ollama.WithServerURL(cfg.OllamaHost))
		}
		return ollama.New(opts...)
	},
}

func missingKey(setting, file string) error {
	return fmt.Errorf("API key required (set %s or %s)", setting, file)
}

// Model generates text with the configured provider. Completions are
// logged with the model name and latency.
type Model struct {
	client   llms.Model
	provider types.LLMProvider
	model    string
	logger   *slog.Logger
}

// NewModel builds a Model for cfg.Provider. A missing API key or an unknown
// provider is an apperr.Validation error.
func NewModel(cfg types.LLMConfig, logger *slog.Logger) (*Model, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = types.ProviderAnthropic
	}
	op := "llm." + string(provider)

	build, ok := backends[provider]
	if !ok {
		return nil, apperr.Errorf(apperr.Validation, "llm", "unsupported LLM provider %q", cfg.Provider)
	}
	client, err := build(cfg)
	if err != nil {
		return nil, apperr.New(apperr.Validation, op, err)
	}
	return newModel(client, provider, cfg.Model, logger), nil
}

func newModel(client llms.Model, provider types.LLMProvider, model string, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	return &Model{
		client:   client,
		provider: provider,
		model:    model,
		logger:   logger.With("provider", string(provider), "model", model),
	}
}

// Generate answers a single user prompt.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	return m.complete(ctx, llms.TextParts(llms.ChatMessageTypeHuman, prompt))
}

// GenerateWithSystem answers userPrompt under systemPrompt.
func (m *Model) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return m.complete(ctx,
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	)
}

// complete sends messages and returns the first choice, trimmed. Provider
// failures are apperr.Transport errors naming the model; a cancelled ctx
// is returned unwrapped.
func (m *Model) complete(ctx context.Context, messages ...llms.MessageContent) (string, error) {
	op := "llm." + string(m.provider)
	start := time.Now()

	resp, err := m.client.GenerateContent(ctx, messages)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		m.logger.Warn("completion failed", "elapsed", elapsed, "error", err)
		return "", apperr.New(apperr.Transport, op, fmt.Errorf("model %s: %w", m.model, err))
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", apperr.Errorf(apperr.Transport, op, "model %s returned no choices", m.model)
	}

	text := strings.TrimSpace(resp.Choices[0].Content)
	m.logger.Debug("completion finished", "elapsed", elapsed, "chars", len(text))
	return text, nil
}
