// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key
// name and the file contents (trimmed) are the value.
//
// Recognized key files: ncbi-api-key, anthropic-api-key, openai-api-key.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/paper-search/pkg/types"
)

// DefaultDir is the secrets directory used by the binaries.
const DefaultDir = ".secrets/"

// Key file names.
const (
	KeyNCBI      = "ncbi-api-key"
	KeyAnthropic = "anthropic-api-key"
	KeyOpenAI    = "openai-api-key"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string, logger *slog.Logger) (map[string]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", "name", name, "error", err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Apply copies recognized secrets into cfg fields that are still empty, so
// values from the config file or environment win. It returns the names of
// the keys it applied, sorted.
func Apply(cfg *types.Config, secrets map[string]string) []string {
	targets := map[string]*string{
		KeyNCBI:      &cfg.Sources.NCBIAPIKey,
		KeyAnthropic: &cfg.LLM.AnthropicAPIKey,
		KeyOpenAI:    &cfg.LLM.OpenAIAPIKey,
	}

	var applied []string
	for key, field := range targets {
		v, ok := secrets[key]
		if !ok || *field != "" {
			continue
		}
		*field = v
		applied = append(applied, key)
	}
	sort.Strings(applied)
	return applied
}
