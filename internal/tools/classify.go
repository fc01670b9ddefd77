// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tools implements the tools served by the paper-worker binary:
// keyword classification against a controlled vocabulary, and LLM
// summarization of stored papers. It also defines the argument and result
// shapes both sides of the worker RPC agree on.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pdiddy/paper-search/internal/worker"
)

// Tool names.
const (
	ToolClassifyPaper     = "classify_paper"
	ToolSummarizeAbstract = "summarize_abstract"
	ToolSummarizeDetailed = "summarize_detailed"
	ToolExtractKeyPoints  = "extract_key_points"
	ToolGenerateTLDR      = "generate_tldr"
	ToolBatchSummarize    = "batch_summarize"
)

// defaultKeywords maps each built-in category to the terms that signal it.
var defaultKeywords = map[string][]string{
	"machine learning": {"learning", "neural", "model", "training"},
	"computer vision":  {"image", "vision", "visual", "detection"},
	"nlp":              {"language", "text", "nlp", "linguistic"},
	"robotics":         {"robot", "autonomous", "control"},
	"security":         {"security", "attack", "vulnerability", "encryption"},
}

// newCategoryThreshold is the keyword hit count needed to suggest a
// category the paper does not already have.
const newCategoryThreshold = 2

// DefaultVocabulary returns the built-in category names, sorted.
func DefaultVocabulary() []string {
	names := make([]string, 0, len(defaultKeywords))
	for name := range defaultKeywords {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Classifier scores papers against a controlled vocabulary.
type Classifier struct {
	vocab    []string
	keywords map[string][]string
}

// NewClassifier builds a classifier over vocab. Names are lower-cased.
// Categories without built-in keywords match on their own name. An empty
// vocab selects DefaultVocabulary.
func NewClassifier(vocab []string) *Classifier {
	if len(vocab) == 0 {
		vocab = DefaultVocabulary()
	}
	c := &Classifier{keywords: make(map[string][]string)}
	for _, name := range vocab {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || c.keywords[name] != nil {
			continue
		}
		kws, ok := defaultKeywords[name]
		if !ok {
			kws = []string{name}
		}
		c.vocab = append(c.vocab, name)
		c.keywords[name] = kws
	}
	return c
}

// Vocabulary returns the allowed category names.
func (c *Classifier) Vocabulary() []string {
	return append([]string(nil), c.vocab...)
}

// Allowed reports whether name is in the vocabulary.
func (c *Classifier) Allowed(name string) bool {
	_, ok := c.keywords[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Classify returns the vocabulary categories that match the paper's
// text. A category the paper already carries needs one keyword hit; a new
// one needs two. The result is ordered by score, highest first, and is
// empty when nothing matches.
func (c *Classifier) Classify(title, abstract string, existing []string) []string {
	text := strings.ToLower(title + " " + abstract)

	has := make(map[string]bool, len(existing))
	for _, e := range existing {
		has[strings.ToLower(strings.TrimSpace(e))] = true
	}

	type scored struct {
		name  string
		score int
	}
	var hits []scored
	for _, name := range c.vocab {
		score := 0
		for _, kw := range c.keywords[name] {
			if strings.Contains(text, kw) {
				score++
			}
		}
		if score >= newCategoryThreshold || (has[name] && score > 0) {
			hits = append(hits, scored{name, score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.name
	}
	return out
}

// ClassifyArgs are the classify_paper arguments.
type ClassifyArgs struct {
	Title              string   `json:"title"`
	Abstract           string   `json:"abstract"`
	ExistingCategories []string `json:"existing_categories"`
}

// ClassifyResult is the classify_paper result.
type ClassifyResult struct {
	Categories []string `json:"categories"`
}

// ClassificationTools returns the tools served by a classification worker.
func ClassificationTools(c *Classifier) []worker.Tool {
	return []worker.Tool{{
		Name:        ToolClassifyPaper,
		Description: "Classify a paper into zero or more categories from the controlled vocabulary.",
		Handler: func(_ context.Context, raw json.RawMessage) (any, error) {
			var args ClassifyArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("invalid classify_paper arguments: %w", err)
			}
			cats := c.Classify(args.Title, args.Abstract, args.ExistingCategories)
			if cats == nil {
				cats = []string{}
			}
			return ClassifyResult{Categories: cats}, nil
		},
	}}
}
