// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrator routes stored papers through the classification and
// summarization workers and persists what they return.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pdiddy/paper-search/internal/apperr"
	"github.com/pdiddy/paper-search/internal/metrics"
	"github.com/pdiddy/paper-search/internal/store"
	"github.com/pdiddy/paper-search/internal/tools"
	"github.com/pdiddy/paper-search/pkg/types"
)

// DefaultMinAbstractLength is the trimmed abstract length above which the
// abstract itself becomes the summary.
const DefaultMinAbstractLength = 50

// DefaultBatchSize caps a ProcessNew run when the caller passes no limit.
const DefaultBatchSize = 10

// Caller invokes a tool on a worker. *worker.Client satisfies it; tests
// supply fakes.
type Caller interface {
	Call(ctx context.Context, tool string, args, out any) error
}

// Orchestrator classifies and summarizes papers held in a store.
type Orchestrator struct {
	store       *store.Store
	classifier  Caller
	summarizer  Caller
	vocab       map[string]bool
	minAbstract int
	batchSize   int
	logger      *slog.Logger

	// Metrics receives call timings; nil disables recording.
	Metrics *metrics.Collector

	// Progress receives one line per paper from ProcessNew. Defaults to
	// io.Discard.
	Progress io.Writer
}

// New wires an orchestrator. An empty vocabulary selects the built-in
// category list.
func New(st *store.Store, classifier, summarizer Caller, cfg types.ProcessingConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	vocab := cfg.Vocabulary
	if len(vocab) == 0 {
		vocab = tools.DefaultVocabulary()
	}
	allowed := make(map[string]bool, len(vocab))
	for _, v := range vocab {
		allowed[normalize(v)] = true
	}
	o := &Orchestrator{
		store:       st,
		classifier:  classifier,
		summarizer:  summarizer,
		vocab:       allowed,
		minAbstract: cfg.MinAbstractLength,
		batchSize:   cfg.BatchSize,
		logger:      logger,
		Progress:    io.Discard,
	}
	if o.minAbstract <= 0 {
		o.minAbstract = DefaultMinAbstractLength
	}
	if o.batchSize <= 0 {
		o.batchSize = DefaultBatchSize
	}
	return o
}

// Classification is the outcome of the classify step for one paper.
type Classification struct {
	// Categories are the accepted names, all attached to the paper.
	Categories []string `json:"categories"`

	// Rejected are names the worker returned outside the vocabulary.
	Rejected []string `json:"rejected,omitempty"`

	// Created are categories that did not exist before this paper.
	Created []string `json:"created,omitempty"`
}

// Summary is the stored summary and where it came from.
type Summary struct {
	Text   string              `json:"summary"`
	Source types.SummarySource `json:"source"`
}

// Result is the outcome of processing one paper.
type Result struct {
	PaperID        int64          `json:"paper_id"`
	Classification Classification `json:"classification"`
	Summary        Summary        `json:"summary"`
}

// Process classifies and summarizes one paper. Categories are attached
// before the summary is written, so a summarization failure can leave a
// categorized but still unprocessed paper; both writes are idempotent and
// a later run completes it.
func (o *Orchestrator) Process(ctx context.Context, paperID int64) (Result, error) {
	done := o.Metrics.Time(metrics.OpProcess)
	res, err := o.process(ctx, paperID)
	done(err)
	return res, err
}

func (o *Orchestrator) process(ctx context.Context, paperID int64) (Result, error) {
	p, err := o.store.GetPaper(ctx, paperID)
	if err != nil {
		return Result{}, err
	}
	res := Result{PaperID: p.ID}

	cls, err := o.classify(ctx, p)
	if err != nil {
		return res, err
	}
	res.Classification = cls

	sum, err := o.summarize(ctx, p)
	if err != nil {
		return res, err
	}
	res.Summary = sum
	return res, nil
}

func (o *Orchestrator) classify(ctx context.Context, p types.Paper) (Classification, error) {
	args := tools.ClassifyArgs{Title: p.Title, Abstract: p.Abstract, ExistingCategories: p.Categories}
	if args.ExistingCategories == nil {
		args.ExistingCategories = []string{}
	}

	var out tools.ClassifyResult
	done := o.Metrics.Time(metrics.OpClassify)
	err := o.classifier.Call(ctx, tools.ToolClassifyPaper, args, &out)
	done(err)
	if err != nil {
		return Classification{}, fmt.Errorf("classifying paper %d: %w", p.ID, err)
	}

	var cls Classification
	var accepted []string
	seen := make(map[string]bool)
	for _, name := range out.Categories {
		n := normalize(name)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		if !o.vocab[n] {
			cls.Rejected = append(cls.Rejected, name)
			continue
		}
		accepted = append(accepted, n)
	}
	if len(cls.Rejected) > 0 {
		o.logger.Warn("dropping categories outside vocabulary", "paper_id", p.ID, "names", cls.Rejected)
	}
	if len(accepted) == 0 {
		return cls, nil
	}

	attached, err := o.store.AttachCategories(ctx, p.ID, accepted)
	if err != nil {
		return cls, fmt.Errorf("attaching categories to paper %d: %w", p.ID, err)
	}
	cls.Categories = accepted
	cls.Created = attached.Created
	return cls, nil
}

// summarize applies the abstract-first policy: a long enough abstract is
// the summary, otherwise the summarization worker writes one.
func (o *Orchestrator) summarize(ctx context.Context, p types.Paper) (Summary, error) {
	if abstract := strings.TrimSpace(p.Abstract); len(abstract) > o.minAbstract {
		if err := o.store.SetSummary(ctx, p.ID, p.Abstract, types.SummaryFromAbstract); err != nil {
			return Summary{}, err
		}
		return Summary{Text: p.Abstract, Source: types.SummaryFromAbstract}, nil
	}
	return o.summarizeLLM(ctx, p.ID)
}

func (o *Orchestrator) summarizeLLM(ctx context.Context, paperID int64) (Summary, error) {
	var out tools.SummaryResult
	done := o.Metrics.Time(metrics.OpSummarize)
	err := o.summarizer.Call(ctx, tools.ToolSummarizeAbstract, tools.PaperArgs{PaperID: tools.PaperRef(paperID)}, &out)
	done(err)
	if err != nil {
		return Summary{}, fmt.Errorf("summarizing paper %d: %w", paperID, err)
	}
	text := strings.TrimSpace(out.Summary)
	if text == "" {
		return Summary{}, apperr.Errorf(apperr.Worker, "summarize", "worker returned an empty summary for paper %d", paperID)
	}
	if err := o.store.SetSummary(ctx, paperID, text, types.SummaryFromLLM); err != nil {
		return Summary{}, err
	}
	return Summary{Text: text, Source: types.SummaryFromLLM}, nil
}

// BatchResult holds counts from a ProcessNew run.
type BatchResult struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`

	// PaperIDs lists the papers processed successfully, in order.
	PaperIDs []int64 `json:"paper_ids"`
}

// Total returns the number of papers attempted.
func (r BatchResult) Total() int {
	return r.Processed + r.Errors
}

// HasFailures reports whether any paper failed.
func (r BatchResult) HasFailures() bool {
	return r.Errors > 0
}

// ProcessNew processes up to limit unprocessed papers, oldest first. A
// failing paper is logged and counted and the batch moves on. The
// returned error is non-nil only when the batch could not be selected or
// ctx was cancelled.
func (o *Orchestrator) ProcessNew(ctx context.Context, limit int) (BatchResult, error) {
	if limit <= 0 {
		limit = o.batchSize
	}
	papers, err := o.store.Unprocessed(ctx, limit)
	if err != nil {
		return BatchResult{}, fmt.Errorf("selecting unprocessed papers: %w", err)
	}

	result := BatchResult{PaperIDs: []int64{}}
	for _, p := range papers {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		res, err := o.Process(ctx, p.ID)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			o.logger.Error("processing paper failed", "paper_id", p.ID, "identifier", p.Identifier, "error", err)
			fmt.Fprintf(o.Progress, "failed    %s: %v\n", p.Identifier, err)
			result.Errors++
			continue
		}

		fmt.Fprintf(o.Progress, "processed %s (%d categories, summary from %s)\n",
			p.Identifier, len(res.Classification.Categories), res.Summary.Source)
		result.Processed++
		result.PaperIDs = append(result.PaperIDs, p.ID)
	}

	o.logger.Info("batch processed", "processed", result.Processed, "errors", result.Errors)
	return result, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
