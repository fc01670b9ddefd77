// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"context"
	"fmt"

	"github.com/pdiddy/paper-search/internal/metrics"
	"github.com/pdiddy/paper-search/internal/tools"
	"github.com/pdiddy/paper-search/pkg/types"
)

// Summarize returns the paper's summary. A stored summary is returned
// as-is unless forceLLM is set, in which case the summarization worker
// writes a fresh one and it replaces the stored text.
func (o *Orchestrator) Summarize(ctx context.Context, paperID int64, forceLLM bool) (Summary, error) {
	p, err := o.store.GetPaper(ctx, paperID)
	if err != nil {
		return Summary{}, err
	}
	if p.Processed() && !forceLLM {
		src := p.SummarySource
		if src == "" {
			src = types.SummaryFromAbstract
		}
		return Summary{Text: p.Summary, Source: src}, nil
	}
	return o.summarizeLLM(ctx, p.ID)
}

// TLDR asks the summarization worker for a one-sentence summary.
func (o *Orchestrator) TLDR(ctx context.Context, paperID int64) (string, error) {
	var out tools.TLDRResult
	if err := o.callSummarizer(ctx, paperID, tools.ToolGenerateTLDR, &out); err != nil {
		return "", err
	}
	return out.TLDR, nil
}

// KeyPoints asks the summarization worker for the paper's key findings.
func (o *Orchestrator) KeyPoints(ctx context.Context, paperID int64) ([]string, error) {
	var out tools.KeyPointsResult
	if err := o.callSummarizer(ctx, paperID, tools.ToolExtractKeyPoints, &out); err != nil {
		return nil, err
	}
	return out.Points, nil
}

// DetailedAnalysis asks the summarization worker for a longer structured
// analysis. The result is not stored.
func (o *Orchestrator) DetailedAnalysis(ctx context.Context, paperID int64) (string, error) {
	var out tools.SummaryResult
	if err := o.callSummarizer(ctx, paperID, tools.ToolSummarizeDetailed, &out); err != nil {
		return "", err
	}
	return out.Summary, nil
}

// callSummarizer checks the paper exists so a missing id is reported as
// NotFound rather than as a worker failure.
func (o *Orchestrator) callSummarizer(ctx context.Context, paperID int64, tool string, out any) error {
	if _, err := o.store.GetPaper(ctx, paperID); err != nil {
		return err
	}
	done := o.Metrics.Time(metrics.OpSummarize)
	err := o.summarizer.Call(ctx, tool, tools.PaperArgs{PaperID: tools.PaperRef(paperID)}, out)
	done(err)
	if err != nil {
		return fmt.Errorf("%s for paper %d: %w", tool, paperID, err)
	}
	return nil
}
