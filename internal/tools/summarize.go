// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdiddy/paper-search/internal/llm"
	"github.com/pdiddy/paper-search/internal/worker"
	"github.com/pdiddy/paper-search/pkg/types"
)

// PaperLookup loads stored papers by row id.
type PaperLookup interface {
	GetPaper(ctx context.Context, id int64) (types.Paper, error)
}

// PaperRef is a paper row id that decodes from a JSON number or string.
type PaperRef int64

func (r *PaperRef) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid paper_id %s", b)
	}
	*r = PaperRef(n)
	return nil
}

// PaperArgs are the arguments of the single-paper summarization tools.
type PaperArgs struct {
	PaperID PaperRef `json:"paper_id"`
}

// BatchArgs are the batch_summarize arguments.
type BatchArgs struct {
	PaperIDs []PaperRef `json:"paper_ids"`
}

// SummaryResult is returned by summarize_abstract and summarize_detailed.
type SummaryResult struct {
	Summary string `json:"summary"`
}

// TLDRResult is returned by generate_tldr.
type TLDRResult struct {
	TLDR string `json:"tldr"`
}

// KeyPointsResult is returned by extract_key_points.
type KeyPointsResult struct {
	Points []string `json:"points"`
}

// BatchResult maps paper ids to summaries, or to "Error: ..." for papers
// that failed.
type BatchResult struct {
	Summaries map[string]string `json:"summaries"`
}

// SummarizationTools returns the tools served by a summarization worker.
func SummarizationTools(papers PaperLookup, gen llm.Generator) []worker.Tool {
	s := &summarizer{papers: papers, gen: gen}
	return []worker.Tool{
		{
			Name:        ToolSummarizeAbstract,
			Description: "Brief 2-3 sentence summary of a stored paper.",
			Handler: s.paperTool(func(ctx context.Context, p llm.PaperText) (any, error) {
				text, err := llm.Summarize(ctx, s.gen, p)
				return SummaryResult{Summary: text}, err
			}),
		},
		{
			Name:        ToolSummarizeDetailed,
			Description: "Detailed analysis: problem, approach, results, limitations.",
			Handler: s.paperTool(func(ctx context.Context, p llm.PaperText) (any, error) {
				text, err := llm.Detailed(ctx, s.gen, p)
				return SummaryResult{Summary: text}, err
			}),
		},
		{
			Name:        ToolExtractKeyPoints,
			Description: "Key contributions and findings as a list.",
			Handler: s.paperTool(func(ctx context.Context, p llm.PaperText) (any, error) {
				points, err := llm.KeyPoints(ctx, s.gen, p)
				return KeyPointsResult{Points: points}, err
			}),
		},
		{
			Name:        ToolGenerateTLDR,
			Description: "One-sentence summary.",
			Handler: s.paperTool(func(ctx context.Context, p llm.PaperText) (any, error) {
				text, err := llm.TLDR(ctx, s.gen, p)
				return TLDRResult{TLDR: text}, err
			}),
		},
		{
			Name:        ToolBatchSummarize,
			Description: "Summarize several papers; failures are reported per paper.",
			Handler:     s.batch,
		},
	}
}

type summarizer struct {
	papers PaperLookup
	gen    llm.Generator
}

func (s *summarizer) paperTool(fn func(context.Context, llm.PaperText) (any, error)) worker.Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args PaperArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, err
		}
		p, err := s.load(ctx, int64(args.PaperID))
		if err != nil {
			return nil, err
		}
		out, err := fn(ctx, p)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

func (s *summarizer) batch(ctx context.Context, raw json.RawMessage) (any, error) {
	var args BatchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	res := BatchResult{Summaries: make(map[string]string, len(args.PaperIDs))}
	for _, id := range args.PaperIDs {
		key := strconv.FormatInt(int64(id), 10)
		p, err := s.load(ctx, int64(id))
		if err == nil {
			var text string
			if text, err = llm.Summarize(ctx, s.gen, p); err == nil {
				res.Summaries[key] = text
				continue
			}
		}
		res.Summaries[key] = "Error: " + err.Error()
	}
	return res, nil
}

func (s *summarizer) load(ctx context.Context, id int64) (llm.PaperText, error) {
	if id <= 0 {
		return llm.PaperText{}, fmt.Errorf("paper_id is required")
	}
	p, err := s.papers.GetPaper(ctx, id)
	if err != nil {
		return llm.PaperText{}, fmt.Errorf("loading paper %d: %w", id, err)
	}
	return llm.PaperText{Title: p.Title, Authors: p.Authors, Abstract: p.Abstract}, nil
}
