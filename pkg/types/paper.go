// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paper-search pipeline:
// normalized source records, stored papers and categories, job history,
// digest reports, and configuration.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies the external API a paper was ingested from.
type Source string

const (
	SourceArxiv   Source = "arxiv"
	SourceBiorxiv Source = "biorxiv"
	SourcePubMed  Source = "pubmed"

	// SourceManual marks papers added by identifier through the CLI.
	SourceManual Source = "manual"
)

// AllSources lists the sources that support batch ingestion, in the order
// a full scrape visits them.
var AllSources = []Source{SourceArxiv, SourceBiorxiv, SourcePubMed}

// ParseSource validates a source name. Matching is case-insensitive.
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceArxiv:
		return SourceArxiv, nil
	case SourceBiorxiv:
		return SourceBiorxiv, nil
	case SourcePubMed:
		return SourcePubMed, nil
	case SourceManual:
		return SourceManual, nil
	}
	return "", fmt.Errorf("unknown source %q (want arxiv, biorxiv, or pubmed)", s)
}

// ProcessingState tracks whether a paper has been summarized.
type ProcessingState string

const (
	StateUnprocessed ProcessingState = "unprocessed"
	StateProcessed   ProcessingState = "processed"
)

// SummarySource records where a paper's summary came from.
type SummarySource string

const (
	// SummaryFromAbstract means the abstract was long enough to serve as
	// the summary and no worker was called.
	SummaryFromAbstract SummarySource = "abstract"

	// SummaryFromLLM means the summarization worker produced the text.
	SummaryFromLLM SummarySource = "llm"
)

// Record is the normalized output of a source adapter, before persistence.
type Record struct {
	// ID is the external identifier: arXiv ID, DOI, or "PMID:<n>".
	ID string `json:"id" yaml:"id"`

	// Source is the adapter that produced the record.
	Source Source `json:"source" yaml:"source"`

	// Title is the paper title with inline markup removed.
	Title string `json:"title" yaml:"title"`

	// Authors is a comma-joined author list as reported by the source.
	Authors string `json:"authors" yaml:"authors"`

	// Abstract is the paper abstract, possibly empty.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Published is the publication or posting date.
	Published time.Time `json:"published" yaml:"published"`

	// PDFURL points at the full text or landing page.
	PDFURL string `json:"pdf_url" yaml:"pdf_url"`
}

// Paper is a persisted paper row with its category associations.
type Paper struct {
	// ID is the store row id.
	ID int64 `json:"id" yaml:"id"`

	// Identifier is the unique external identifier (see Record.ID).
	Identifier string `json:"identifier" yaml:"identifier"`

	// Source is the adapter that ingested the paper.
	Source Source `json:"source" yaml:"source"`

	// Title is the paper title.
	Title string `json:"title" yaml:"title"`

	// Authors is a comma-joined author list.
	Authors string `json:"authors" yaml:"authors"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Summary is empty until the paper has been processed.
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`

	// SummarySource says whether Summary came from the abstract or a worker.
	SummarySource SummarySource `json:"summary_source,omitempty" yaml:"summary_source,omitempty"`

	// Status is the explicit processing state, kept in step with Summary.
	Status ProcessingState `json:"status" yaml:"status"`

	// Published is the publication date.
	Published time.Time `json:"published" yaml:"published"`

	// PDFURL points at the full text or landing page.
	PDFURL string `json:"pdf_url" yaml:"pdf_url"`

	// CreatedAt is the insertion time.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// Categories lists the names of associated categories.
	Categories []string `json:"categories" yaml:"categories"`
}

// Processed reports whether the paper has a non-empty summary.
func (p Paper) Processed() bool {
	return strings.TrimSpace(p.Summary) != ""
}

// Category is a named topic label attached to papers.
type Category struct {
	ID          int64  `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// PaperCount is the number of papers attached to the category.
	PaperCount int `json:"paper_count" yaml:"paper_count"`
}

// PaperFilter narrows a paper listing. Zero values disable a criterion.
type PaperFilter struct {
	// Categories requires every listed category to be attached (AND).
	Categories []string

	// Source restricts to one ingestion source.
	Source Source

	// From and To bound the published date, inclusive.
	From time.Time
	To   time.Time

	// CreatedSince restricts to papers inserted at or after this time.
	CreatedSince time.Time

	// UnprocessedOnly restricts to papers without a summary.
	UnprocessedOnly bool

	Limit  int
	Offset int
}

// PaperStats summarizes the store contents.
type PaperStats struct {
	Total       int `json:"total_papers"`
	Processed   int `json:"processed_papers"`
	Unprocessed int `json:"unprocessed_papers"`

	// ThisWeek counts papers inserted in the last seven days.
	ThisWeek int `json:"papers_this_week"`

	// ProcessingRate is Processed/Total as a percentage.
	ProcessingRate float64 `json:"processing_rate"`
}
