// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest runs source adapters and saves what they return, recording
// one scrape job per source run.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/pdiddy/paper-search/internal/apperr"
	"github.com/pdiddy/paper-search/internal/metrics"
	"github.com/pdiddy/paper-search/internal/sources"
	"github.com/pdiddy/paper-search/internal/store"
	"github.com/pdiddy/paper-search/pkg/types"
)

// Service ingests papers from the configured sources into a store.
type Service struct {
	store    *store.Store
	adapters map[types.Source]sources.Adapter
	enabled  []types.Source
	defaults sources.Params
	queries  map[types.Source]string
	logger   *slog.Logger

	// Metrics receives per-source scrape timings; nil disables recording.
	Metrics *metrics.Collector

	// Progress receives human-readable progress lines. Defaults to io.Discard.
	Progress io.Writer
}

// New builds a service over the given adapters. cfg.Enabled selects the
// sources ScrapeAll visits; empty means every adapter, in
// types.AllSources order.
func New(st *store.Store, adapters []sources.Adapter, cfg types.SourcesConfig, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:    st,
		adapters: make(map[types.Source]sources.Adapter, len(adapters)),
		defaults: sources.Params{MaxResults: cfg.MaxResults, DaysBack: cfg.DaysBack},
		queries: map[types.Source]string{
			types.SourceArxiv:  cfg.ArxivQuery,
			types.SourcePubMed: cfg.PubMedQuery,
		},
		logger:   logger,
		Progress: io.Discard,
	}
	for _, a := range adapters {
		s.adapters[a.Name()] = a
	}

	if len(cfg.Enabled) == 0 {
		for _, src := range types.AllSources {
			if _, ok := s.adapters[src]; ok {
				s.enabled = append(s.enabled, src)
			}
		}
		return s, nil
	}
	for _, name := range cfg.Enabled {
		src, err := types.ParseSource(name)
		if err != nil {
			return nil, apperr.New(apperr.Fatal, "ingest.config", err)
		}
		if _, ok := s.adapters[src]; !ok {
			return nil, apperr.Errorf(apperr.Fatal, "ingest.config", "source %q is enabled but has no adapter", src)
		}
		s.enabled = append(s.enabled, src)
	}
	return s, nil
}

// NewFromConfig builds the standard arXiv, bioRxiv, and PubMed adapters
// and wraps them in a service.
func NewFromConfig(st *store.Store, cfg types.Config, client *http.Client, logger *slog.Logger) (*Service, error) {
	var adapters []sources.Adapter
	for _, src := range types.AllSources {
		a, err := sources.New(src, cfg, client, logger)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return New(st, adapters, cfg.Sources, logger)
}

// Enabled returns the sources ScrapeAll visits, in order.
func (s *Service) Enabled() []types.Source {
	return append([]types.Source(nil), s.enabled...)
}

// Outcome is the result of scraping one source.
type Outcome struct {
	Source  types.Source `json:"source"`
	Fetched int          `json:"fetched"`
	Saved   int          `json:"saved"`
	JobID   string       `json:"job_id,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// Summary aggregates a ScrapeAll run.
type Summary struct {
	Sources []Outcome `json:"sources"`
	Fetched int       `json:"fetched"`
	Saved   int       `json:"saved"`
	Failed  int       `json:"failed"`
}

// HasFailures reports whether any source failed.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// ScrapeSource fetches from one source and saves new papers. Zero fields
// of p fall back to the configured defaults. The run is recorded as a
// scrape job tagged with the source.
func (s *Service) ScrapeSource(ctx context.Context, src types.Source, p sources.Params) (Outcome, error) {
	adapter, ok := s.adapters[src]
	if !ok {
		return Outcome{Source: src}, apperr.Errorf(apperr.Validation, "ingest.scrape", "unknown source %q", src)
	}
	p = s.params(src, p)

	out := Outcome{Source: src}
	job, err := s.store.RunJob(ctx, types.JobScrape, src, func(ctx context.Context) (any, error) {
		done := s.Metrics.Time(metrics.OpScrape + "_" + string(src))
		records, err := adapter.Fetch(ctx, p)
		done(err)
		if err != nil {
			return nil, err
		}
		out.Fetched = len(records)

		saved, err := s.store.Save(ctx, records)
		out.Saved = saved
		if err != nil {
			return out, err
		}
		return map[string]int{"fetched": out.Fetched, "saved": out.Saved}, nil
	})
	out.JobID = job.ID

	if err != nil {
		out.Error = err.Error()
		s.logger.Error("scrape failed", "source", src, "error", err)
		fmt.Fprintf(s.Progress, "failed  %s: %v\n", src, err)
		return out, err
	}
	s.logger.Info("scrape complete", "source", src, "fetched", out.Fetched, "saved", out.Saved)
	fmt.Fprintf(s.Progress, "%s: fetched %d, saved %d\n", src, out.Fetched, out.Saved)
	return out, nil
}

// ScrapeAll scrapes every enabled source in turn with the configured
// defaults. A failing source is recorded and the remaining sources still
// run. The error is non-nil only when ctx is cancelled.
func (s *Service) ScrapeAll(ctx context.Context) (Summary, error) {
	var sum Summary
	for _, src := range s.enabled {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		out, err := s.ScrapeSource(ctx, src, sources.Params{})
		sum.Sources = append(sum.Sources, out)
		sum.Fetched += out.Fetched
		sum.Saved += out.Saved
		if err != nil {
			sum.Failed++
		}
	}
	return sum, ctx.Err()
}

// AddByIdentifier looks up a single paper by arXiv ID, DOI, or PMID and
// saves it. Withdrawn preprints are refused. It returns the stored paper,
// and whether it was newly inserted.
func (s *Service) AddByIdentifier(ctx context.Context, id string) (types.Paper, bool, error) {
	src, normalized, err := sources.Classify(id)
	if err != nil {
		return types.Paper{}, false, apperr.New(apperr.Validation, "ingest.add", err)
	}
	adapter, ok := s.adapters[src]
	if !ok {
		return types.Paper{}, false, apperr.Errorf(apperr.Validation, "ingest.add", "no adapter for %s identifiers", src)
	}

	rec, err := adapter.Lookup(ctx, normalized)
	if err != nil {
		return types.Paper{}, false, err
	}
	if sources.IsWithdrawn(rec.Title) {
		return types.Paper{}, false, apperr.Errorf(apperr.Validation, "ingest.add", "%s has been withdrawn", rec.ID)
	}

	saved, err := s.store.Save(ctx, []types.Record{rec})
	if err != nil {
		return types.Paper{}, false, err
	}
	p, err := s.store.GetPaperByIdentifier(ctx, rec.ID)
	if err != nil {
		return types.Paper{}, false, err
	}
	return p, saved == 1, nil
}

func (s *Service) params(src types.Source, p sources.Params) sources.Params {
	if p.MaxResults <= 0 {
		p.MaxResults = s.defaults.MaxResults
	}
	if p.DaysBack <= 0 {
		p.DaysBack = s.defaults.DaysBack
	}
	if p.Query == "" {
		p.Query = s.queries[src]
	}
	return p
}
