// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources fetches paper metadata from external APIs and normalizes
// it into types.Record values. Each API has its own Adapter; all adapters
// retry a failed request as a whole and pause after each successful call
// to respect the source's rate limit.
package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pdiddy/paper-search/pkg/types"
)

// Adapter fetches records from a single source.
type Adapter interface {
	Name() types.Source

	// Fetch returns up to p.MaxResults records, most recent first.
	Fetch(ctx context.Context, p Params) ([]types.Record, error)

	// Lookup fetches one record by its source identifier.
	Lookup(ctx context.Context, id string) (types.Record, error)
}

// Params narrows a fetch. Adapters ignore fields that do not apply to them.
type Params struct {
	// MaxResults caps the number of records returned (default 10).
	MaxResults int

	// DaysBack is the posting window for date-ranged sources (default 7).
	DaysBack int

	// Query is the search term for query-based sources.
	Query string
}

const (
	defaultMaxResults = 10
	defaultDaysBack   = 7
)

func (p Params) withDefaults() Params {
	if p.MaxResults <= 0 {
		p.MaxResults = defaultMaxResults
	}
	if p.DaysBack <= 0 {
		p.DaysBack = defaultDaysBack
	}
	return p
}

// now is the clock used for date windows. Tests replace it.
var now = time.Now

// New builds the adapter for src using the shared HTTP settings.
func New(src types.Source, cfg types.Config, client *http.Client, logger *slog.Logger) (Adapter, error) {
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTP.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("source", string(src))

	switch src {
	case types.SourceArxiv:
		return &Arxiv{Client: client, UserAgent: cfg.HTTP.UserAgent, Logger: logger, DefaultQuery: cfg.Sources.ArxivQuery}, nil
	case types.SourceBiorxiv:
		return &Biorxiv{Client: client, UserAgent: cfg.HTTP.UserAgent, Logger: logger}, nil
	case types.SourcePubMed:
		return &PubMed{Client: client, UserAgent: cfg.HTTP.UserAgent, Logger: logger,
			DefaultQuery: cfg.Sources.PubMedQuery, APIKey: cfg.Sources.NCBIAPIKey}, nil
	}
	return nil, fmt.Errorf("no adapter for source %q", src)
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
