// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/paper-search/internal/apperr"
	"github.com/pdiddy/paper-search/internal/httputil"
	"github.com/pdiddy/paper-search/pkg/types"
)

// biorxivAPIBase is the bioRxiv details endpoint. Declared as a var so
// tests can substitute an httptest server.
var biorxivAPIBase = "https://api.biorxiv.org/details/biorxiv"

// biorxivDelay is the pause after each successful bioRxiv request.
var biorxivDelay = 500 * time.Millisecond

const withdrawnPrefix = "WITHDRAWN:"

// Biorxiv fetches recent preprints from the bioRxiv details API.
type Biorxiv struct {
	Client    *http.Client
	UserAgent string
	Logger    *slog.Logger
}

// Name returns the source tag.
func (b *Biorxiv) Name() types.Source { return types.SourceBiorxiv }

// Fetch walks the [now-DaysBack, now] window with the API cursor until
// MaxResults records are collected. Withdrawn preprints are dropped.
func (b *Biorxiv) Fetch(ctx context.Context, p Params) ([]types.Record, error) {
	p = p.withDefaults()
	logger := loggerOrDefault(b.Logger)

	end := now()
	start := end.AddDate(0, 0, -p.DaysBack)
	window := fmt.Sprintf("%s/%s", start.Format("2006-01-02"), end.Format("2006-01-02"))

	var records []types.Record
	cursor := 0
	for len(records) < p.MaxResults {
		resp, err := b.details(ctx, fmt.Sprintf("%s/%s/%d/json", biorxivAPIBase, window, cursor))
		if err != nil {
			return records, err
		}
		if len(resp.Collection) == 0 {
			break
		}

		for _, entry := range resp.Collection {
			if len(records) >= p.MaxResults {
				break
			}
			if IsWithdrawn(entry.Title) {
				logger.Debug("skipping withdrawn preprint", "doi", entry.DOI)
				continue
			}
			r, ok := entry.record()
			if !ok {
				logger.Warn("skipping bioRxiv entry without a DOI", "title", entry.Title)
				continue
			}
			records = append(records, r)
		}

		cursor += len(resp.Collection)
		if total := resp.total(); total > 0 && cursor >= total {
			break
		}
	}
	return records, nil
}

// Lookup fetches the latest version of a preprint by DOI.
func (b *Biorxiv) Lookup(ctx context.Context, doi string) (types.Record, error) {
	resp, err := b.details(ctx, fmt.Sprintf("%s/%s", biorxivAPIBase, doi))
	if err != nil {
		return types.Record{}, err
	}
	if len(resp.Collection) == 0 {
		return types.Record{}, apperr.Errorf(apperr.NotFound, "biorxiv.lookup", "bioRxiv preprint %s not found", doi)
	}
	r, ok := resp.Collection[len(resp.Collection)-1].record()
	if !ok {
		return types.Record{}, apperr.Errorf(apperr.Parse, "biorxiv.lookup", "bioRxiv entry for %s has no DOI", doi)
	}
	return r, nil
}

func (b *Biorxiv) details(ctx context.Context, reqURL string) (biorxivResponse, error) {
	var out biorxivResponse
	err := httputil.Retry(ctx, b.Logger, "biorxiv", httputil.DefaultAttempts, func(ctx context.Context) error {
		body, err := httputil.Get(ctx, b.Client, reqURL, b.UserAgent)
		if err != nil {
			return err
		}
		var resp biorxivResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return apperr.New(apperr.Parse, "biorxiv.parse", err)
		}
		out = resp
		return nil
	})
	if err != nil {
		return biorxivResponse{}, fmt.Errorf("bioRxiv API request: %w", err)
	}
	if err := httputil.Pause(ctx, biorxivDelay); err != nil {
		return biorxivResponse{}, err
	}
	return out, nil
}

// IsWithdrawn reports whether a title marks a withdrawn preprint. The
// check ignores case and leading whitespace.
func IsWithdrawn(title string) bool {
	t := strings.TrimSpace(title)
	return len(t) >= len(withdrawnPrefix) && strings.EqualFold(t[:len(withdrawnPrefix)], withdrawnPrefix)
}

// bioRxiv details response structures.
type biorxivResponse struct {
	Messages   []biorxivMessage `json:"messages"`
	Collection []biorxivEntry   `json:"collection"`
}

type biorxivMessage struct {
	Status string  `json:"status"`
	Count  flexInt `json:"count"`
	Total  flexInt `json:"total"`
}

func (r biorxivResponse) total() int {
	if len(r.Messages) == 0 {
		return 0
	}
	return int(r.Messages[0].Total)
}

type biorxivEntry struct {
	DOI      string `json:"doi"`
	Title    string `json:"title"`
	Authors  string `json:"authors"`
	Date     string `json:"date"`
	Abstract string `json:"abstract"`
	Version  string `json:"version"`
	Category string `json:"category"`
}

func (e biorxivEntry) record() (types.Record, bool) {
	doi := strings.TrimSpace(e.DOI)
	if doi == "" {
		return types.Record{}, false
	}
	r := types.Record{
		ID:       doi,
		Source:   types.SourceBiorxiv,
		Title:    cleanText(e.Title),
		Authors:  strings.TrimSpace(e.Authors),
		Abstract: cleanText(e.Abstract),
		PDFURL:   fmt.Sprintf("https://www.biorxiv.org/content/%sv1.full.pdf", doi),
	}
	date, _, _ := strings.Cut(e.Date, "T")
	if t, err := time.Parse("2006-01-02", strings.TrimSpace(date)); err == nil {
		r.Published = t
	}
	return r, true
}

// flexInt decodes a JSON number or a numeric string. The bioRxiv API
// reports counts as either.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("decoding count %s: %w", b, err)
	}
	*f = flexInt(n)
	return nil
}
