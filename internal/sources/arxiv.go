// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed/atom"

	"github.com/pdiddy/paper-search/internal/apperr"
	"github.com/pdiddy/paper-search/internal/httputil"
	"github.com/pdiddy/paper-search/pkg/types"
)

// arxivAPIBase is the arXiv query endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// arxivDelay is the pause after each successful arXiv request.
var arxivDelay = 340 * time.Millisecond

const (
	arxivPageSize     = 100
	arxivDefaultQuery = "all"
)

// Arxiv fetches recent submissions from the arXiv Atom API.
type Arxiv struct {
	Client    *http.Client
	UserAgent string
	Logger    *slog.Logger

	// DefaultQuery is used when Params.Query is empty.
	DefaultQuery string
}

// Name returns the source tag.
func (a *Arxiv) Name() types.Source { return types.SourceArxiv }

// Fetch pages through submissions sorted by submission date, newest first.
func (a *Arxiv) Fetch(ctx context.Context, p Params) ([]types.Record, error) {
	p = p.withDefaults()
	query := p.Query
	if query == "" {
		query = a.DefaultQuery
	}
	if query == "" {
		query = arxivDefaultQuery
	}

	var records []types.Record
	for start := 0; len(records) < p.MaxResults; start += arxivPageSize {
		size := min(arxivPageSize, p.MaxResults-len(records))

		v := url.Values{}
		v.Set("search_query", query)
		v.Set("start", strconv.Itoa(start))
		v.Set("max_results", strconv.Itoa(size))
		v.Set("sortBy", "submittedDate")
		v.Set("sortOrder", "descending")

		feed, err := a.query(ctx, v)
		if err != nil {
			return records, err
		}

		records = append(records, a.records(feed)...)
		if len(feed.Entries) < size {
			break
		}
	}

	if len(records) > p.MaxResults {
		records = records[:p.MaxResults]
	}
	return records, nil
}

// Lookup fetches a single paper by arXiv ID.
func (a *Arxiv) Lookup(ctx context.Context, id string) (types.Record, error) {
	v := url.Values{}
	v.Set("id_list", id)
	feed, err := a.query(ctx, v)
	if err != nil {
		return types.Record{}, err
	}
	recs := a.records(feed)
	if len(recs) == 0 {
		return types.Record{}, apperr.Errorf(apperr.NotFound, "arxiv.lookup", "arXiv paper %s not found", id)
	}
	return recs[0], nil
}

func (a *Arxiv) query(ctx context.Context, v url.Values) (*atom.Feed, error) {
	reqURL := arxivAPIBase + "?" + v.Encode()

	var feed *atom.Feed
	err := httputil.Retry(ctx, a.Logger, "arxiv", httputil.DefaultAttempts, func(ctx context.Context) error {
		body, err := httputil.Get(ctx, a.Client, reqURL, a.UserAgent)
		if err != nil {
			return err
		}
		fp := &atom.Parser{}
		f, err := fp.Parse(bytes.NewReader(body))
		if err != nil {
			return apperr.New(apperr.Parse, "arxiv.parse", err)
		}
		feed = f
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}

	if err := httputil.Pause(ctx, arxivDelay); err != nil {
		return nil, err
	}
	return feed, nil
}

func (a *Arxiv) records(feed *atom.Feed) []types.Record {
	logger := loggerOrDefault(a.Logger)

	var out []types.Record
	for _, e := range feed.Entries {
		id := extractArxivID(e.ID)
		if id == "" {
			logger.Warn("skipping arXiv entry without an /abs/ id", "entry_id", e.ID)
			continue
		}

		r := types.Record{
			ID:       id,
			Source:   types.SourceArxiv,
			Title:    cleanText(e.Title),
			Abstract: cleanText(e.Summary),
			PDFURL:   arxivPDFLink(e, id),
		}

		names := make([]string, 0, len(e.Authors))
		for _, au := range e.Authors {
			if n := strings.TrimSpace(au.Name); n != "" {
				names = append(names, n)
			}
		}
		r.Authors = strings.Join(names, ", ")

		switch {
		case e.PublishedParsed != nil:
			r.Published = *e.PublishedParsed
		case e.UpdatedParsed != nil:
			r.Published = *e.UpdatedParsed
		}

		out = append(out, r)
	}
	return out
}

// arxivPDFLink returns the entry's PDF link, falling back to the
// conventional arxiv.org/pdf URL.
func arxivPDFLink(e *atom.Entry, id string) string {
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			return l.Href
		}
	}
	return "https://arxiv.org/pdf/" + id
}

// extractArxivID returns everything after "/abs/" in the entry id URL,
// version suffix included ("http://arxiv.org/abs/2301.07041v1" yields
// "2301.07041v1").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(idURL[idx+len(prefix):])
}
