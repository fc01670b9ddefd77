// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/paper-search/internal/apperr"
	"github.com/pdiddy/paper-search/internal/httputil"
	"github.com/pdiddy/paper-search/pkg/types"
)

// pubmedAPIBase is the NCBI E-utilities root. Declared as a var so tests
// can substitute an httptest server.
var pubmedAPIBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// pubmedDelay is the pause after esearch and after each efetch chunk,
// keeping under the anonymous limit of three requests per second.
var pubmedDelay = 340 * time.Millisecond

const (
	pubmedChunkSize    = 100
	pubmedDefaultQuery = "cancer OR diabetes"

	pubmedNoTitle    = "No title"
	pubmedNoAbstract = "No abstract available"
	pubmedNoAuthors  = "Unknown"
)

// PubMed fetches article metadata through esearch (IDs) and efetch (XML).
type PubMed struct {
	Client    *http.Client
	UserAgent string
	Logger    *slog.Logger

	// DefaultQuery is used when Params.Query is empty.
	DefaultQuery string

	// APIKey is sent as api_key when set.
	APIKey string
}

// Name returns the source tag.
func (p *PubMed) Name() types.Source { return types.SourcePubMed }

// Fetch searches for the newest matching IDs and fetches their records in
// chunks of at most 100, one efetch request per chunk. A failed chunk is
// logged and skipped without a retry; the other chunks still contribute
// records.
func (p *PubMed) Fetch(ctx context.Context, params Params) ([]types.Record, error) {
	params = params.withDefaults()
	logger := loggerOrDefault(p.Logger)

	query := params.Query
	if query == "" {
		query = p.DefaultQuery
	}
	if query == "" {
		query = pubmedDefaultQuery
	}

	ids, err := p.search(ctx, query, params.MaxResults)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var records []types.Record
	for i := 0; i < len(ids); i += pubmedChunkSize {
		chunk := ids[i:min(i+pubmedChunkSize, len(ids))]
		recs, err := p.fetch(ctx, chunk, 1)
		if err != nil {
			if ctx.Err() != nil {
				return records, ctx.Err()
			}
			logger.Warn("skipping PubMed fetch chunk", "offset", i, "ids", len(chunk), "error", err)
			continue
		}
		records = append(records, recs...)
	}
	return records, nil
}

// Lookup fetches one article by "PMID:<n>" or bare PMID.
func (p *PubMed) Lookup(ctx context.Context, id string) (types.Record, error) {
	pmid := strings.TrimSpace(strings.TrimPrefix(id, "PMID:"))
	recs, err := p.fetch(ctx, []string{pmid}, httputil.DefaultAttempts)
	if err != nil {
		return types.Record{}, err
	}
	if len(recs) == 0 {
		return types.Record{}, apperr.Errorf(apperr.NotFound, "pubmed.lookup", "PubMed article %s not found", pmid)
	}
	return recs[0], nil
}

func (p *PubMed) search(ctx context.Context, query string, max int) ([]string, error) {
	v := url.Values{}
	v.Set("db", "pubmed")
	v.Set("term", query)
	v.Set("retmax", strconv.Itoa(max))
	v.Set("sort", "pub_date")
	v.Set("retmode", "json")
	p.addKey(v)
	reqURL := pubmedAPIBase + "/esearch.fcgi?" + v.Encode()

	var ids []string
	err := httputil.Retry(ctx, p.Logger, "pubmed.esearch", httputil.DefaultAttempts, func(ctx context.Context) error {
		body, err := httputil.Get(ctx, p.Client, reqURL, p.UserAgent)
		if err != nil {
			return err
		}
		var resp esearchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return apperr.New(apperr.Parse, "pubmed.esearch", err)
		}
		ids = resp.Result.IDList
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("PubMed search: %w", err)
	}
	if err := httputil.Pause(ctx, pubmedDelay); err != nil {
		return nil, err
	}
	return ids, nil
}

// fetch requests ids from efetch, making up to attempts requests.
func (p *PubMed) fetch(ctx context.Context, ids []string, attempts int) ([]types.Record, error) {
	v := url.Values{}
	v.Set("db", "pubmed")
	v.Set("id", strings.Join(ids, ","))
	v.Set("retmode", "xml")
	p.addKey(v)
	reqURL := pubmedAPIBase + "/efetch.fcgi?" + v.Encode()

	var set pubmedArticleSet
	err := httputil.Retry(ctx, p.Logger, "pubmed.efetch", attempts, func(ctx context.Context) error {
		body, err := httputil.Get(ctx, p.Client, reqURL, p.UserAgent)
		if err != nil {
			return err
		}
		var s pubmedArticleSet
		if err := xml.Unmarshal(body, &s); err != nil {
			return apperr.New(apperr.Parse, "pubmed.efetch", err)
		}
		set = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("PubMed fetch: %w", err)
	}
	if err := httputil.Pause(ctx, pubmedDelay); err != nil {
		return nil, err
	}

	logger := loggerOrDefault(p.Logger)
	records := make([]types.Record, 0, len(set.Articles))
	for _, a := range set.Articles {
		r, ok := a.record()
		if !ok {
			logger.Warn("skipping PubMed article without a PMID")
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

func (p *PubMed) addKey(v url.Values) {
	if p.APIKey != "" {
		v.Set("api_key", p.APIKey)
	}
}

// esearch JSON response.
type esearchResponse struct {
	Result struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// efetch XML structures. Titles and abstract sections are captured as
// inner XML so inline markup can be flattened to text.
type pubmedArticleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	PMID     string         `xml:"MedlineCitation>PMID"`
	Title    innerText      `xml:"MedlineCitation>Article>ArticleTitle"`
	Abstract []innerText    `xml:"MedlineCitation>Article>Abstract>AbstractText"`
	Authors  []pubmedAuthor `xml:"MedlineCitation>Article>AuthorList>Author"`
	PubDate  pubmedDate     `xml:"MedlineCitation>Article>Journal>JournalIssue>PubDate"`
}

type innerText struct {
	Inner string `xml:",innerxml"`
}

type pubmedAuthor struct {
	LastName string `xml:"LastName"`
	ForeName string `xml:"ForeName"`
}

type pubmedDate struct {
	Year  string `xml:"Year"`
	Month string `xml:"Month"`
	Day   string `xml:"Day"`
}

func (a pubmedArticle) record() (types.Record, bool) {
	pmid := strings.TrimSpace(a.PMID)
	if pmid == "" {
		return types.Record{}, false
	}

	title := cleanText(a.Title.Inner)
	if title == "" {
		title = pubmedNoTitle
	}

	var sections []string
	for _, s := range a.Abstract {
		if t := cleanText(s.Inner); t != "" {
			sections = append(sections, t)
		}
	}
	abstract := strings.Join(sections, "\n\n")
	if abstract == "" {
		abstract = pubmedNoAbstract
	}

	return types.Record{
		ID:        "PMID:" + pmid,
		Source:    types.SourcePubMed,
		Title:     title,
		Authors:   joinAuthors(a.Authors),
		Abstract:  abstract,
		Published: a.PubDate.time(),
		PDFURL:    fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", pmid),
	}, true
}

// joinAuthors builds "ForeName LastName" pairs. Authors missing either
// part (collective names, initials-only entries) are left out.
func joinAuthors(authors []pubmedAuthor) string {
	var names []string
	for _, au := range authors {
		fore, last := strings.TrimSpace(au.ForeName), strings.TrimSpace(au.LastName)
		if fore == "" || last == "" {
			continue
		}
		names = append(names, fore+" "+last)
	}
	if len(names) == 0 {
		return pubmedNoAuthors
	}
	return strings.Join(names, ", ")
}

var monthAbbrev = map[string]string{
	"jan": "01", "feb": "02", "mar": "03", "apr": "04", "may": "05", "jun": "06",
	"jul": "07", "aug": "08", "sep": "09", "oct": "10", "nov": "11", "dec": "12",
}

// time assembles the publication date. Missing parts default to
// 2024, January, and the 1st.
func (d pubmedDate) time() time.Time {
	year := strings.TrimSpace(d.Year)
	if _, err := strconv.Atoi(year); err != nil || len(year) != 4 {
		year = "2024"
	}
	month := normalizeMonth(d.Month)
	day := "01"
	if n, err := strconv.Atoi(strings.TrimSpace(d.Day)); err == nil && n >= 1 && n <= 31 {
		day = fmt.Sprintf("%02d", n)
	}

	if t, err := time.Parse("2006-01-02", year+"-"+month+"-"+day); err == nil {
		return t
	}
	// Day out of range for the month.
	t, _ := time.Parse("2006-01-02", year+"-"+month+"-01")
	return t
}

// normalizeMonth maps "Mar" to "03" and "3" to "03". Anything else is "01".
func normalizeMonth(m string) string {
	m = strings.TrimSpace(m)
	if m == "" {
		return "01"
	}
	if n, err := strconv.Atoi(m); err == nil {
		if n >= 1 && n <= 12 {
			return fmt.Sprintf("%02d", n)
		}
		return "01"
	}
	if len(m) >= 3 {
		if mm, ok := monthAbbrev[strings.ToLower(m[:3])]; ok {
			return mm
		}
	}
	return "01"
}
