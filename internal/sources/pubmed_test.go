// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-search/pkg/types"
)

func withPubMedServer(t *testing.T, h http.HandlerFunc) *PubMed {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	old := pubmedAPIBase
	pubmedAPIBase = ts.URL
	t.Cleanup(func() { pubmedAPIBase = old })
	return &PubMed{Client: ts.Client()}
}

func articleXML(pmid string) string {
	return fmt.Sprintf(`<PubmedArticle><MedlineCitation><PMID Version="1">%s</PMID><Article>
<Journal><JournalIssue><PubDate><Year>2023</Year><Month>Mar</Month><Day>5</Day></PubDate></JournalIssue></Journal>
<ArticleTitle>Article %s</ArticleTitle>
<Abstract><AbstractText>Abstract for %s.</AbstractText></Abstract>
<AuthorList><Author><LastName>Curie</LastName><ForeName>Marie</ForeName></Author></AuthorList>
</Article></MedlineCitation></PubmedArticle>`, pmid, pmid, pmid)
}

func TestPubMedFetch_ChunksAndIsolatesFailures(t *testing.T) {
	ids := make([]string, 250)
	for i := range ids {
		ids[i] = strconv.Itoa(1000 + i)
	}

	var mu sync.Mutex
	chunks := map[string]int{}
	efetchCalls := 0

	p := withPubMedServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch r.URL.Path {
		case "/esearch.fcgi":
			assert.Equal(t, "pubmed", q.Get("db"))
			assert.Equal(t, "pub_date", q.Get("sort"))
			assert.Equal(t, "json", q.Get("retmode"))
			assert.Equal(t, "250", q.Get("retmax"))
			json.NewEncoder(w).Encode(map[string]any{"esearchresult": map[string]any{"idlist": ids}})
		case "/efetch.fcgi":
			chunk := strings.Split(q.Get("id"), ",")
			assert.LessOrEqual(t, len(chunk), 100)
			mu.Lock()
			chunks[chunk[0]]++
			efetchCalls++
			mu.Unlock()

			// The second chunk always fails.
			if chunk[0] == "1100" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			var b strings.Builder
			b.WriteString("<PubmedArticleSet>")
			for _, id := range chunk {
				b.WriteString(articleXML(id))
			}
			b.WriteString("</PubmedArticleSet>")
			fmt.Fprint(w, b.String())
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	recs, err := p.Fetch(context.Background(), Params{MaxResults: 250, Query: "cancer"})
	require.NoError(t, err)

	assert.Len(t, chunks, 3, "250 ids should be fetched in three chunks")
	assert.Equal(t, 3, efetchCalls, "each chunk is requested once, failed or not")
	assert.Equal(t, 1, chunks["1100"], "a failed chunk is not retried")
	assert.Len(t, recs, 150)
	assert.Equal(t, "PMID:1000", recs[0].ID)
	assert.Equal(t, "PMID:1200", recs[100].ID)
	assert.Equal(t, types.SourcePubMed, recs[0].Source)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/1000/", recs[0].PDFURL)
	assert.Equal(t, "Marie Curie", recs[0].Authors)
	assert.Equal(t, time.Date(2023, 3, 5, 0, 0, 0, 0, time.UTC), recs[0].Published)
}

func TestPubMedFetch_NoResults(t *testing.T) {
	p := withPubMedServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/esearch.fcgi" {
			t.Errorf("efetch should not be called, got %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"esearchresult":{"idlist":[]}}`)
	})

	recs, err := p.Fetch(context.Background(), Params{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestPubMedFetch_DefaultQueryAndKey(t *testing.T) {
	p := withPubMedServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cancer OR diabetes", r.URL.Query().Get("term"))
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		fmt.Fprint(w, `{"esearchresult":{"idlist":[]}}`)
	})
	p.APIKey = "secret"

	_, err := p.Fetch(context.Background(), Params{})
	require.NoError(t, err)
}

func TestPubMedLookup(t *testing.T) {
	p := withPubMedServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/efetch.fcgi", r.URL.Path)
		assert.Equal(t, "31452104", r.URL.Query().Get("id"))
		fmt.Fprint(w, "<PubmedArticleSet>"+articleXML("31452104")+"</PubmedArticleSet>")
	})

	rec, err := p.Lookup(context.Background(), "PMID:31452104")
	require.NoError(t, err)
	assert.Equal(t, "PMID:31452104", rec.ID)
}

func TestPubMedArticle_Fallbacks(t *testing.T) {
	doc := `<PubmedArticleSet><PubmedArticle><MedlineCitation><PMID>42</PMID><Article>
<Journal><JournalIssue><PubDate><MedlineDate>2019 Spring</MedlineDate></PubDate></JournalIssue></Journal>
<AuthorList>
  <Author><LastName>Solo</LastName></Author>
  <Author><CollectiveName>The Consortium</CollectiveName></Author>
</AuthorList>
</Article></MedlineCitation></PubmedArticle></PubmedArticleSet>`

	var set pubmedArticleSet
	require.NoError(t, xml.Unmarshal([]byte(doc), &set))
	require.Len(t, set.Articles, 1)

	rec, ok := set.Articles[0].record()
	require.True(t, ok)
	assert.Equal(t, "No title", rec.Title)
	assert.Equal(t, "No abstract available", rec.Abstract)
	assert.Equal(t, "Unknown", rec.Authors)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), rec.Published)
}

func TestPubMedArticle_MarkupAndSections(t *testing.T) {
	doc := `<PubmedArticleSet><PubmedArticle><MedlineCitation><PMID>7</PMID><Article>
<ArticleTitle>Role of <i>TP53</i> in tumor&amp;suppression</ArticleTitle>
<Abstract>
  <AbstractText Label="BACKGROUND">First part.</AbstractText>
  <AbstractText Label="RESULTS">Second <sup>2</sup> part.</AbstractText>
</Abstract>
</Article></MedlineCitation></PubmedArticle></PubmedArticleSet>`

	var set pubmedArticleSet
	require.NoError(t, xml.Unmarshal([]byte(doc), &set))
	rec, ok := set.Articles[0].record()
	require.True(t, ok)
	assert.Equal(t, "Role of TP53 in tumor&suppression", rec.Title)
	assert.Equal(t, "First part.\n\nSecond 2 part.", rec.Abstract)
}

func TestPubMedArticle_MissingPMID(t *testing.T) {
	_, ok := pubmedArticle{}.record()
	assert.False(t, ok)
}

func TestNormalizeMonth(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Mar", "03"},
		{"mar", "03"},
		{"Sept", "09"},
		{"Dec", "12"},
		{"3", "03"},
		{"11", "11"},
		{"13", "01"},
		{"", "01"},
		{"Spring", "01"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeMonth(tt.in))
		})
	}
}

func TestPubMedDate(t *testing.T) {
	tests := []struct {
		name string
		in   pubmedDate
		want time.Time
	}{
		{"full", pubmedDate{"2022", "Jul", "14"}, time.Date(2022, 7, 14, 0, 0, 0, 0, time.UTC)},
		{"numeric month", pubmedDate{"2022", "7", ""}, time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC)},
		{"year only", pubmedDate{Year: "2021"}, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"empty", pubmedDate{}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"day out of range", pubmedDate{"2023", "Feb", "30"}, time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.time())
		})
	}
}
