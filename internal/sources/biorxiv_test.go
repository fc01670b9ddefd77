// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-search/pkg/types"
)

func withBiorxivServer(t *testing.T, h http.HandlerFunc) *Biorxiv {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	oldBase, oldNow := biorxivAPIBase, now
	biorxivAPIBase = ts.URL + "/details/biorxiv"
	now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { biorxivAPIBase, now = oldBase, oldNow })

	return &Biorxiv{Client: ts.Client()}
}

func biorxivPage(total int, entries ...biorxivEntry) []byte {
	resp := map[string]any{
		"messages":   []map[string]any{{"status": "ok", "count": len(entries), "total": strconv.Itoa(total)}},
		"collection": entries,
	}
	b, _ := json.Marshal(resp)
	return b
}

func TestBiorxivFetch_FiltersWithdrawn(t *testing.T) {
	b := withBiorxivServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/details/biorxiv/2024-03-08/2024-03-15/0/json", r.URL.Path)
		w.Write(biorxivPage(4,
			biorxivEntry{DOI: "10.1101/2024.03.01.000001", Title: "Gene regulation in yeast", Authors: "Smith, J.; Doe, A.", Date: "2024-03-01", Abstract: "  An abstract.  "},
			biorxivEntry{DOI: "10.1101/2024.03.02.000002", Title: "WITHDRAWN: Bad data"},
			biorxivEntry{DOI: "10.1101/2024.03.03.000003", Title: "  withdrawn: lowercase marker"},
			biorxivEntry{DOI: "10.1101/2024.03.04.000004", Title: "Protein <i>folding</i> dynamics", Date: "2024-03-04T10:00:00"},
		))
	})

	recs, err := b.Fetch(context.Background(), Params{MaxResults: 10, DaysBack: 7})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "10.1101/2024.03.01.000001", recs[0].ID)
	assert.Equal(t, types.SourceBiorxiv, recs[0].Source)
	assert.Equal(t, "Smith, J.; Doe, A.", recs[0].Authors)
	assert.Equal(t, "An abstract.", recs[0].Abstract)
	assert.Equal(t, "https://www.biorxiv.org/content/10.1101/2024.03.01.000001v1.full.pdf", recs[0].PDFURL)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), recs[0].Published)

	assert.Equal(t, "Protein folding dynamics", recs[1].Title)
	assert.Equal(t, 4, recs[1].Published.Day())
}

func TestBiorxivFetch_FollowsCursorAndStopsAtMax(t *testing.T) {
	var calls int32
	b := withBiorxivServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		switch {
		case strings.HasSuffix(r.URL.Path, "/0/json"):
			w.Write(biorxivPage(5,
				biorxivEntry{DOI: "10.1/a", Title: "A"},
				biorxivEntry{DOI: "10.1/b", Title: "B"},
			))
		case strings.HasSuffix(r.URL.Path, "/2/json"):
			w.Write(biorxivPage(5,
				biorxivEntry{DOI: "10.1/c", Title: "C"},
				biorxivEntry{DOI: "10.1/d", Title: "D"},
			))
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	})

	recs, err := b.Fetch(context.Background(), Params{MaxResults: 3})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "10.1/c", recs[2].ID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestBiorxivFetch_StopsWhenExhausted(t *testing.T) {
	b := withBiorxivServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(biorxivPage(1, biorxivEntry{DOI: "10.1/only", Title: "Only"}))
	})

	recs, err := b.Fetch(context.Background(), Params{MaxResults: 10})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestBiorxivFetch_EmptyCollection(t *testing.T) {
	b := withBiorxivServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"messages":[{"status":"no posts found"}],"collection":[]}`))
	})

	recs, err := b.Fetch(context.Background(), Params{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestBiorxivLookup_LatestVersion(t *testing.T) {
	b := withBiorxivServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/details/biorxiv/10.1101/2024.01.15.575123", r.URL.Path)
		w.Write(biorxivPage(2,
			biorxivEntry{DOI: "10.1101/2024.01.15.575123", Title: "Draft title", Version: "1"},
			biorxivEntry{DOI: "10.1101/2024.01.15.575123", Title: "Final title", Version: "2"},
		))
	})

	rec, err := b.Lookup(context.Background(), "10.1101/2024.01.15.575123")
	require.NoError(t, err)
	assert.Equal(t, "Final title", rec.Title)
}

func TestIsWithdrawn(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"WITHDRAWN: duplicate submission", true},
		{"withdrawn: lower case", true},
		{"  Withdrawn:leading space", true},
		{"Withdrawal of a drug: a study", false},
		{"A study of WITHDRAWN: papers", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, IsWithdrawn(tt.title))
		})
	}
}

func TestFlexInt(t *testing.T) {
	var m biorxivMessage
	require.NoError(t, json.Unmarshal([]byte(`{"count":100,"total":"2950"}`), &m))
	assert.Equal(t, flexInt(100), m.Count)
	assert.Equal(t, flexInt(2950), m.Total)
}
