// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-search/internal/apperr"
	"github.com/pdiddy/paper-search/pkg/types"
)

// --- test helpers ---

func testSetup(t *testing.T) *Store {
	t.Helper()
	s, err := Open(types.DatabaseConfig{Path: filepath.Join(t.TempDir(), "db", "papers.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func record(id string) types.Record {
	return types.Record{
		ID:        id,
		Source:    types.SourceArxiv,
		Title:     "Title " + id,
		Authors:   "Ada Lovelace, Alan Turing",
		Abstract:  "Abstract of " + id,
		Published: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		PDFURL:    "https://arxiv.org/pdf/" + id,
	}
}

func mustSave(t *testing.T, s *Store, recs ...types.Record) {
	t.Helper()
	n, err := s.Save(context.Background(), recs)
	require.NoError(t, err)
	require.Equal(t, len(recs), n)
}

func mustGet(t *testing.T, s *Store, identifier string) types.Paper {
	t.Helper()
	p, err := s.GetPaperByIdentifier(context.Background(), identifier)
	require.NoError(t, err)
	return p
}

// --- Save ---

func TestSave_IdempotentReingest(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()
	batch := []types.Record{record("2401.00001v1"), record("2401.00002v1"), record("2401.00003v1")}

	n, err := s.Save(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.Save(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	total, err := s.CountPapers(ctx, types.PaperFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func recordBatch(n int) []types.Record {
	recs := make([]types.Record, n)
	for i := range recs {
		recs[i] = record(fmt.Sprintf("2401.%05dv1", i))
	}
	return recs
}

func TestSave_ConcurrentStoresSameFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "papers.db")
	a, err := Open(types.DatabaseConfig{Path: path}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	b, err := Open(types.DatabaseConfig{Path: path}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	batch := recordBatch(300)
	var wg sync.WaitGroup
	saved := make([]int, 2)
	errs := make([]error, 2)
	for i, st := range []*Store{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			saved[i], errs[i] = st.Save(context.Background(), batch)
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 300, saved[0]+saved[1], "each record is inserted by exactly one writer")

	total, err := a.CountPapers(context.Background(), types.PaperFilter{})
	require.NoError(t, err)
	assert.Equal(t, 300, total)
}

func TestSave_ConcurrentWritersOneStore(t *testing.T) {
	s := testSetup(t)
	batch := recordBatch(200)

	var wg sync.WaitGroup
	saved := make([]int, 4)
	errs := make([]error, 4)
	for i := range saved {
		wg.Add(1)
		go func() {
			defer wg.Done()
			saved[i], errs[i] = s.Save(context.Background(), batch)
		}()
	}
	wg.Wait()

	sum := 0
	for i := range saved {
		require.NoError(t, errs[i])
		sum += saved[i]
	}
	assert.Equal(t, 200, sum)
}

func TestAttachCategories_ConcurrentWriters(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()
	batch := recordBatch(8)
	mustSave(t, s, batch...)

	var wg sync.WaitGroup
	errs := make([]error, len(batch))
	for i, r := range batch {
		p := mustGet(t, s, r.ID)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.AttachCategories(ctx, p.ID, []string{"nlp", "security"})
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	for _, c := range cats {
		assert.Equal(t, len(batch), c.PaperCount)
	}
}

func TestSave_ExistingRowNotUpdated(t *testing.T) {
	s := testSetup(t)
	mustSave(t, s, record("10.1101/x"))

	changed := record("10.1101/x")
	changed.Title = "Changed title"
	n, err := s.Save(context.Background(), []types.Record{changed})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Equal(t, "Title 10.1101/x", mustGet(t, s, "10.1101/x").Title)
}

func TestSave_DuplicateWithinBatch(t *testing.T) {
	s := testSetup(t)
	n, err := s.Save(context.Background(), []types.Record{record("PMID:1"), record("PMID:1")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSave_SkipsEmptyIdentifier(t *testing.T) {
	s := testSetup(t)
	n, err := s.Save(context.Background(), []types.Record{record(""), record("  "), record("PMID:2")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSave_NewPaperIsUnprocessed(t *testing.T) {
	s := testSetup(t)
	mustSave(t, s, record("2401.00001v1"))

	p := mustGet(t, s, "2401.00001v1")
	assert.Equal(t, types.StateUnprocessed, p.Status)
	assert.False(t, p.Processed())
	assert.Equal(t, types.SourceArxiv, p.Source)
	assert.Equal(t, "Ada Lovelace, Alan Turing", p.Authors)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), p.Published)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Empty(t, p.Categories)
}

func TestIsUniqueViolation(t *testing.T) {
	s := testSetup(t)
	mustSave(t, s, record("dup"))
	_, err := s.db.Exec(`INSERT INTO papers (identifier, source, title, created_at) VALUES ('dup', 'arxiv', 't', 'x')`)
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))
	assert.False(t, isUniqueViolation(fmt.Errorf("other")))
}

// --- Get / SetSummary / Delete ---

func TestGetPaper_NotFound(t *testing.T) {
	s := testSetup(t)
	_, err := s.GetPaper(context.Background(), 999)
	assert.True(t, apperr.Is(err, apperr.NotFound))

	_, err = s.GetPaperByIdentifier(context.Background(), "nope")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestSetSummary(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()
	mustSave(t, s, record("a"))
	p := mustGet(t, s, "a")

	require.NoError(t, s.SetSummary(ctx, p.ID, "A concise summary.", types.SummaryFromLLM))

	got, err := s.GetPaper(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "A concise summary.", got.Summary)
	assert.Equal(t, types.SummaryFromLLM, got.SummarySource)
	assert.Equal(t, types.StateProcessed, got.Status)
	assert.True(t, got.Processed())
}

func TestSetSummary_Rejects(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()
	mustSave(t, s, record("a"))
	p := mustGet(t, s, "a")

	err := s.SetSummary(ctx, p.ID, "   ", types.SummaryFromLLM)
	assert.True(t, apperr.Is(err, apperr.Validation))

	err = s.SetSummary(ctx, 12345, "text", types.SummaryFromLLM)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestDeletePaper_CascadesCategories(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()
	mustSave(t, s, record("a"))
	p := mustGet(t, s, "a")
	_, err := s.AttachCategories(ctx, p.ID, []string{"nlp"})
	require.NoError(t, err)

	require.NoError(t, s.DeletePaper(ctx, p.ID))
	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, 0, cats[0].PaperCount)

	assert.True(t, apperr.Is(s.DeletePaper(ctx, p.ID), apperr.NotFound))
}

// --- Unprocessed ---

func TestUnprocessed_BlankSummaryCounts(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	old := nowFunc
	t.Cleanup(func() { nowFunc = old })
	for i, id := range []string{"a", "b", "c", "d"} {
		nowFunc = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		mustSave(t, s, record(id))
	}

	require.NoError(t, s.SetSummary(ctx, mustGet(t, s, "b").ID, "done", types.SummaryFromAbstract))
	_, err := s.db.Exec(`UPDATE papers SET summary = '   ' WHERE identifier = 'c'`)
	require.NoError(t, err)

	papers, err := s.Unprocessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, papers, 3)
	assert.Equal(t, "a", papers[0].Identifier)
	assert.Equal(t, "c", papers[1].Identifier)
	assert.Equal(t, types.StateUnprocessed, papers[1].Status)
	assert.Equal(t, "d", papers[2].Identifier)

	limited, err := s.Unprocessed(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

// --- Categories ---

func TestAttachCategories_Idempotent(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()
	mustSave(t, s, record("a"), record("b"))
	a, b := mustGet(t, s, "a"), mustGet(t, s, "b")

	res, err := s.AttachCategories(ctx, a.ID, []string{"nlp", "machine learning", "nlp", " "})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"nlp", "machine learning"}, res.Created)
	assert.ElementsMatch(t, []string{"nlp", "machine learning"}, res.Attached)

	res, err = s.AttachCategories(ctx, a.ID, []string{"nlp", "machine learning"})
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Empty(t, res.Attached)

	res, err = s.AttachCategories(ctx, b.ID, []string{"nlp"})
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Equal(t, []string{"nlp"}, res.Attached)

	assert.Equal(t, []string{"machine learning", "nlp"}, mustGet(t, s, "a").Categories)

	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "nlp", cats[0].Name)
	assert.Equal(t, 2, cats[0].PaperCount)
	assert.Equal(t, 1, cats[1].PaperCount)

	names, err := s.CategoryNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"machine learning", "nlp"}, names)
}

func TestAttachCategories_UnknownPaper(t *testing.T) {
	s := testSetup(t)
	_, err := s.AttachCategories(context.Background(), 42, []string{"nlp"})
	assert.True(t, apperr.Is(err, apperr.NotFound))

	names, err := s.CategoryNames(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

// --- ListPapers / Search ---

func TestListPapers_Filters(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()

	r1, r2, r3 := record("a"), record("b"), record("PMID:3")
	r2.Published = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	r3.Source = types.SourcePubMed
	mustSave(t, s, r1, r2, r3)

	a, b := mustGet(t, s, "a"), mustGet(t, s, "b")
	_, err := s.AttachCategories(ctx, a.ID, []string{"nlp", "security"})
	require.NoError(t, err)
	_, err = s.AttachCategories(ctx, b.ID, []string{"nlp"})
	require.NoError(t, err)
	require.NoError(t, s.SetSummary(ctx, a.ID, "summary", types.SummaryFromAbstract))

	tests := []struct {
		name string
		f    types.PaperFilter
		want []string
	}{
		{"all", types.PaperFilter{}, []string{"PMID:3", "b", "a"}},
		{"category", types.PaperFilter{Categories: []string{"nlp"}}, []string{"b", "a"}},
		{"categories AND", types.PaperFilter{Categories: []string{"nlp", "security"}}, []string{"a"}},
		{"unprocessed", types.PaperFilter{UnprocessedOnly: true}, []string{"PMID:3", "b"}},
		{"source", types.PaperFilter{Source: types.SourcePubMed}, []string{"PMID:3"}},
		{"from", types.PaperFilter{From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}, []string{"PMID:3", "a"}},
		{"to", types.PaperFilter{To: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)}, []string{"b"}},
		{"limit offset", types.PaperFilter{Limit: 1, Offset: 1}, []string{"b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			papers, err := s.ListPapers(ctx, tt.f)
			require.NoError(t, err)
			var got []string
			for _, p := range papers {
				got = append(got, p.Identifier)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSearchPapers(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()

	r1, r2 := record("a"), record("b")
	r1.Title = "Graph Neural Networks for Chemistry"
	r2.Abstract = "We study 100% reproducible pipelines."
	mustSave(t, s, r1, r2)

	papers, err := s.SearchPapers(ctx, "graph neural", 10)
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, "a", papers[0].Identifier)

	papers, err = s.SearchPapers(ctx, "100%", 10)
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, "b", papers[0].Identifier)

	papers, err = s.SearchPapers(ctx, "zz", 10)
	require.NoError(t, err)
	assert.Empty(t, papers)

	_, err = s.SearchPapers(ctx, " g ", 10)
	assert.True(t, apperr.Is(err, apperr.Validation))
}

// --- Stats ---

func TestStats(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.PaperStats{}, st)

	old := nowFunc
	t.Cleanup(func() { nowFunc = old })
	nowFunc = func() time.Time { return time.Now().Add(-30 * 24 * time.Hour) }
	mustSave(t, s, record("old"))
	nowFunc = old
	mustSave(t, s, record("a"), record("b"), record("c"))
	require.NoError(t, s.SetSummary(ctx, mustGet(t, s, "a").ID, "x", types.SummaryFromAbstract))

	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 1, st.Processed)
	assert.Equal(t, 3, st.Unprocessed)
	assert.Equal(t, 3, st.ThisWeek)
	assert.InDelta(t, 25.0, st.ProcessingRate, 0.001)
}

// --- Jobs ---

func TestJobLifecycle(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()

	job, err := s.StartJob(ctx, types.JobScrape, types.SourceBiorxiv)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, types.JobRunning, job.Status)

	require.NoError(t, s.CompleteJob(ctx, job.ID, types.JobSuccess, map[string]int{"fetched": 5, "saved": 2}, ""))

	err = s.CompleteJob(ctx, job.ID, types.JobFailed, nil, "again")
	assert.True(t, apperr.Is(err, apperr.Validation), "completion happens once")

	jobs, err := s.ListJobs(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, types.JobSuccess, jobs[0].Status)
	assert.Equal(t, types.SourceBiorxiv, jobs[0].Source)
	require.NotNil(t, jobs[0].CompletedAt)
	assert.JSONEq(t, `{"fetched":5,"saved":2}`, string(jobs[0].Result))
}

func TestCompleteJob_RejectsRunning(t *testing.T) {
	s := testSetup(t)
	job, err := s.StartJob(context.Background(), types.JobProcess, "")
	require.NoError(t, err)
	err = s.CompleteJob(context.Background(), job.ID, types.JobRunning, nil, "")
	assert.True(t, apperr.Is(err, apperr.Validation))
}

func TestFailStaleJobs(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()

	running, err := s.StartJob(ctx, types.JobProcess, "")
	require.NoError(t, err)
	done, err := s.StartJob(ctx, types.JobReport, "")
	require.NoError(t, err)
	require.NoError(t, s.CompleteJob(ctx, done.ID, types.JobSuccess, nil, ""))

	n, err := s.FailStaleJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	jobs, err := s.ListJobs(ctx, types.JobProcess, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, running.ID, jobs[0].ID)
	assert.Equal(t, types.JobFailed, jobs[0].Status)
	assert.Contains(t, jobs[0].Error, "interrupted")
}

func TestRunJob(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()

	job, err := s.RunJob(ctx, types.JobProcess, "", func(context.Context) (any, error) {
		return map[string]int{"processed": 3}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, types.JobSuccess, job.Status)

	_, err = s.RunJob(ctx, types.JobScrape, types.SourcePubMed, func(context.Context) (any, error) {
		return nil, fmt.Errorf("esearch: HTTP 503")
	})
	require.Error(t, err)

	_, err = s.RunJob(ctx, types.JobReport, "", func(context.Context) (any, error) {
		panic("template exploded")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	jobs, err := s.ListJobs(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	byType := map[types.JobType]types.JobHistory{}
	for _, j := range jobs {
		byType[j.Type] = j
		assert.NotEqual(t, types.JobRunning, j.Status)
		assert.NotNil(t, j.CompletedAt)
	}
	assert.JSONEq(t, `{"processed":3}`, string(byType[types.JobProcess].Result))
	assert.Equal(t, types.JobFailed, byType[types.JobScrape].Status)
	assert.Equal(t, "esearch: HTTP 503", byType[types.JobScrape].Error)
	assert.Equal(t, types.SourcePubMed, byType[types.JobScrape].Source)
	assert.Contains(t, byType[types.JobReport].Error, "template exploded")
}

func TestRunJob_CancelledContextStillCompletes(t *testing.T) {
	s := testSetup(t)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := s.RunJob(ctx, types.JobProcess, "", func(ctx context.Context) (any, error) {
		cancel()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)

	jobs, err := s.ListJobs(context.Background(), types.JobProcess, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, types.JobFailed, jobs[0].Status)
}

func TestRecentPapers(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	old := nowFunc
	t.Cleanup(func() { nowFunc = old })

	nowFunc = func() time.Time { return base.Add(-48 * time.Hour) }
	mustSave(t, s, record("2401.00001"))
	nowFunc = func() time.Time { return base }
	mustSave(t, s, record("2401.00002"))

	got, err := s.RecentPapers(ctx, base.Add(-24*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2401.00002", got[0].Identifier)
}

// --- Reports ---

func TestReports(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()

	_, err := s.SaveReport(ctx, types.ReportDaily, "# Daily")
	require.NoError(t, err)
	r, err := s.SaveReport(ctx, types.ReportWeekly, "# Weekly")
	require.NoError(t, err)
	assert.NotZero(t, r.ID)

	all, err := s.ListReports(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "# Weekly", all[0].Content)

	daily, err := s.ListReports(ctx, types.ReportDaily, 10)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, types.ReportDaily, daily[0].Type)
}

// --- Export ---

func TestExport(t *testing.T) {
	s := testSetup(t)
	ctx := context.Background()
	mustSave(t, s, record("a"), record("b"))

	var jsonBuf bytes.Buffer
	n, err := s.ExportJSON(ctx, &jsonBuf, types.PaperFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	var fromJSON []types.Paper
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &fromJSON))
	assert.Len(t, fromJSON, 2)

	var yamlBuf bytes.Buffer
	n, err = s.ExportYAML(ctx, &yamlBuf, types.PaperFilter{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	var fromYAML []map[string]any
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML))
	require.Len(t, fromYAML, 1)
	assert.Equal(t, "b", fromYAML[0]["identifier"])
}
