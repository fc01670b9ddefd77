// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report builds Markdown digests of recently ingested papers and
// stores them in the reports table.
package report

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/pdiddy/paper-search/internal/apperr"
	"github.com/pdiddy/paper-search/internal/llm"
	"github.com/pdiddy/paper-search/internal/metrics"
	"github.com/pdiddy/paper-search/internal/store"
	"github.com/pdiddy/paper-search/pkg/types"
)

// topPapers is how many recent papers the daily digest lists in full.
const topPapers = 10

// now is the report clock. Tests replace it.
var now = time.Now

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "unknown"
		}
		return t.Format("2006-01-02")
	},
	"orDefault": func(s, def string) string {
		if strings.TrimSpace(s) == "" {
			return def
		}
		return s
	},
}

var dailyTmpl = template.Must(template.New("daily").Funcs(funcs).Parse(
	`# Daily Paper Report - {{date .Date}}
{{if .Overview}}
{{.Overview}}
{{end}}
## Summary
- **Total Papers in Database:** {{.Stats.Total}}
- **Processed Papers:** {{.Stats.Processed}}
- **New Papers (Last 24h):** {{.New}}
{{if .Categories}}
## Categories
{{range .Categories}}- {{.Name}}: {{.Count}}
{{end}}{{end}}
## Recent Papers
{{range .Papers}}
### {{.Title}}
- **Authors:** {{orDefault .Authors "Unknown"}}
- **Published:** {{date .Published}}
- **ID:** {{.Identifier}}
- **Summary:** {{orDefault .Summary "Not yet processed"}}

---
{{else}}
No new papers.
{{end}}`))

var weeklyTmpl = template.Must(template.New("weekly").Funcs(funcs).Parse(
	`# Weekly Paper Report - {{date .Date}}
{{if .Overview}}
{{.Overview}}
{{end}}
## Summary
- **Papers Added This Week:** {{.New}}
- **Processed Papers:** {{.Stats.Processed}} of {{.Stats.Total}}
{{if .Categories}}
## Categories
{{range .Categories}}- {{.Name}}: {{.Count}}
{{end}}{{end}}
## Papers
{{range .Papers}}- **{{.Title}}** ({{.Identifier}})
{{else}}
No new papers.
{{end}}`))

const overviewPrompt = `Write one short paragraph (at most four sentences) giving an overview of the research themes in these recently added papers. Mention no paper that is not listed.

{{range .}}- {{.Title}}
{{end}}`

var overviewTmpl = template.Must(template.New("overview").Parse(overviewPrompt))

// categoryCount is one row of the per-category table.
type categoryCount struct {
	Name  string
	Count int
}

type digest struct {
	Date       time.Time
	Overview   string
	Stats      types.PaperStats
	New        int
	Categories []categoryCount
	Papers     []types.Paper
}

// Generator builds and stores digests.
type Generator struct {
	store  *store.Store
	gen    llm.Generator
	logger *slog.Logger

	// Metrics receives generation timings; nil disables recording.
	Metrics *metrics.Collector
}

// New returns a report generator. gen may be nil, in which case digests
// have no overview paragraph.
func New(st *store.Store, gen llm.Generator, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{store: st, gen: gen, logger: logger}
}

// Daily builds and stores the digest of papers added in the last 24 hours.
func (g *Generator) Daily(ctx context.Context) (types.Report, error) {
	return g.Generate(ctx, types.ReportDaily)
}

// Weekly builds and stores the digest of papers added in the last 7 days.
func (g *Generator) Weekly(ctx context.Context) (types.Report, error) {
	return g.Generate(ctx, types.ReportWeekly)
}

// Generate builds and stores a digest of the given type. It reads papers
// and never modifies them.
func (g *Generator) Generate(ctx context.Context, reportType types.ReportType) (types.Report, error) {
	done := g.Metrics.Time(metrics.OpReport)
	rep, err := g.generate(ctx, reportType)
	done(err)
	return rep, err
}

func (g *Generator) generate(ctx context.Context, reportType types.ReportType) (types.Report, error) {
	var (
		window time.Duration
		tmpl   *template.Template
	)
	switch reportType {
	case types.ReportDaily:
		window, tmpl = 24*time.Hour, dailyTmpl
	case types.ReportWeekly:
		window, tmpl = 7*24*time.Hour, weeklyTmpl
	default:
		return types.Report{}, apperr.Errorf(apperr.Validation, "report", "unknown report type %q", reportType)
	}

	ts := now()
	papers, err := g.store.RecentPapers(ctx, ts.Add(-window), 0)
	if err != nil {
		return types.Report{}, fmt.Errorf("loading recent papers: %w", err)
	}
	stats, err := g.store.Stats(ctx)
	if err != nil {
		return types.Report{}, err
	}

	d := digest{
		Date:       ts,
		Stats:      stats,
		New:        len(papers),
		Categories: countCategories(papers),
		Papers:     papers,
	}
	if reportType == types.ReportDaily && len(d.Papers) > topPapers {
		d.Papers = d.Papers[:topPapers]
	}
	d.Overview = g.overview(ctx, papers)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, d); err != nil {
		return types.Report{}, fmt.Errorf("rendering %s report: %w", reportType, err)
	}

	rep, err := g.store.SaveReport(ctx, reportType, buf.String())
	if err != nil {
		return types.Report{}, err
	}
	g.logger.Info("report generated", "type", reportType, "papers", d.New, "bytes", buf.Len())
	return rep, nil
}

// overview asks the model for an opening paragraph. Failures are logged
// and yield no overview.
func (g *Generator) overview(ctx context.Context, papers []types.Paper) string {
	if g.gen == nil || len(papers) == 0 {
		return ""
	}
	list := papers
	if len(list) > 50 {
		list = list[:50]
	}
	var prompt bytes.Buffer
	if err := overviewTmpl.Execute(&prompt, list); err != nil {
		g.logger.Warn("rendering overview prompt", "error", err)
		return ""
	}
	text, err := g.gen.Generate(ctx, prompt.String())
	if err != nil {
		g.logger.Warn("report overview unavailable", "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}

func countCategories(papers []types.Paper) []categoryCount {
	counts := make(map[string]int)
	for _, p := range papers {
		for _, c := range p.Categories {
			counts[c]++
		}
	}
	out := make([]categoryCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, categoryCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
