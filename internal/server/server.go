// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes papers, categories, jobs, and reports over a JSON
// HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/paper-search/internal/apperr"
	"github.com/pdiddy/paper-search/internal/ingest"
	"github.com/pdiddy/paper-search/internal/metrics"
	"github.com/pdiddy/paper-search/internal/orchestrator"
	"github.com/pdiddy/paper-search/internal/report"
	"github.com/pdiddy/paper-search/internal/scheduler"
	"github.com/pdiddy/paper-search/internal/sources"
	"github.com/pdiddy/paper-search/internal/store"
	"github.com/pdiddy/paper-search/pkg/types"
)

// Page size limits for list endpoints.
const (
	defaultLimit = 50
	maxLimit     = 500
)

// Deps are the services the API serves. Scheduler, Reports, and Metrics
// may be nil.
type Deps struct {
	Store        *store.Store
	Orchestrator *orchestrator.Orchestrator
	Ingest       *ingest.Service
	Reports      *report.Generator
	Scheduler    *scheduler.Scheduler
	Metrics      *metrics.Collector
	Version      string
}

// Server routes API requests to the pipeline services.
type Server struct {
	deps    Deps
	logger  *slog.Logger
	handler http.Handler

	// bgCtx bounds background processing started by POST /jobs/process.
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
	bgBusy   sync.Mutex
}

// New builds the API server and its routes.
func New(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{deps: deps, logger: logger.With("component", "api")}
	s.bgCtx, s.bgCancel = context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /papers", s.handleListPapers)
	mux.HandleFunc("GET /papers/search", s.handleSearchPapers)
	mux.HandleFunc("GET /papers/{id}", s.handleGetPaper)
	mux.HandleFunc("GET /categories", s.handleCategories)
	mux.HandleFunc("POST /jobs/scrape", s.handleScrape)
	mux.HandleFunc("POST /jobs/process", s.handleProcess)
	mux.HandleFunc("POST /jobs/process-sync", s.handleProcessSync)
	mux.HandleFunc("GET /jobs/status", s.handleJobStatus)
	mux.HandleFunc("GET /jobs/history", s.handleJobHistory)
	mux.HandleFunc("GET /jobs/scheduler/status", s.handleSchedulerStatus)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /reports", s.handleListReports)
	mux.HandleFunc("POST /reports", s.handleGenerateReport)

	s.handler = LoggingMiddleware(s.logger, mux)
	return s
}

// Handler returns the routed, logged HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and waits for background jobs.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close cancels background jobs and waits for them to record their status.
func (s *Server) Close() {
	s.bgCancel()
	s.bg.Wait()
}

// --- handlers ---

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Paper Search API",
		"version": s.deps.Version,
	})
}

func (s *Server) handleListPapers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset, err := page(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	f := types.PaperFilter{Limit: limit, Offset: offset}
	for _, c := range q["category"] {
		if c = strings.TrimSpace(c); c != "" {
			f.Categories = append(f.Categories, c)
		}
	}
	if v := q.Get("source"); v != "" {
		src, err := types.ParseSource(v)
		if err != nil {
			s.writeError(w, apperr.New(apperr.Validation, "list papers", err))
			return
		}
		f.Source = src
	}
	if v := q.Get("unprocessed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, apperr.Errorf(apperr.Validation, "list papers", "invalid unprocessed value %q", v))
			return
		}
		f.UnprocessedOnly = b
	}

	papers, err := s.deps.Store.ListPapers(r.Context(), f)
	if err != nil {
		s.writeError(w, err)
		return
	}
	total, err := s.deps.Store.CountPapers(r.Context(), f)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"papers": papers,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleSearchPapers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit, _, err := page(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	papers, err := s.deps.Store.SearchPapers(r.Context(), q, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "papers": papers})
}

func (s *Server) handleGetPaper(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, apperr.Errorf(apperr.Validation, "get paper", "invalid paper id %q", r.PathValue("id")))
		return
	}
	p, err := s.deps.Store.GetPaper(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.deps.Store.ListCategories(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var p sources.Params
	var err error
	if p.MaxResults, err = intParam(q.Get("max_results"), "max_results", 0, 1, 10000); err != nil {
		s.writeError(w, err)
		return
	}
	if p.DaysBack, err = intParam(q.Get("days_back"), "days_back", 0, 1, 365); err != nil {
		s.writeError(w, err)
		return
	}
	p.Query = strings.TrimSpace(q.Get("query"))

	var targets []types.Source
	switch name := strings.TrimSpace(q.Get("source")); strings.ToLower(name) {
	case "", "all":
		targets = s.deps.Ingest.Enabled()
	default:
		src, err := types.ParseSource(name)
		if err != nil || src == types.SourceManual {
			s.writeError(w, apperr.Errorf(apperr.Validation, "scrape", "unknown source %q (want arxiv, biorxiv, pubmed, or all)", name))
			return
		}
		targets = []types.Source{src}
	}

	var sum ingest.Summary
	for _, src := range targets {
		out, err := s.deps.Ingest.ScrapeSource(r.Context(), src, p)
		if err != nil && len(targets) == 1 {
			s.writeError(w, err)
			return
		}
		sum.Sources = append(sum.Sources, out)
		sum.Fetched += out.Fetched
		sum.Saved += out.Saved
		if err != nil {
			sum.Failed++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "completed",
		"results": sum.Sources,
		"fetched": sum.Fetched,
		"saved":   sum.Saved,
		"errors":  sum.Failed,
	})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), "limit", 10, 1, maxLimit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !s.bgBusy.TryLock() {
		writeJSON(w, http.StatusConflict, errorBody("conflict", "a processing job is already running"))
		return
	}

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		defer s.bgBusy.Unlock()
		_, err := s.deps.Store.RunJob(s.bgCtx, types.JobProcess, "", func(ctx context.Context) (any, error) {
			return s.deps.Orchestrator.ProcessNew(ctx, limit)
		})
		if err != nil {
			s.logger.Error("background processing failed", "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  "started",
		"message": "Processing papers in background",
		"limit":   limit,
	})
}

func (s *Server) handleProcessSync(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), "limit", 10, 1, maxLimit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var result orchestrator.BatchResult
	_, err = s.deps.Store.RunJob(r.Context(), types.JobProcess, "", func(ctx context.Context) (any, error) {
		var err error
		result, err = s.deps.Orchestrator.ProcessNew(ctx, limit)
		return result, err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "completed", "result": result})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Store.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	busy := !s.bgBusy.TryLock()
	if !busy {
		s.bgBusy.Unlock()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_papers":          st.Total,
		"processed":             st.Processed,
		"unprocessed":           st.Unprocessed,
		"background_processing": busy,
	})
}

func (s *Server) handleJobHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), "limit", 20, 1, maxLimit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var jobType types.JobType
	switch t := types.JobType(r.URL.Query().Get("type")); t {
	case "", types.JobScrape, types.JobProcess, types.JobReport:
		jobType = t
	default:
		s.writeError(w, apperr.Errorf(apperr.Validation, "job history", "unknown job type %q", t))
		return
	}
	jobs, err := s.deps.Store.ListJobs(r.Context(), jobType, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scheduler == nil {
		writeJSON(w, http.StatusOK, map[string]any{"running": false, "jobs": []scheduler.EntryStatus{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"running": s.deps.Scheduler.Running(),
		"jobs":    s.deps.Scheduler.Status(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Store.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	cats, err := s.deps.Store.ListCategories(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_papers":       st.Total,
		"processed_papers":   st.Processed,
		"unprocessed_papers": st.Unprocessed,
		"papers_this_week":   st.ThisWeek,
		"processing_rate":    st.ProcessingRate,
		"total_categories":   len(cats),
		"metrics":            s.deps.Metrics.Snapshot(),
	})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), "limit", 20, 1, maxLimit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rt, err := reportType(r.URL.Query().Get("type"), true)
	if err != nil {
		s.writeError(w, err)
		return
	}
	reports, err := s.deps.Store.ListReports(r.Context(), rt, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reports == nil {
		s.writeError(w, apperr.Errorf(apperr.NotFound, "generate report", "reporting is not configured"))
		return
	}
	rt, err := reportType(r.URL.Query().Get("type"), false)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var rep types.Report
	_, err = s.deps.Store.RunJob(r.Context(), types.JobReport, "", func(ctx context.Context) (any, error) {
		var err error
		rep, err = s.deps.Reports.Generate(ctx, rt)
		return map[string]any{"report_id": rep.ID, "report_type": rt}, err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

// --- helpers ---

func reportType(v string, allowEmpty bool) (types.ReportType, error) {
	switch rt := types.ReportType(strings.ToLower(strings.TrimSpace(v))); rt {
	case types.ReportDaily, types.ReportWeekly:
		return rt, nil
	case "":
		if allowEmpty {
			return "", nil
		}
		return types.ReportDaily, nil
	default:
		return "", apperr.Errorf(apperr.Validation, "report", "unknown report type %q (want daily or weekly)", v)
	}
}

func page(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if limit, err = intParam(q.Get("limit"), "limit", defaultLimit, 1, maxLimit); err != nil {
		return 0, 0, err
	}
	if offset, err = intParam(q.Get("offset"), "offset", 0, 0, 1<<31-1); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

// intParam parses an optional integer query value within [min, max].
func intParam(v, name string, def, min, max int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return 0, apperr.Errorf(apperr.Validation, "query", "%s must be an integer between %d and %d", name, min, max)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(errType, msg string) map[string]string {
	return map[string]string{"status": "error", "error_type": errType, "message": msg}
}

// writeError maps error kinds to status codes: NotFound is 404,
// Validation is 400, anything else is 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := apperr.KindOf(err)
	switch kind {
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.Validation:
		status = http.StatusBadRequest
	}
	if errors.Is(err, context.Canceled) {
		kind = "cancelled"
	}
	if kind == "" {
		kind = "internal"
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request error", "error", err)
	}
	writeJSON(w, status, errorBody(string(kind), fmt.Sprint(err)))
}
