// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scheduler runs ingestion, processing, and reporting on cron
// timers. Ticks of the same job never overlap, and every run ends with a
// terminal job-history status.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pdiddy/paper-search/internal/store"
	"github.com/pdiddy/paper-search/pkg/types"
)

// Defaults applied when a schedule field is zero.
const (
	DefaultScrapeSchedule  = "0 6 * * *"
	DefaultReportSchedule  = "0 9 * * *"
	DefaultProcessInterval = 120 * time.Minute
)

// Task is a unit of scheduled work. The result is stored with the job.
type Task func(ctx context.Context) (any, error)

// Tasks are the jobs the scheduler can run. A nil task is not scheduled.
type Tasks struct {
	// Scrape runs full ingestion. It records its own per-source jobs.
	Scrape Task

	// Process runs one processing batch.
	Process Task

	// Report generates the daily digest.
	Report Task
}

type entry struct {
	name     string
	jobType  types.JobType
	schedule string
	id       cron.EntryID
	job      cron.Job
}

// Scheduler owns a cron runner and the jobs registered on it.
type Scheduler struct {
	cron    *cron.Cron
	store   *store.Store
	logger  *slog.Logger
	entries []*entry

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
}

// New registers the non-nil tasks on their schedules. Schedules use the
// five-field cron syntax; the process interval becomes an @every schedule.
func New(st *store.Store, cfg types.SchedulerConfig, tasks Tasks, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")

	if cfg.ScrapeSchedule == "" {
		cfg.ScrapeSchedule = DefaultScrapeSchedule
	}
	if cfg.ReportSchedule == "" {
		cfg.ReportSchedule = DefaultReportSchedule
	}
	if cfg.ProcessInterval <= 0 {
		cfg.ProcessInterval = DefaultProcessInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(chain(logger)...)),
		store:  st,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	add := func(name string, jobType types.JobType, schedule string, record bool, task Task) error {
		if task == nil {
			return nil
		}
		e := &entry{name: name, jobType: jobType, schedule: schedule}
		e.job = cron.FuncJob(s.wrap(e, record, task))
		id, err := s.cron.AddJob(schedule, e.job)
		if err != nil {
			return fmt.Errorf("scheduling %s with %q: %w", name, schedule, err)
		}
		e.id = id
		s.entries = append(s.entries, e)
		return nil
	}

	if err := add("scrape", types.JobScrape, cfg.ScrapeSchedule, false, tasks.Scrape); err != nil {
		cancel()
		return nil, err
	}
	if err := add("process", types.JobProcess, "@every "+cfg.ProcessInterval.String(), true, tasks.Process); err != nil {
		cancel()
		return nil, err
	}
	if err := add("report", types.JobReport, cfg.ReportSchedule, true, tasks.Report); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// chain is the wrapper stack applied to every job: panics are recovered
// and a tick that fires while the previous run is still going is skipped.
func chain(logger *slog.Logger) []cron.JobWrapper {
	if logger == nil {
		logger = slog.Default()
	}
	l := cronLogger{logger}
	return []cron.JobWrapper{cron.Recover(l), cron.SkipIfStillRunning(l)}
}

// wrap turns a task into a cron func. Recorded tasks run inside a job
// history row; unrecorded ones still have their panics logged.
func (s *Scheduler) wrap(e *entry, record bool, task Task) func() {
	return func() {
		start := time.Now()
		s.logger.Info("job started", "job", e.name)

		var err error
		if record {
			_, err = s.store.RunJob(s.ctx, e.jobType, "", task)
		} else {
			err = runRecovered(s.ctx, e.name, task)
		}

		if err != nil {
			s.logger.Error("job failed", "job", e.name, "duration", time.Since(start), "error", err)
			return
		}
		s.logger.Info("job finished", "job", e.name, "duration", time.Since(start))
	}
}

func runRecovered(ctx context.Context, name string, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s job panicked: %v", name, r)
		}
	}()
	_, err = task(ctx)
	return err
}

// Start marks jobs left running by a previous process as failed, then
// starts the timers.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	n, err := s.store.FailStaleJobs(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Warn("marked interrupted jobs as failed", "count", n)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler started", "jobs", len(s.entries))
	return nil
}

// Stop halts the timers and waits for running jobs to return. If ctx
// expires first, running jobs are cancelled and ctx's error is returned.
// A stopped scheduler cannot be restarted.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		s.cancel()
		return nil
	}
	s.running = false

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

// Running reports whether the timers are active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// EntryStatus describes one scheduled job.
type EntryStatus struct {
	Name     string        `json:"name"`
	JobType  types.JobType `json:"job_type"`
	Schedule string        `json:"schedule"`

	// Next is zero until the scheduler has started.
	Next time.Time `json:"next_run,omitempty"`

	// Prev is zero until the job has run once.
	Prev time.Time `json:"previous_run,omitempty"`
}

// Status lists registered jobs with their next and previous run times.
func (s *Scheduler) Status() []EntryStatus {
	out := make([]EntryStatus, 0, len(s.entries))
	for _, e := range s.entries {
		ce := s.cron.Entry(e.id)
		out = append(out, EntryStatus{
			Name:     e.name,
			JobType:  e.jobType,
			Schedule: e.schedule,
			Next:     ce.Next,
			Prev:     ce.Prev,
		})
	}
	return out
}

// RunNow runs the named job once, synchronously, through the same
// wrappers as a timer tick.
func (s *Scheduler) RunNow(name string) error {
	for _, e := range s.entries {
		if e.name == name {
			s.cron.Entry(e.id).WrappedJob.Run()
			return nil
		}
	}
	return fmt.Errorf("no scheduled job named %q", name)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
