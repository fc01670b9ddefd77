// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"time"
)

// JobType names a unit of scheduled or manually triggered work.
type JobType string

const (
	JobScrape  JobType = "scrape"
	JobProcess JobType = "process"
	JobReport  JobType = "report"
)

// JobStatus is the lifecycle state of a job run.
type JobStatus string

const (
	JobRunning JobStatus = "running"
	JobSuccess JobStatus = "success"
	JobFailed  JobStatus = "failed"
)

// JobHistory is one recorded job run. Rows are created at job start and
// completed exactly once.
type JobHistory struct {
	// ID is a UUID assigned at start.
	ID string `json:"id" yaml:"id"`

	Type JobType `json:"job_type" yaml:"job_type"`

	// Source is set for scrape jobs that target a single source.
	Source Source `json:"source,omitempty" yaml:"source,omitempty"`

	StartedAt   time.Time  `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Status      JobStatus  `json:"status" yaml:"status"`

	// Result is the structured job outcome, encoded as JSON.
	Result json.RawMessage `json:"result,omitempty" yaml:"-"`

	// Error holds the failure message for failed runs.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ReportType selects the digest window.
type ReportType string

const (
	ReportDaily  ReportType = "daily"
	ReportWeekly ReportType = "weekly"
)

// Report is a generated Markdown digest.
type Report struct {
	ID        int64      `json:"id" yaml:"id"`
	Type      ReportType `json:"report_type" yaml:"report_type"`
	Content   string     `json:"content" yaml:"content"`
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
}
