package domain

import (
	"strconv"
	"time"
)

// JobStatus represents the status of a sync job.
// Values include JobStatusQueued, JobStatusRunning, JobStatusDone, and JobStatusError.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusError   JobStatus = "error"
)

// SyncMode selects the run mode of a sync job.
type SyncMode string

const (
	SyncModeFull        SyncMode = "full_sync"
	SyncModeIncremental SyncMode = "incremental"
)

// OutputFormat selects the row store destination.
type OutputFormat string

const (
	OutputSheets OutputFormat = "sheets"
	OutputCSV    OutputFormat = "csv"
)

// JobParams are the input parameters of a sync job as submitted.
type JobParams struct {
	Month        string       `gorm:"type:text" json:"month"`
	Year         int          `json:"year"`
	FullSync     bool         `json:"full_sync"`
	OutputFormat OutputFormat `gorm:"type:text" json:"output_format"`
}

// MonthKey returns the "<Mon> <Year>" key used for per-month locking.
func (p JobParams) MonthKey() string {
	return p.Month + " " + strconv.Itoa(p.Year)
}

// SyncJob represents one background sync run and its outcome.
type SyncJob struct {
	ID          string      `gorm:"type:text;primaryKey" json:"job_id"`
	Status      JobStatus   `gorm:"type:text;default:queued;index" json:"status"`
	Params      JobParams   `gorm:"embedded;embeddedPrefix:param_" json:"params"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Result      *SyncResult `gorm:"serializer:json" json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
	LogPath     string      `json:"log_path,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TableName returns the database table name for SyncJob.
func (SyncJob) TableName() string {
	return "sync_jobs"
}

// StopReason records why a pagination pass terminated.
type StopReason string

const (
	StopLastPage      StopReason = "last_page"
	StopHighSkipRatio StopReason = "high_skip_ratio"
	StopPageError     StopReason = "page_error"
)

// SyncResult summarizes one completed (or aborted) sync run.
type SyncResult struct {
	Success    bool       `json:"success"`
	Total      int        `json:"total"`
	Successful int        `json:"successful"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	Updated    int        `json:"updated"`
	Pages      int        `json:"pages_scraped"`
	StopReason StopReason `json:"stop_reason,omitempty"`
	SheetTab   string     `json:"sheet_tab,omitempty"`
	CSVFile    string     `json:"csv_file,omitempty"`
}
