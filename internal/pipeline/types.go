package pipeline

import (
	"time"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/metrics"
)

// RunnerConfig holds configuration for a batch run
type RunnerConfig struct {
	WorkerCount int          // Number of concurrent workers
	OutputDir   string       // Directory receiving one sub directory per export
	MinTier     metrics.Tier // Lowest tier written to flagged_orders.csv

	// Channel tags reports stored through a ReportStore.
	Channel string

	// UploadPrefix is the object key prefix CSV outputs are uploaded under
	// when an uploader is set.
	UploadPrefix string
}

// DefaultRunnerConfig returns sensible defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:  4,
		OutputDir:    "data/output",
		MinTier:      metrics.TierWarning,
		UploadPrefix: "reports/",
	}
}

// FileJobStatus represents the state of a single file processing job
type FileJobStatus string

const (
	FileStatusQueued     FileJobStatus = "queued"
	FileStatusProcessing FileJobStatus = "processing"
	FileStatusCompleted  FileJobStatus = "completed"
	FileStatusFailed     FileJobStatus = "failed"
)

// FileJob tracks the processing of a single export file
type FileJob struct {
	FilePath     string        `json:"file_path"`
	Name         string        `json:"name"`
	Status       FileJobStatus `json:"status"`
	ErrorMessage string        `json:"error,omitempty"`

	Lines    int   `json:"lines"`
	Skipped  int   `json:"skipped"`
	Warnings int   `json:"warnings"`
	ReportID int64 `json:"report_id,omitempty"`

	Result  *metrics.MetricResult `json:"result,omitempty"`
	Flagged int                   `json:"flagged"`
	Outputs []string              `json:"outputs"`

	Duration time.Duration `json:"duration"`
}

// BatchSummary is the outcome of one batch run.
type BatchSummary struct {
	Jobs      []*FileJob    `json:"jobs"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}
