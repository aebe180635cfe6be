package pipeline

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/domain"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/export"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/ingest"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/metrics"
)

// ReportStore persists parsed exports, see repository.ReportRepository.
type ReportStore interface {
	CreateReport(ctx context.Context, report *domain.Report, lines []domain.OrderLine) (int64, error)
}

// Uploader publishes written CSV files, see storage.ObjectStorage.
type Uploader interface {
	UploadObject(ctx context.Context, key string, data []byte) error
}

// Runner computes many export files in parallel, one report per file.
type Runner struct {
	engine   *metrics.Engine
	config   RunnerConfig
	store    ReportStore
	uploader Uploader
}

// NewRunner creates a new batch runner
func NewRunner(engine *metrics.Engine, config RunnerConfig) *Runner {
	if config.WorkerCount < 1 {
		config.WorkerCount = 1
	}
	if config.MinTier == "" {
		config.MinTier = metrics.TierWarning
	}
	return &Runner{engine: engine, config: config}
}

// WithStore stores every parsed export as a report before computing it.
func (r *Runner) WithStore(store ReportStore) *Runner {
	r.store = store
	return r
}

// WithUploader uploads the CSV outputs of every report.
func (r *Runner) WithUploader(uploader Uploader) *Runner {
	r.uploader = uploader
	return r
}

// ProcessBatch processes files concurrently. A failing file does not stop
// the others; the summary tells which ones failed. Only a cancelled context
// is returned as an error.
func (r *Runner) ProcessBatch(ctx context.Context, files []string) (*BatchSummary, error) {
	summary := &BatchSummary{StartedAt: time.Now()}
	log.Info().Int("files", len(files)).Int("workers", r.config.WorkerCount).Msg("pipeline: starting batch")

	jobs := make([]*FileJob, len(files))
	for i, file := range files {
		jobs[i] = &FileJob{
			FilePath: file,
			Name:     reportName(file),
			Status:   FileStatusQueued,
			Outputs:  []string{},
		}
	}
	dedupeNames(jobs)
	summary.Jobs = jobs

	if err := r.processFilesParallel(ctx, jobs); err != nil {
		return summary, err
	}

	for _, job := range jobs {
		switch job.Status {
		case FileStatusCompleted:
			summary.Completed++
		case FileStatusFailed:
			summary.Failed++
		}
	}
	summary.Duration = time.Since(summary.StartedAt)

	log.Info().
		Int("completed", summary.Completed).
		Int("failed", summary.Failed).
		Dur("took", summary.Duration).
		Msg("pipeline: batch completed")

	return summary, nil
}

// processFilesParallel processes files using a worker pool
func (r *Runner) processFilesParallel(ctx context.Context, jobs []*FileJob) error {
	jobChan := make(chan *FileJob, len(jobs))
	var wg sync.WaitGroup

	for i := 0; i < r.config.WorkerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range jobChan {
				if err := r.processFile(ctx, job); err != nil {
					log.Error().Err(err).Int("worker", workerID).Str("file", job.FilePath).Msg("pipeline: file failed")
				}
			}
		}(i)
	}

	var cancelled error
enqueue:
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
			break enqueue
		case jobChan <- job:
		}
	}
	close(jobChan)

	wg.Wait()
	return cancelled
}

// processFile reads, computes and exports a single file
func (r *Runner) processFile(ctx context.Context, job *FileJob) error {
	start := time.Now()
	job.Status = FileStatusProcessing
	defer func() { job.Duration = time.Since(start) }()

	if err := ctx.Err(); err != nil {
		return r.markJobFailed(job, err)
	}

	parsed, err := ingest.ReadFile(job.FilePath)
	if err != nil {
		return r.markJobFailed(job, err)
	}
	job.Lines = len(parsed.Lines)
	job.Skipped = parsed.Skipped
	job.Warnings = len(parsed.Warnings)

	if r.store != nil {
		id, err := r.store.CreateReport(ctx, &domain.Report{Name: job.Name, Channel: r.config.Channel}, parsed.Lines)
		if err != nil {
			return r.markJobFailed(job, fmt.Errorf("store report: %w", err))
		}
		job.ReportID = id
	}

	report := r.engine.Compute(parsed.Lines)
	job.Result = &report.Result
	job.Flagged = len(report.Flagged(r.config.MinTier))

	if r.config.OutputDir != "" {
		outputs, err := export.WriteReport(r.config.OutputDir, job.Name, report, r.config.MinTier)
		if err != nil {
			return r.markJobFailed(job, err)
		}
		job.Outputs = outputs

		if r.uploader != nil {
			if err := r.upload(ctx, job); err != nil {
				return r.markJobFailed(job, err)
			}
		}
	}

	job.Status = FileStatusCompleted
	log.Info().
		Str("file", job.FilePath).
		Int("lines", job.Lines).
		Int("orders", report.Result.TotalOrders).
		Int("flagged", job.Flagged).
		Dur("took", time.Since(start)).
		Msg("pipeline: file completed")

	return nil
}

func (r *Runner) upload(ctx context.Context, job *FileJob) error {
	for _, output := range job.Outputs {
		data, err := os.ReadFile(output)
		if err != nil {
			return fmt.Errorf("read output %s: %w", output, err)
		}
		key := path.Join(r.config.UploadPrefix, job.Name, filepath.Base(output))
		if err := r.uploader.UploadObject(ctx, key, data); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
	}
	return nil
}

// markJobFailed marks a job as failed
func (r *Runner) markJobFailed(job *FileJob, err error) error {
	job.Status = FileStatusFailed
	job.ErrorMessage = err.Error()
	return err
}

// reportName is the export file name without directory and extension.
func reportName(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// dedupeNames suffixes repeated report names so two exports with the same
// file name in different directories do not overwrite each other's output.
func dedupeNames(jobs []*FileJob) {
	seen := make(map[string]int, len(jobs))
	for _, job := range jobs {
		n := seen[job.Name]
		seen[job.Name] = n + 1
		if n > 0 {
			job.Name = fmt.Sprintf("%s_%d", job.Name, n+1)
		}
	}
}
