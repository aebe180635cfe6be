package drive

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/domain"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/ingest"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/repository"
)

// ImportResult describes one export stored as a report.
type ImportResult struct {
	File     string `json:"file"`
	ReportID int64  `json:"report_id"`
	Lines    int    `json:"lines"`
	Skipped  int    `json:"skipped"`
	Warnings int    `json:"warnings"`
}

// Importer streams Drive exports through the ingest parser into the report
// repository.
type Importer struct {
	source FileSource
	repo   repository.ReportRepository
}

func NewImporter(source FileSource, repo repository.ReportRepository) *Importer {
	return &Importer{
		source: source,
		repo:   repo,
	}
}

// ImportFile downloads f and stores its lines as a new report of channel.
func (s *Importer) ImportFile(ctx context.Context, f *File, channel string) (*ImportResult, error) {
	name := ExportName(f)
	if name == "" {
		return nil, fmt.Errorf("%w: %s", ingest.ErrUnsupportedFormat, f.Name)
	}
	format, err := ingest.FormatFromName(name)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(s.source.DownloadFile(ctx, f, pw))
	}()

	parsed, err := ingest.Read(pr, format)
	// Unblock the writer when parsing stopped early.
	pr.CloseWithError(io.ErrClosedPipe)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}

	report := &domain.Report{
		Name:    strings.TrimSuffix(name, filepath.Ext(name)),
		Channel: channel,
	}

	id, err := s.repo.CreateReport(ctx, report, parsed.Lines)
	if err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", f.Name, err)
	}

	for _, w := range parsed.Warnings {
		log.Warn().
			Str("file", f.Name).
			Int("row", w.Row).
			Str("column", w.Column).
			Str("value", w.Value).
			Msg("drive: cell read as zero")
	}

	return &ImportResult{
		File:     f.Name,
		ReportID: id,
		Lines:    len(parsed.Lines),
		Skipped:  parsed.Skipped,
		Warnings: len(parsed.Warnings),
	}, nil
}

// ImportFolder imports every export of a folder whose name starts with
// namePrefix. A file that fails is logged and skipped; the error of the
// first failure is returned alongside the successful imports.
func (s *Importer) ImportFolder(ctx context.Context, folderID, channel, namePrefix string) ([]ImportResult, error) {
	files, err := s.source.ListFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}

	var (
		results  []ImportResult
		firstErr error
	)
	prefix := strings.ToLower(namePrefix)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if ExportName(f) == "" || !strings.HasPrefix(strings.ToLower(f.Name), prefix) {
			continue
		}

		res, err := s.ImportFile(ctx, f, channel)
		if err != nil {
			log.Error().Err(err).Str("file", f.Name).Msg("drive: import failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		log.Info().
			Str("file", f.Name).
			Int64("report_id", res.ReportID).
			Int("lines", res.Lines).
			Msg("drive: export imported")
		results = append(results, *res)
	}

	return results, firstErr
}
