package drive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// FileSource is the part of Service the Downloader and Importer use.
type FileSource interface {
	ListFiles(ctx context.Context, folderID string) ([]*File, error)
	DownloadFile(ctx context.Context, f *File, w io.Writer) error
}

var _ FileSource = (*Service)(nil)

// DownloadOptions controls how exports are pulled from Google Drive.
type DownloadOptions struct {
	FolderID    string
	DownloadDir string

	// NamePrefix keeps only files whose name starts with it, e.g.
	// "Order.all". Matching is case-insensitive.
	NamePrefix string

	// Limit stops after that many files when positive.
	Limit int
}

// Downloader pulls order exports from a Drive folder.
type Downloader struct {
	source FileSource
}

func NewDownloader(source FileSource) *Downloader {
	return &Downloader{source: source}
}

// ExportName returns the local file name of f, or "" when f is not an order
// export the ingest package can read. Google Sheets become .xlsx.
func ExportName(f *File) string {
	if f.IsSpreadsheet() {
		return f.Name + ".xlsx"
	}
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".csv", ".xlsx":
		return f.Name
	}
	return ""
}

// DownloadExports downloads every CSV, XLSX and Google Sheet export of the
// folder into DownloadDir and returns the local paths.
func (d *Downloader) DownloadExports(ctx context.Context, opts DownloadOptions) ([]string, error) {
	if opts.DownloadDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(opts.DownloadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	files, err := d.source.ListFiles(ctx, opts.FolderID)
	if err != nil {
		return nil, err
	}

	prefix := strings.ToLower(opts.NamePrefix)
	var localPaths []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if opts.Limit > 0 && len(localPaths) >= opts.Limit {
			break
		}

		name := ExportName(f)
		if name == "" || !strings.HasPrefix(strings.ToLower(f.Name), prefix) {
			continue
		}

		localPath := filepath.Join(opts.DownloadDir, filepath.Base(name))
		if err := d.download(ctx, f, localPath); err != nil {
			return nil, err
		}

		log.Info().Str("file", f.Name).Str("path", localPath).Msg("drive: export downloaded")
		localPaths = append(localPaths, localPath)
	}

	return localPaths, nil
}

func (d *Downloader) download(ctx context.Context, f *File, localPath string) error {
	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}

	if err := d.source.DownloadFile(ctx, f, out); err != nil {
		out.Close()
		_ = os.Remove(localPath)
		return fmt.Errorf("failed to download %s: %w", f.Name, err)
	}
	return out.Close()
}
