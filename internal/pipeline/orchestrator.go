package pipeline

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/ingest"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/storage"
)

// Orchestrator resolves where exports come from and hands them to a Runner.
type Orchestrator struct {
	runner *Runner
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(runner *Runner) *Orchestrator {
	return &Orchestrator{runner: runner}
}

// Run expands directories among paths into the exports they contain and
// processes every export once.
func (o *Orchestrator) Run(ctx context.Context, paths []string) (*BatchSummary, error) {
	files, err := CollectExports(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no csv or xlsx exports found in %v", paths)
	}
	return o.runner.ProcessBatch(ctx, files)
}

// RunFromStorage downloads every export under prefix into downloadDir, then
// processes them.
func (o *Orchestrator) RunFromStorage(ctx context.Context, store storage.ObjectStorage, prefix, downloadDir string) (*BatchSummary, error) {
	files, err := FetchExports(ctx, store, prefix, downloadDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no csv or xlsx exports under %q", prefix)
	}
	return o.runner.ProcessBatch(ctx, files)
}

// CollectExports returns the export files named by paths, walking
// directories recursively. The result is sorted and free of duplicates.
func CollectExports(paths []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	add := func(p string) {
		if _, err := ingest.FormatFromName(p); err != nil {
			return
		}
		clean := filepath.Clean(p)
		if _, ok := seen[clean]; ok {
			return
		}
		seen[clean] = struct{}{}
		files = append(files, clean)
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			if _, err := ingest.FormatFromName(p); err != nil {
				return nil, err
			}
			add(p)
			continue
		}

		err = filepath.WalkDir(p, func(walked string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				add(walked)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

// FetchExports downloads the CSV and XLSX objects under prefix into dir and
// returns the local paths.
func FetchExports(ctx context.Context, store storage.ObjectStorage, prefix, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	objects, err := store.ListObjects(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, obj := range objects {
		if _, err := ingest.FormatFromName(obj.Key); err != nil {
			continue
		}

		localPath := filepath.Join(dir, path.Base(obj.Key))
		if err := store.DownloadObject(ctx, obj.Key, localPath); err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", obj.Key, err)
		}
		log.Info().Str("key", obj.Key).Int64("size", obj.Size).Msg("pipeline: export fetched")
		files = append(files, localPath)
	}

	return files, nil
}
