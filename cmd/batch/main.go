package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kmrl/dochub/constants"
	"github.com/kmrl/dochub/internal/app"
	"github.com/kmrl/dochub/internal/async"
	"github.com/kmrl/dochub/internal/common"
	"github.com/kmrl/dochub/internal/core"
	"github.com/kmrl/dochub/internal/export"
	"github.com/kmrl/dochub/internal/ingest"
	"github.com/kmrl/dochub/internal/jobs"
	"github.com/kmrl/dochub/internal/utils"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir     = flag.String("dir", "", "directory of documents to analyze (required)")
		out     = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		workers = flag.Int("workers", 2, "documents analyzed in parallel")
		ledger  = flag.String("ledger", ":memory:", "dedup ledger path; a file keeps skipping known content across runs")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "documents.xlsx")
	}

	logger := app.NewJSONLogger(os.Stdout, app.LevelFromEnv())
	cfg := common.LoadConfig()
	ctx := context.Background()

	orchestrator, release, err := app.NewOrchestrator(ctx, cfg, logger)
	if err != nil {
		logger.Error("batch.llm.init_failed", "provider", cfg.LLM.Provider, "error", err)
		os.Exit(1)
	}
	defer func() { _ = release() }()

	led, err := ingest.OpenLedger(ctx, *ledger, logger)
	if err != nil {
		logger.Error("batch.ledger.open_failed", "path", *ledger, "error", err)
		os.Exit(1)
	}
	defer func() { _ = led.Close() }()

	work, err := os.MkdirTemp("", "dochub-batch-")
	if err != nil {
		logger.Error("batch.tempdir_failed", "error", err)
		os.Exit(1)
	}
	defer os.RemoveAll(work)

	store := jobs.NewMemoryStore()
	processor := core.NewProcessor(logger, store, orchestrator)
	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(*workers),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
	)
	inbox := ingest.NewInbox(store, queue, led, work, logger)

	var stats ingest.Stats
	err = filepath.WalkDir(*dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			logger.Warn("batch.walk_error", "path", path, "error", walkErr)
			return nil
		}
		if path != *dir && utils.IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !constants.AllowedUpload(filepath.Ext(path)) {
			return nil
		}
		stats.Seen++
		res, err := inbox.Ingest(ctx, path)
		switch {
		case err != nil:
			stats.Failed++
			logger.Error("batch.ingest_failed", "path", path, "error", err)
		case res.Deduplicated:
			stats.Deduplicated++
		default:
			stats.Queued++
		}
		return nil
	})
	if err != nil {
		logger.Error("batch.walk_failed", "dir", *dir, "error", err)
		os.Exit(1)
	}

	start := time.Now()
	queue.Shutdown(ctx)
	logger.Info("batch.analysis_done", "queued", stats.Queued, "duration_ms", time.Since(start).Milliseconds())

	list, err := store.List(ctx)
	if err != nil {
		logger.Error("batch.list_failed", "error", err)
		os.Exit(1)
	}
	completed, failed := 0, 0
	for _, j := range list {
		switch j.Status {
		case constants.JobStatusCompleted:
			completed++
		case constants.JobStatusFailed:
			failed++
		}
	}

	xlsxBytes, err := export.NewService(store, logger).ExportJobsXLSX(ctx)
	if err != nil {
		logger.Error("batch.export_failed", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0o644); err != nil {
		logger.Error("batch.write_failed", "path", *out, "error", err)
		os.Exit(1)
	}

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files found: %d\n", stats.Seen)
	fmt.Printf("- Duplicates skipped: %d\n", stats.Deduplicated)
	fmt.Printf("- Analyzed: %d\n", completed)
	fmt.Printf("- Failures: %d\n", failed+int(stats.Failed))
	fmt.Printf("- Output: %s\n", *out)
}
