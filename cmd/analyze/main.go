package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/kmrl/dochub/internal/app"
	"github.com/kmrl/dochub/internal/common"
	"github.com/kmrl/dochub/internal/extract"
	"github.com/kmrl/dochub/internal/pipeline"
)

func main() {
	var (
		mimeType = flag.String("mime", "", "declared MIME type (defaults to one derived from the file name)")
		timeout  = flag.Duration("timeout", 5*time.Minute, "overall deadline")
	)
	flag.Parse()

	logger := app.NewJSONLogger(os.Stderr, app.LevelFromEnv())

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "analyze [-mime type] <file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg := common.LoadConfig()
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("analyze.read_failed", "path", path, "error", err)
		os.Exit(1)
	}
	if *mimeType == "" {
		*mimeType = mime.TypeByExtension(filepath.Ext(path))
	}

	orchestrator, release, err := app.NewOrchestrator(ctx, cfg, logger)
	if err != nil {
		logger.Error("analyze.llm.init_failed", "provider", cfg.LLM.Provider, "error", err)
		os.Exit(1)
	}
	defer func() { _ = release() }()

	start := time.Now()
	report, err := orchestrator.Run(ctx, extract.Document{
		Bytes:    data,
		MimeType: *mimeType,
		FileName: filepath.Base(path),
	}, func(phase pipeline.Phase, percent int) {
		logger.Info("analyze.progress", "phase", phase, "percent", percent)
	})
	if err != nil {
		logger.Error("analyze.failed", "path", path, "error", err, "duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
		os.Exit(1)
	}
	logger.Info("analyze.ok", "department", report.Department(), "duration_ms", time.Since(start).Milliseconds())
}
