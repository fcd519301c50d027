package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/kmrl/dochub/internal/app"
	"github.com/kmrl/dochub/internal/common"
	"github.com/kmrl/dochub/internal/extract"
)

func main() {
	logger := app.NewJSONLogger(os.Stderr, app.LevelFromEnv())

	flag.Parse()
	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runocr <file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg := common.LoadConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("runocr.read_failed", "path", path, "error", err)
		os.Exit(1)
	}

	extractor := app.NewExtractor(cfg.OCR, logger)
	doc := extract.Document{
		Bytes:    data,
		MimeType: mime.TypeByExtension(filepath.Ext(path)),
		FileName: filepath.Base(path),
	}

	start := time.Now()
	text, err := extractor.Extract(ctx, doc)
	dur := time.Since(start)
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	logger.Info("text extraction OK",
		"path", path,
		"category", extract.Categorize(doc),
		"bytes", len(text),
		"duration_ms", dur.Milliseconds(),
	)
	fmt.Println(text)
}
