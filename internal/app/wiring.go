// Package app assembles the analysis stack from configuration for the binaries.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kmrl/dochub/internal/common"
	"github.com/kmrl/dochub/internal/extract"
	"github.com/kmrl/dochub/internal/llm"
	"github.com/kmrl/dochub/internal/llm/gemini"
	"github.com/kmrl/dochub/internal/llm/vertex"
	"github.com/kmrl/dochub/internal/ocr"
	"github.com/kmrl/dochub/internal/pipeline"
)

// NewTextLogger is the daemon logger: text lines without time, level kept.
func NewTextLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// NewJSONLogger is used by the one-shot CLIs.
func NewJSONLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// LevelFromEnv reads LOG_LEVEL (debug, info, warn, error).
func LevelFromEnv() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func NewOCREngine(cfg common.OCRConfig, logger *slog.Logger) *ocr.Engine {
	return ocr.NewEngine(ocr.Config{
		Tesseract:   cfg.Tesseract,
		Pdftoppm:    cfg.Pdftoppm,
		Languages:   cfg.Languages,
		TessdataDir: cfg.TessdataDir,
		DPI:         cfg.DPI,
	}, logger)
}

func NewExtractor(cfg common.OCRConfig, logger *slog.Logger) *extract.Extractor {
	return extract.NewExtractor(NewOCREngine(cfg, logger), logger,
		extract.WithPDFOCRFallback(cfg.PDFOCRFallback))
}

// NewCompleter returns the configured provider and a release func for its resources.
func NewCompleter(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.Completer, func() error, error) {
	switch cfg.Provider {
	case "gemini", "":
		c := gemini.NewClient(gemini.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger)
		return c, func() error { return nil }, nil
	case "vertex":
		c, err := vertex.NewClient(ctx, vertex.Config{
			Project:     cfg.Project,
			Region:      cfg.Region,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// NewOrchestrator wires extraction and the configured completion provider.
func NewOrchestrator(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*pipeline.Orchestrator, func() error, error) {
	completer, release, err := NewCompleter(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, nil, err
	}
	return pipeline.NewOrchestrator(NewExtractor(cfg.OCR, logger), completer, logger), release, nil
}
