package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// DefaultLanguages covers Latin, Devanagari and Malayalam script documents.
const DefaultLanguages = "eng+hin+mal"

type Config struct {
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	Pdftoppm    string // binary name or absolute path; if empty -> "pdftoppm"
	Languages   string // tesseract -l value, default DefaultLanguages
	TessdataDir string
	DPI         int // rasterization DPI for scanned PDFs, default 300
	MaxPages    int // 0 = no limit
	PSM         int // page segmentation mode; 0 leaves tesseract's default
}

// Engine wraps the tesseract and poppler command line tools.
type Engine struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Engine)

// WithRunner swaps the command runner, mainly for tests.
func WithRunner(r Runner) Option {
	return func(e *Engine) {
		if r != nil {
			e.runner = r
		}
	}
}

func NewEngine(cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if strings.TrimSpace(cfg.Languages) == "" {
		cfg.Languages = DefaultLanguages
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	e := &Engine{cfg: cfg, runner: ExecRunner{Logger: logger}, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Languages returns the language hints passed to tesseract.
func (e *Engine) Languages() string { return e.cfg.Languages }

// RecognizeImage runs tesseract on an image file and returns normalised text.
func (e *Engine) RecognizeImage(ctx context.Context, path string) (string, error) {
	start := time.Now()
	args := []string{path, "stdout", "-l", e.cfg.Languages}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	txt := Normalize(string(out))
	e.logger.Debug("ocr.image.ok",
		"path", path,
		"languages", e.cfg.Languages,
		"chars", len(txt),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return txt, nil
}

// RecognizeImageBytes spools data to a temp file with the given extension and OCRs it.
func (e *Engine) RecognizeImageBytes(ctx context.Context, data []byte, ext string) (string, error) {
	path, cleanup, err := spool(data, "dochub-img-*"+dotExt(ext))
	if err != nil {
		return "", err
	}
	defer cleanup()
	return e.RecognizeImage(ctx, path)
}

func spool(data []byte, pattern string) (string, func(), error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), cleanup, nil
}

func dotExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}
