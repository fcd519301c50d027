package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// RecognizePDF rasterises every page with pdftoppm and OCRs the images in page order.
// Pages that fail recognition are skipped; an error is returned only when no page yields text.
func (e *Engine) RecognizePDF(ctx context.Context, data []byte) (string, int, error) {
	tmpDir, err := os.MkdirTemp("", "dochub-pp-*")
	if err != nil {
		return "", 0, err
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			e.logger.Warn("ocr.pdf.cleanup_failed", "dir", path, "error", err)
		}
	}(tmpDir)

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return "", 0, fmt.Errorf("write pdf: %w", err)
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", in, prefix)
	if err != nil {
		return "", 0, fmt.Errorf("pdftoppm: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}

	// prefix-1.png, prefix-2.png, ...
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, fmt.Errorf("pdftoppm rendered no pages")
	}

	var b strings.Builder
	var failed int
	for _, img := range matches {
		txt, err := e.RecognizeImage(ctx, img)
		if err != nil {
			failed++
			e.logger.Warn("ocr.pdf.page_failed", "page", filepath.Base(img), "error", err)
			continue
		}
		if txt == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(txt)
	}
	if b.Len() == 0 && failed > 0 {
		return "", len(matches), fmt.Errorf("ocr failed on all %d pages", failed)
	}
	return b.String(), len(matches), nil
}
