package extract

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/kmrl/dochub/constants"
	"github.com/kmrl/dochub/internal/common"
)

// Extractor picks an extraction strategy per file category.
type Extractor struct {
	ocr            Recognizer
	word           WordConverter
	pdfOCRFallback bool
	logger         *slog.Logger
}

type Option func(*Extractor)

// WithPDFOCRFallback rasterises and OCRs PDFs that have neither a text layer nor text objects.
func WithPDFOCRFallback(enabled bool) Option {
	return func(e *Extractor) { e.pdfOCRFallback = enabled }
}

func WithWordConverter(fn WordConverter) Option {
	return func(e *Extractor) {
		if fn != nil {
			e.word = fn
		}
	}
}

// NewExtractor builds an Extractor. ocr may be nil, in which case images fail extraction.
func NewExtractor(ocr Recognizer, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{ocr: ocr, word: DocconvWord, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Categorize resolves the strategy for doc. The declared MIME type wins unless it is
// absent or generic, in which case the file name suffix decides.
func Categorize(doc Document) constants.FileCategory {
	if cat, ok := constants.MapMIMEToCategory(doc.MimeType); ok {
		return cat
	}
	return constants.MapExtToCategory(filepath.Ext(doc.FileName))
}

// Extract returns non-empty text or an *common.ExtractionError.
func (e *Extractor) Extract(ctx context.Context, doc Document) (string, error) {
	start := time.Now()
	cat := Categorize(doc)
	logger := common.LoggerWith(ctx, e.logger).With("file_name", doc.FileName, "category", string(cat))

	var (
		text   string
		method string
		err    error
	)
	switch cat {
	case constants.IMAGE:
		text, method, err = e.extractImage(ctx, doc)
	case constants.PDF:
		text, method, err = e.extractPDF(ctx, doc, logger)
	case constants.WORD:
		text, method, err = e.extractWord(doc)
	default:
		text, method = string(doc.Bytes), "raw"
	}
	if err != nil {
		logger.Error("extract.failed", "method", method, "error", err)
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		logger.Warn("extract.empty", "method", method, "bytes", len(doc.Bytes))
		return "", &common.ExtractionError{FileName: doc.FileName, Reason: "no readable text found"}
	}

	logger.Info("extract.ok",
		"method", method,
		"chars", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func (e *Extractor) extractImage(ctx context.Context, doc Document) (string, string, error) {
	const method = "image-ocr"
	if e.ocr == nil {
		return "", method, &common.ExtractionError{FileName: doc.FileName, Reason: "ocr is not configured"}
	}
	ext := filepath.Ext(doc.FileName)
	if ext == "" {
		ext = ".png"
	}
	text, err := e.ocr.RecognizeImageBytes(ctx, doc.Bytes, ext)
	if err != nil {
		return "", method, &common.ExtractionError{FileName: doc.FileName, Reason: "ocr failed", Cause: err}
	}
	return text, method, nil
}

func (e *Extractor) extractPDF(ctx context.Context, doc Document, logger *slog.Logger) (string, string, error) {
	text, pages, err := readTextLayer(doc.Bytes)
	if err != nil {
		logger.Debug("extract.pdf.text_layer_unavailable", "error", err)
	} else if strings.TrimSpace(text) != "" {
		logger.Debug("extract.pdf.text_layer", "pages", pages)
		return text, "pdf-text", nil
	}

	if scanned := ScanTextObjects(doc.Bytes); scanned != "" {
		return scanned, "pdf-scan", nil
	}

	if e.pdfOCRFallback && e.ocr != nil {
		text, pages, err := e.ocr.RecognizePDF(ctx, doc.Bytes)
		if err != nil {
			return "", "pdf-ocr", &common.ExtractionError{FileName: doc.FileName, Reason: "pdf ocr failed", Cause: err}
		}
		if strings.TrimSpace(text) != "" {
			logger.Debug("extract.pdf.ocr", "pages", pages)
			return text, "pdf-ocr", nil
		}
	}
	return ScannedPDFSentinel, "pdf-sentinel", nil
}

func (e *Extractor) extractWord(doc Document) (string, string, error) {
	const method = "word"
	mimeType := doc.MimeType
	if cat, ok := constants.MapMIMEToCategory(mimeType); !ok || cat != constants.WORD {
		mimeType = constants.WordMIME(filepath.Ext(doc.FileName))
	}
	text, err := e.word(doc.Bytes, mimeType)
	if err != nil {
		return "", method, &common.ExtractionError{FileName: doc.FileName, Reason: "document conversion failed", Cause: err}
	}
	return text, method, nil
}
