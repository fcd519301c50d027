package extract

import (
	"context"
)

// ScannedPDFSentinel is returned for PDFs that carry no recoverable text.
const ScannedPDFSentinel = "PDF content detected - please use OCR for scanned PDFs"

// Document is one immutable input file.
type Document struct {
	Bytes    []byte
	MimeType string
	FileName string
}

// TextExtractor converts a document into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, doc Document) (string, error)
}

// Recognizer is the OCR capability the extractor delegates to.
type Recognizer interface {
	RecognizeImageBytes(ctx context.Context, data []byte, ext string) (string, error)
	RecognizePDF(ctx context.Context, data []byte) (text string, pages int, err error)
}

// WordConverter turns .doc/.docx bytes into text.
type WordConverter func(data []byte, mimeType string) (string, error)
