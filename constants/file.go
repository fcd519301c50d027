package constants

import (
	"mime"
	"strings"
)

// FileCategory selects the text extraction strategy.
type FileCategory string

const (
	IMAGE FileCategory = "IMAGE"
	PDF   FileCategory = "PDF"
	WORD  FileCategory = "WORD"
	TEXT  FileCategory = "TEXT"
)

// UploadExtensions are accepted by the upload endpoint and the inbox watcher.
var UploadExtensions = map[string]struct{}{
	"pdf":  {},
	"doc":  {},
	"docx": {},
	"txt":  {},
	"md":   {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

var imageExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
	"bmp":  {},
	"gif":  {},
	"webp": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// AllowedUpload reports whether ext (with or without dot) may be uploaded.
func AllowedUpload(ext string) bool {
	_, ok := UploadExtensions[NormalizeExt(ext)]
	return ok
}

// MapExtToCategory classifies a file by extension alone.
func MapExtToCategory(ext string) FileCategory {
	ext = NormalizeExt(ext)
	if _, ok := imageExtensions[ext]; ok {
		return IMAGE
	}
	switch ext {
	case "pdf":
		return PDF
	case "doc", "docx":
		return WORD
	default:
		return TEXT
	}
}

// IsGenericMIME reports whether a MIME type carries no useful category information.
func IsGenericMIME(mimeType string) bool {
	mt := baseMIME(mimeType)
	return mt == "" || mt == "application/octet-stream" || mt == "binary/octet-stream"
}

// MapMIMEToCategory classifies a file by declared MIME type. ok is false when the MIME type
// is generic and the caller should fall back to the extension.
func MapMIMEToCategory(mimeType string) (FileCategory, bool) {
	if IsGenericMIME(mimeType) {
		return "", false
	}
	mt := baseMIME(mimeType)
	switch {
	case strings.HasPrefix(mt, "image/"):
		return IMAGE, true
	case mt == "application/pdf" || mt == "application/x-pdf":
		return PDF, true
	case mt == "application/msword",
		mt == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return WORD, true
	default:
		return TEXT, true
	}
}

// WordMIME returns the MIME type docconv expects for a Word extension.
func WordMIME(ext string) string {
	if NormalizeExt(ext) == "doc" {
		return "application/msword"
	}
	return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}

func baseMIME(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mt
}
