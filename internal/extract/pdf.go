package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// reTextObject matches a BT ... ET text object on a single line of the raw stream.
var reTextObject = regexp.MustCompile(`BT\s*(.*?)\s*ET`)

// ScanTextObjects is a low-fidelity scan of the raw PDF bytes for BT/ET delimited text
// operators. The inner spans are joined with a space. It returns "" when nothing is found.
func ScanTextObjects(data []byte) string {
	matches := reTextObject.FindAllSubmatch(data, -1)
	if len(matches) == 0 {
		return ""
	}
	spans := make([]string, 0, len(matches))
	for _, m := range matches {
		spans = append(spans, string(m[1]))
	}
	joined := strings.ToValidUTF8(strings.Join(spans, " "), "")
	if strings.TrimSpace(joined) == "" {
		return ""
	}
	return joined
}

// readTextLayer extracts the embedded text layer page by page.
func readTextLayer(data []byte) (text string, pages int, err error) {
	// the reader panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}

	pages = reader.NumPage()
	var b strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		t, err := page.GetPlainText(nil)
		if err != nil {
			return "", pages, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(t) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(t)
	}
	return b.String(), pages, nil
}
