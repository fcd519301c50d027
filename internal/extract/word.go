package extract

import (
	"bytes"
	"fmt"

	"code.sajari.com/docconv/v2"
)

// DocconvWord converts Word documents with docconv.
func DocconvWord(data []byte, mimeType string) (string, error) {
	res, err := docconv.Convert(bytes.NewReader(data), mimeType, false)
	if err != nil {
		return "", fmt.Errorf("docconv: %w", err)
	}
	return res.Body, nil
}
