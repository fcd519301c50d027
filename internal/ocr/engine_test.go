package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

type stubRunner struct {
	mu    sync.Mutex
	calls []call
	fn    func(name string, args []string) ([]byte, []byte, error)
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, call{name: name, args: args})
	s.mu.Unlock()
	return s.fn(name, args)
}

func TestRecognizeImage_PassesLanguageHints(t *testing.T) {
	r := &stubRunner{fn: func(string, []string) ([]byte, []byte, error) {
		return []byte("Circular  No. 12\r\n\r\n\r\n\r\nPlatform  closure\t notice  \n"), nil, nil
	}}
	e := NewEngine(Config{TessdataDir: "/usr/share/tessdata"}, nil, WithRunner(r))

	txt, err := e.RecognizeImage(context.Background(), "scan.png")
	require.NoError(t, err)
	assert.Equal(t, "Circular No. 12\n\nPlatform closure notice", txt)

	require.Len(t, r.calls, 1)
	assert.Equal(t, "tesseract", r.calls[0].name)
	assert.Equal(t, []string{"scan.png", "stdout", "-l", "eng+hin+mal", "--tessdata-dir", "/usr/share/tessdata"}, r.calls[0].args)
}

func TestRecognizeImage_Failure(t *testing.T) {
	r := &stubRunner{fn: func(string, []string) ([]byte, []byte, error) {
		return nil, []byte("Error opening data file"), errors.New("exit status 1")
	}}
	e := NewEngine(Config{}, nil, WithRunner(r))

	_, err := e.RecognizeImage(context.Background(), "scan.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error opening data file")
}

func TestRecognizeImageBytes_RemovesTempFile(t *testing.T) {
	var seen string
	r := &stubRunner{fn: func(_ string, args []string) ([]byte, []byte, error) {
		seen = args[0]
		_, err := os.Stat(seen)
		return []byte("ok"), nil, err
	}}
	e := NewEngine(Config{}, nil, WithRunner(r))

	txt, err := e.RecognizeImageBytes(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "png")
	require.NoError(t, err)
	assert.Equal(t, "ok", txt)
	assert.True(t, strings.HasSuffix(seen, ".png"))
	_, statErr := os.Stat(seen)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRecognizePDF_OCRsEachRenderedPage(t *testing.T) {
	r := &stubRunner{}
	r.fn = func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftoppm":
			prefix := args[len(args)-1]
			for _, p := range []string{"1", "2"} {
				if err := os.WriteFile(prefix+"-"+p+".png", []byte("img"), 0o600); err != nil {
					return nil, nil, err
				}
			}
			return nil, nil, nil
		case "tesseract":
			return []byte("text of " + filepath.Base(args[0])), nil, nil
		}
		return nil, nil, errors.New("unexpected command")
	}
	e := NewEngine(Config{DPI: 150}, nil, WithRunner(r))

	txt, pages, err := e.RecognizePDF(context.Background(), []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	assert.Equal(t, "text of page-1.png\n\ntext of page-2.png", txt)
	assert.Equal(t, "150", r.calls[0].args[1])
}

func TestRecognizePDF_NoPages(t *testing.T) {
	r := &stubRunner{fn: func(string, []string) ([]byte, []byte, error) { return nil, nil, nil }}
	e := NewEngine(Config{}, nil, WithRunner(r))

	_, _, err := e.RecognizePDF(context.Background(), []byte("%PDF-1.4"))
	assert.Error(t, err)
}
