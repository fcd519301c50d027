package common

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("GO_ENVIRONMENT", "test")

	cfg := LoadConfig()

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, ":8000", cfg.Server.HTTPAddr)
	assert.Equal(t, "eng+hin+mal", cfg.OCR.Languages)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.Equal(t, 5*time.Second, cfg.Client.PollInterval)
	assert.True(t, cfg.Server.SeedExample)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("GO_ENVIRONMENT", "test")
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("QUEUE_WORKERS", "9")
	t.Setenv("POLL_INTERVAL", "750ms")
	t.Setenv("PDF_OCR_FALLBACK", "true")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("MAX_UPLOAD_BYTES", "not-a-number")

	cfg := LoadConfig()

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 9, cfg.Queue.Workers)
	assert.Equal(t, 750*time.Millisecond, cfg.Client.PollInterval)
	assert.True(t, cfg.OCR.PDFOCRFallback)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, int64(50<<20), cfg.Server.MaxUploadBytes)
}

func TestConfigValidate(t *testing.T) {
	t.Setenv("GO_ENVIRONMENT", "test")

	cfg := LoadConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")

	cfg.LLM.APIKey = "secret"
	assert.NoError(t, cfg.Validate())

	cfg.LLM.Provider = "vertex"
	cfg.LLM.Project = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_CLOUD_PROJECT")

	cfg.LLM.Provider = "openai"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM_PROVIDER")
}
