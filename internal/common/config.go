package common

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Store   StoreConfig
	Server  ServerConfig
	OCR     OCRConfig
	LLM     LLMConfig
	Queue   QueueConfig
	Ingest  IngestConfig
	Archive ArchiveConfig
	Client  ClientConfig
}

// StoreConfig selects and tunes the job store backend.
type StoreConfig struct {
	Driver           string // memory | sqlite | postgres
	DSN              string // file path for sqlite, URL for postgres
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string
	GRPCHealthAddr string
	UploadDir      string
	MaxUploadBytes int64
	SeedExample    bool
	AllowedOrigins []string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract      string
	Pdftoppm       string
	Languages      string
	TessdataDir    string
	DPI            int
	PDFOCRFallback bool
}

// LLMConfig holds completion provider configuration
type LLMConfig struct {
	Provider    string // gemini | vertex
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
	Project     string
	Region      string
}

type QueueConfig struct {
	Workers        int
	Size           int
	ProcessTimeout time.Duration
}

// IngestConfig controls the watched inbox directory. An empty InboxDir disables it.
type IngestConfig struct {
	InboxDir   string
	LedgerPath string
	Debounce   time.Duration
}

// ArchiveConfig controls copying originals to a GCS bucket. An empty Bucket disables it.
type ArchiveConfig struct {
	Bucket string
	Prefix string
}

// ClientConfig is used by the polling client.
type ClientConfig struct {
	BaseURL      string
	PollInterval time.Duration
	Timeout      time.Duration
}

// LoadConfig loads configuration from environment variables, reading a .env file first
// unless GO_ENVIRONMENT=test.
func LoadConfig() *Config {
	loadDotEnv()

	return &Config{
		Store: StoreConfig{
			Driver:           strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
			DSN:              getEnv("STORE_DSN", "dochub.db"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr:       getEnv("HTTP_ADDR", ":8000"),
			GRPCHealthAddr: getEnv("GRPC_HEALTH_ADDR", ":8081"),
			UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
			MaxUploadBytes: getEnvAsInt64("MAX_UPLOAD_BYTES", 50<<20),
			SeedExample:    getEnvAsBool("SEED_EXAMPLE_TASK", true),
			AllowedOrigins: getEnvAsList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		},
		OCR: OCRConfig{
			Tesseract:      getEnv("TESSERACT_BIN", "tesseract"),
			Pdftoppm:       getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Languages:      getEnv("OCR_LANGUAGES", "eng+hin+mal"),
			TessdataDir:    getEnv("TESSDATA_PREFIX", ""),
			DPI:            getEnvAsInt("OCR_DPI", 300),
			PDFOCRFallback: getEnvAsBool("PDF_OCR_FALLBACK", false),
		},
		LLM: LLMConfig{
			Provider:    strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
			APIKey:      getEnv("GEMINI_API_KEY", ""),
			BaseURL:     getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			Model:       getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			Temperature: getEnvAsFloat32("GEMINI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("GEMINI_TIMEOUT", 60*time.Second),
			Project:     getEnv("GOOGLE_CLOUD_PROJECT", ""),
			Region:      getEnv("VERTEX_REGION", "us-central1"),
		},
		Queue: QueueConfig{
			Workers:        getEnvAsInt("QUEUE_WORKERS", 4),
			Size:           getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("QUEUE_PROCESS_TIMEOUT", 5*time.Minute),
		},
		Ingest: IngestConfig{
			InboxDir:   getEnv("INBOX_DIR", ""),
			LedgerPath: getEnv("INBOX_LEDGER", "inbox-ledger.db"),
			Debounce:   getEnvAsDuration("INBOX_DEBOUNCE", 2*time.Second),
		},
		Archive: ArchiveConfig{
			Bucket: getEnv("ARCHIVE_BUCKET", ""),
			Prefix: getEnv("ARCHIVE_PREFIX", "originals/"),
		},
		Client: ClientConfig{
			BaseURL:      getEnv("DOCHUB_URL", "http://127.0.0.1:8000"),
			PollInterval: getEnvAsDuration("POLL_INTERVAL", 5*time.Second),
			Timeout:      getEnvAsDuration("CLIENT_TIMEOUT", 30*time.Second),
		},
	}
}

func loadDotEnv() {
	if os.Getenv("GO_ENVIRONMENT") == "test" {
		return
	}
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("config.dotenv.load_failed", "error", err)
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the settings the daemon cannot start without.
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("STORE_DRIVER", c.Store.Driver, OneOf("memory", "sqlite", "postgres"))
	if c.Store.Driver != "memory" {
		v.Field("STORE_DSN", c.Store.DSN, Required)
	}
	v.Field("HTTP_ADDR", c.Server.HTTPAddr, Required)
	v.Field("UPLOAD_DIR", c.Server.UploadDir, Required)
	v.Field("MAX_UPLOAD_BYTES", c.Server.MaxUploadBytes, Positive)
	v.Field("LLM_PROVIDER", c.LLM.Provider, OneOf("gemini", "vertex"))
	switch c.LLM.Provider {
	case "gemini":
		v.Field("GEMINI_API_KEY", c.LLM.APIKey, Required)
		v.Field("GEMINI_BASE_URL", c.LLM.BaseURL, AbsoluteURL)
	case "vertex":
		v.Field("GOOGLE_CLOUD_PROJECT", c.LLM.Project, Required)
		v.Field("VERTEX_REGION", c.LLM.Region, Required)
	}
	v.Field("GEMINI_MODEL", c.LLM.Model, Required, MaxLength(128))
	v.Field("OCR_LANGUAGES", c.OCR.Languages, Required)
	v.Field("QUEUE_WORKERS", c.Queue.Workers, Positive)
	v.Field("QUEUE_SIZE", c.Queue.Size, Positive)
	return v.Err()
}
