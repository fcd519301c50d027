package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kmrl/dochub/internal/jobs"
)

// APIError is a non-2xx reply from the server.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Detail)
}

// UploadResult mirrors the server's upload reply.
type UploadResult struct {
	Message string   `json:"message"`
	TaskIDs []string `json:"taskIds"`
}

// Client talks to the dochub HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// WithHTTPClient swaps the transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// GetTasks returns the server's job list. Failures are logged and yield an empty list.
func (c *Client) GetTasks(ctx context.Context) []jobs.Job {
	list, err := c.ListTasks(ctx)
	if err != nil {
		c.logger.Error("client.tasks.fetch_failed", "error", err)
		return []jobs.Job{}
	}
	return list
}

// ListTasks is GetTasks with the error exposed.
func (c *Client) ListTasks(ctx context.Context) ([]jobs.Job, error) {
	var list []jobs.Job
	if err := c.getJSON(ctx, "/tasks", &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []jobs.Job{}
	}
	return list, nil
}

func (c *Client) GetTask(ctx context.Context, id string) (jobs.Job, error) {
	var job jobs.Job
	err := c.getJSON(ctx, "/tasks/"+id, &job)
	return job, err
}

// Report fetches the raw analysis report of a completed job.
func (c *Client) Report(ctx context.Context, id string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.getJSON(ctx, "/tasks/"+id+"/report", &raw)
	return raw, err
}

// UploadFiles sends paths as the multipart "files" field.
func (c *Client) UploadFiles(ctx context.Context, paths ...string) error {
	_, err := c.Upload(ctx, paths...)
	return err
}

// Upload is UploadFiles returning the created task ids.
func (c *Client) Upload(ctx context.Context, paths ...string) (UploadResult, error) {
	var out UploadResult
	if len(paths) == 0 {
		return out, fmt.Errorf("no files to upload")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, p := range paths {
		if err := addFile(writer, p); err != nil {
			return out, err
		}
	}
	if err := writer.Close(); err != nil {
		return out, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &buf)
	if err != nil {
		return out, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c.logger.Info("client.upload.start", "files", len(paths), "bytes", buf.Len())
	if err := c.do(req, &out); err != nil {
		return out, err
	}
	c.logger.Info("client.upload.ok", "task_ids", out.TaskIDs)
	return out, nil
}

func addFile(w *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	part, err := w.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy %s: %w", path, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("client.http.response", "method", req.Method, "path", req.URL.Path,
		"status", resp.StatusCode, "latency_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(body, &e) == nil {
			apiErr.Detail = e.Detail
		}
		return apiErr
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}
