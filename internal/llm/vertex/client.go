// Package vertex serves completions through Gemini on Vertex AI, authenticated with
// application default credentials instead of an API key.
package vertex

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kmrl/dochub/internal/common"
)

type Config struct {
	Project     string
	Region      string
	Model       string
	Temperature float32
}

// Client implements llm.Completer.
type Client struct {
	model  *genai.GenerativeModel
	base   *genai.Client
	name   string
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Project == "" || cfg.Region == "" {
		return nil, fmt.Errorf("vertex: project and region cannot be empty")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}

	base, err := genai.NewClient(ctx, cfg.Project, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	model := base.GenerativeModel(cfg.Model)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](cfg.Temperature),
	}

	return &Client{model: model, base: base, name: cfg.Model, logger: logger}, nil
}

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		c.logger.Error("vertex.complete.error", "model", c.name, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", &common.CompletionError{StatusCode: httpStatus(err), Reason: "generate content", Cause: err}
	}

	text, ok := candidateText(resp)
	if !ok {
		c.logger.Error("vertex.complete.empty", "model", c.name)
		return "", &common.CompletionError{StatusCode: http.StatusOK, Reason: "no candidates in response"}
	}

	c.logger.Info("vertex.complete.ok",
		"model", c.name,
		"prompt_len", len(prompt),
		"reply_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func (c *Client) Close() error {
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}

func candidateText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", false
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	if sb.Len() == 0 {
		return "", false
	}
	return sb.String(), true
}

// httpStatus maps the gRPC status of a failed call onto the closest HTTP code.
func httpStatus(err error) int {
	st, ok := status.FromError(err)
	if !ok {
		return 0
	}
	switch st.Code() {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
