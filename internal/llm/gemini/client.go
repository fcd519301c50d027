package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kmrl/dochub/internal/common"
	"github.com/kmrl/dochub/internal/llm"
)

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature float32 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Complete sends one self-contained prompt and returns the text of the first candidate.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(c.cfg.Model), url.QueryEscape(c.cfg.APIKey))

	body := generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{Temperature: c.cfg.Temperature},
	}

	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, nil, c.logger)
	if err != nil {
		var se *llm.StatusError
		if errors.As(err, &se) {
			c.logger.Error("gemini.complete.status_error",
				"model", c.cfg.Model, "status", se.StatusCode, "body", truncate(string(se.Body), 300),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return "", &common.CompletionError{StatusCode: se.StatusCode, Reason: apiMessage(se.Body), Cause: err}
		}
		return "", &common.CompletionError{StatusCode: status, Reason: "request failed", Cause: err}
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		c.logger.Error("gemini.complete.decode_error", "error", err, "raw_bytes", len(raw))
		return "", &common.CompletionError{StatusCode: status, Reason: "decode response", Cause: err}
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		reason := "no candidates in response"
		if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
			reason = "prompt blocked: " + gr.PromptFeedback.BlockReason
		}
		c.logger.Error("gemini.complete.empty", "reason", reason, "elapsed_ms", time.Since(start).Milliseconds())
		return "", &common.CompletionError{StatusCode: status, Reason: reason}
	}

	text := gr.Candidates[0].Content.Parts[0].Text
	c.logger.Info("gemini.complete.ok",
		"model", c.cfg.Model,
		"prompt_len", len(prompt),
		"reply_len", len(text),
		"finish_reason", gr.Candidates[0].FinishReason,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// apiMessage pulls error.message out of a Google API error body.
func apiMessage(body []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return "non-2xx response"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
