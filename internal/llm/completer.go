// Package llm wraps the hosted completion capability behind a small
// interface and provides the responder that produces dialogue for both
// sides of a conversation.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ShivankK26/ai-voice-agent/internal/api/anthropic"
)

// ErrNoCompletion is returned when the completion call succeeded at the
// transport level but produced no usable text.
var ErrNoCompletion = errors.New("completion returned no usable text")

// Request is a single completion call.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// Completer is the completion capability. Implementations do not retry;
// callers own their fallback behavior.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Client implements Completer over the Anthropic Messages API.
type Client struct {
	api   *anthropic.Client
	model string
}

// NewClient creates a completion client bound to one model.
func NewClient(api *anthropic.Client, model string) *Client {
	return &Client{api: api, model: model}
}

func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	ctx, span := otel.Tracer("llm").Start(ctx, "llm.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", c.model),
		attribute.Int("llm.max_tokens", req.MaxTokens),
	)

	apiReq := &anthropic.MessagesRequest{
		Model:     c.model,
		MaxTokens: req.MaxTokens,
		Messages: []anthropic.Message{
			{Role: "user", Content: anthropic.ContentBlock{{Type: "text", Text: req.User}}},
		},
	}
	if req.System != "" {
		apiReq.System = anthropic.SystemMessages{{Type: "text", Text: req.System}}
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		apiReq.Temperature = &temp
	}

	resp, err := c.api.CreateMessage(ctx, apiReq)
	if err != nil {
		return "", fmt.Errorf("create message: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrNoCompletion
	}
	return text, nil
}
