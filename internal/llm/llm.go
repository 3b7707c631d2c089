// Package llm wraps the OpenAI-compatible inference endpoint behind a small
// interface so agents can be tested against stub models.
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNoToolCall is returned by CallTool when the model answered with plain
// text instead of invoking the requested tool.
var ErrNoToolCall = errors.New("llm: model returned no tool call")

// Chat roles understood by toMessageParams.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    string
	Content string
}

// Tool describes a function-calling tool in JSON-schema form.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// CompletionRequest is a plain chat completion request.
type CompletionRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// ToolRequest is a chat completion request that expects a tool invocation.
type ToolRequest struct {
	Messages    []Message
	Tools       []Tool
	Temperature float64
}

// Client is the model capability consumed by the agents.
type Client interface {
	// Complete returns the full assistant message for the request.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// CallTool runs the request with tools enabled and returns the raw JSON
	// arguments of the first tool call, or ErrNoToolCall.
	CallTool(ctx context.Context, req ToolRequest) (json.RawMessage, error)

	// Stream generates incrementally, invoking fn for every content delta in
	// arrival order. A non-nil error from fn aborts the stream.
	Stream(ctx context.Context, req CompletionRequest, fn func(delta string) error) error

	// Embed returns one embedding vector per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
