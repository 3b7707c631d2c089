package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/shopmate-ai/shopmate/internal/llm"
)

// stubLLM is a scriptable llm.Client. Unset fields fail loudly with the
// zero-value behavior of the respective method.
type stubLLM struct {
	completeFn func(req llm.CompletionRequest) (string, error)
	callToolFn func(req llm.ToolRequest) (json.RawMessage, error)
	streamFn   func(req llm.CompletionRequest, fn func(string) error) error
	embedFn    func(texts []string) ([][]float32, error)

	toolCalls   atomic.Int32
	streamCalls atomic.Int32
}

func (s *stubLLM) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	if s.completeFn == nil {
		return "", nil
	}
	return s.completeFn(req)
}

func (s *stubLLM) CallTool(_ context.Context, req llm.ToolRequest) (json.RawMessage, error) {
	s.toolCalls.Add(1)
	if s.callToolFn == nil {
		return nil, llm.ErrNoToolCall
	}
	return s.callToolFn(req)
}

func (s *stubLLM) Stream(_ context.Context, req llm.CompletionRequest, fn func(string) error) error {
	s.streamCalls.Add(1)
	if s.streamFn == nil {
		return nil
	}
	return s.streamFn(req, fn)
}

func (s *stubLLM) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.embedFn == nil {
		return make([][]float32, len(texts)), nil
	}
	return s.embedFn(texts)
}

// toolArgs marshals a tool-call result for stub scripting.
func toolArgs(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
