package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/shopmate-ai/shopmate/internal/llm"
)

// Summarizer keeps the persisted conversation context within its budget.
// Content under budget passes through untouched; over-budget content gets
// condensed through the model, oldest turns first.
type Summarizer struct {
	llm    llm.Client
	budget int // characters
	logger *slog.Logger
}

// NewSummarizer creates a summarizer with the given character budget.
func NewSummarizer(client llm.Client, budget int, logger *slog.Logger) *Summarizer {
	return &Summarizer{llm: client, budget: budget, logger: logger}
}

// Name implements Agent.
func (s *Summarizer) Name() string { return "summary" }

var condenseTool = llm.Tool{
	Name:        "condense_context",
	Description: "Replace the conversation context with a shorter summary.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{
				"type":        "string",
				"description": "Condensed context preserving products of interest, cart state and user preferences.",
			},
		},
		"required": []string{"summary"},
	},
}

// Condense returns the context to persist for the session. The result is
// always within budget: when the model fails or overshoots, the oldest
// content is dropped at a line boundary instead.
func (s *Summarizer) Condense(ctx context.Context, convo string) string {
	if len(convo) <= s.budget {
		return convo
	}

	raw, err := s.llm.CallTool(ctx, llm.ToolRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: summaryPrompt},
			{Role: llm.RoleUser, Content: convo},
		},
		Tools: []llm.Tool{condenseTool},
	})
	if err != nil {
		s.logger.Warn("context condensation failed, trimming oldest lines", "error", err)
		return trimOldest(convo, s.budget)
	}
	var args struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(raw, &args); err != nil || strings.TrimSpace(args.Summary) == "" {
		s.logger.Warn("context condensation returned unusable summary", "error", err)
		return trimOldest(convo, s.budget)
	}
	if len(args.Summary) > s.budget {
		return trimOldest(args.Summary, s.budget)
	}
	return args.Summary
}

// trimOldest drops whole leading lines until the text fits the budget. As a
// last resort a single oversized line is cut at a rune boundary.
func trimOldest(text string, budget int) string {
	for len(text) > budget {
		idx := strings.IndexByte(text, '\n')
		if idx < 0 {
			runes := []rune(text)
			if len(runes) > budget {
				runes = runes[len(runes)-budget:]
			}
			return string(runes)
		}
		text = text[idx+1:]
	}
	return text
}
