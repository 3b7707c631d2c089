package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopmate-ai/shopmate/internal/llm"
)

// ChatterInput is everything the reply must be grounded in.
type ChatterInput struct {
	Query        string
	Context      string // prior conversation context
	CatalogBlock string // retriever output, empty when no retrieval ran
	CartBlock    string // cart agent output, empty when no cart op ran
}

// Chatter composes the user-facing reply, streaming fragments as the model
// produces them.
type Chatter struct {
	llm         llm.Client
	temperature float64
}

// NewChatter creates a chatter agent backed by the given model client.
func NewChatter(client llm.Client) *Chatter {
	return &Chatter{llm: client, temperature: 0.7}
}

// Name implements Agent.
func (c *Chatter) Name() string { return "chatter" }

// Compose streams the reply, invoking emit for every fragment in order, and
// returns the full text for context persistence. A non-nil error from emit
// aborts generation.
func (c *Chatter) Compose(ctx context.Context, in ChatterInput, emit func(fragment string) error) (string, error) {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: chatterPrompt}}
	if in.Context != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: "Conversation so far:\n" + in.Context})
	}
	if in.CatalogBlock != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: "CATALOG:\n" + in.CatalogBlock})
	}
	if in.CartBlock != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: "CART:\n" + in.CartBlock})
	}
	query := in.Query
	if strings.TrimSpace(query) == "" {
		query = "I uploaded an image of a product I'm looking for."
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})

	var full strings.Builder
	err := c.llm.Stream(ctx, llm.CompletionRequest{
		Messages:    messages,
		Temperature: c.temperature,
	}, func(delta string) error {
		full.WriteString(delta)
		return emit(delta)
	})
	if err != nil {
		return full.String(), fmt.Errorf("compose reply: %w", err)
	}
	return full.String(), nil
}
