package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/shopmate-ai/shopmate/internal/llm"
)

// Planner classifies each turn into an intent and extracts the parameters
// downstream agents need. It never fails a turn: any model or parse error
// degrades to the general intent so the chatter agent can still answer.
type Planner struct {
	llm    llm.Client
	logger *slog.Logger
}

// NewPlanner creates a planner backed by the given model client.
func NewPlanner(client llm.Client, logger *slog.Logger) *Planner {
	return &Planner{llm: client, logger: logger}
}

// Name implements Agent.
func (p *Planner) Name() string { return "planner" }

var routeTool = llm.Tool{
	Name:        "route_query",
	Description: "Classify a shopping query and extract its parameters.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"intent": map[string]any{
				"type": "string",
				"enum": []string{
					string(IntentSearch), string(IntentCartAdd), string(IntentCartRemove),
					string(IntentCartView), string(IntentCartClear), string(IntentCartUpdateQty),
					string(IntentGeneral),
				},
			},
			"category": map[string]any{
				"type":        "string",
				"description": "Product category mentioned in the query, if any.",
			},
			"max_price": map[string]any{
				"type":        "number",
				"description": "Upper price bound stated by the user, 0 when none.",
			},
			"item_ref": map[string]any{
				"type":        "string",
				"description": "How the user referred to the item for cart operations: a product id, a (partial) name, or an ordinal like 'the second one'.",
			},
			"quantity": map[string]any{
				"type":        "integer",
				"description": "Quantity for cart add or update operations, 0 when unstated.",
			},
		},
		"required": []string{"intent"},
	},
}

type routeArgs struct {
	Intent   string  `json:"intent"`
	Category string  `json:"category"`
	MaxPrice float64 `json:"max_price"`
	ItemRef  string  `json:"item_ref"`
	Quantity int     `json:"quantity"`
}

// Plan routes the turn. A turn carrying an image and no text is a visual
// search and skips the model call entirely.
func (p *Planner) Plan(ctx context.Context, turn *Turn) Plan {
	if turn.HasImage() && strings.TrimSpace(turn.Query) == "" {
		return Plan{Intent: IntentSearch}
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: plannerPrompt},
	}
	if turn.Context != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: "Conversation context:\n" + turn.Context})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: turn.Query})

	raw, err := p.llm.CallTool(ctx, llm.ToolRequest{
		Messages:    messages,
		Tools:       []llm.Tool{routeTool},
		Temperature: 0,
	})
	if err != nil {
		p.logger.Warn("planner falling back to general intent", "turn_id", turn.ID, "error", err)
		return Plan{Intent: IntentGeneral}
	}

	var args routeArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		p.logger.Warn("planner received unparseable routing arguments", "turn_id", turn.ID, "error", err)
		return Plan{Intent: IntentGeneral}
	}

	plan := Plan{
		Intent:   Intent(args.Intent),
		Category: strings.TrimSpace(args.Category),
		MaxPrice: args.MaxPrice,
		ItemRef:  strings.TrimSpace(args.ItemRef),
		Quantity: args.Quantity,
	}
	if !knownIntent(plan.Intent) {
		p.logger.Warn("planner produced unknown intent", "turn_id", turn.ID, "intent", args.Intent)
		plan = Plan{Intent: IntentGeneral}
	}
	return plan
}

func knownIntent(i Intent) bool {
	switch i {
	case IntentSearch, IntentCartAdd, IntentCartRemove, IntentCartView,
		IntentCartClear, IntentCartUpdateQty, IntentGeneral:
		return true
	}
	return false
}
