package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/shopmate-ai/shopmate/internal/catalog"
	"github.com/shopmate-ai/shopmate/internal/llm"
)

// Searcher is the slice of the catalog client the retriever consumes.
type Searcher interface {
	SearchText(ctx context.Context, terms, categories []string, k int) ([]catalog.Result, error)
	SearchImage(ctx context.Context, terms []string, imageBase64 string, categories []string, k int) ([]catalog.Result, error)
}

// RetrieverResult carries the catalog hits of one turn plus the prompt block
// that grounds the chatter agent in them.
type RetrieverResult struct {
	Retrieved    RetrievedSet
	ContextBlock string
}

// Retriever turns a search intent into catalog results. It extracts search
// entities and candidate categories from the query, runs the vector search,
// and formats the hits for the reply prompt.
type Retriever struct {
	llm        llm.Client
	catalog    Searcher
	categories []string
	topK       int
	logger     *slog.Logger
}

// NewRetriever creates a retriever over the given catalog client. categories
// is the closed list the category extractor may choose from.
func NewRetriever(client llm.Client, cat Searcher, categories []string, topK int, logger *slog.Logger) *Retriever {
	return &Retriever{llm: client, catalog: cat, categories: categories, topK: topK, logger: logger}
}

// Name implements Agent.
func (r *Retriever) Name() string { return "retriever" }

var entityTool = llm.Tool{
	Name:        "search_entities",
	Description: "Report the product terms worth searching the catalog for.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"entities": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Concrete product words extracted from the query.",
			},
		},
		"required": []string{"entities"},
	},
}

func categoryTool(available []string) llm.Tool {
	return llm.Tool{
		Name:        "get_categories",
		Description: "Report the catalog categories matching the query.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"categories": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string", "enum": available},
					"description": "Matching categories, empty when none apply.",
				},
			},
			"required": []string{"categories"},
		},
	}
}

// Retrieve runs the full retrieval step for the turn. Extraction failures
// degrade to searching with the raw query rather than failing the turn; only
// catalog errors propagate.
func (r *Retriever) Retrieve(ctx context.Context, turn *Turn, plan Plan) (RetrieverResult, error) {
	var (
		wg         sync.WaitGroup
		terms      []string
		categories []string
	)

	if strings.TrimSpace(turn.Query) != "" {
		wg.Add(2)
		go func() {
			defer wg.Done()
			terms = r.extractEntities(ctx, turn)
		}()
		go func() {
			defer wg.Done()
			categories = r.extractCategories(ctx, turn)
		}()
		wg.Wait()
	}
	if plan.Category != "" && !containsFold(categories, plan.Category) {
		categories = append(categories, plan.Category)
	}

	var (
		results []catalog.Result
		err     error
	)
	if turn.HasImage() {
		results, err = r.catalog.SearchImage(ctx, terms, turn.Image, categories, r.topK)
	} else {
		if len(terms) == 0 {
			terms = []string{turn.Query}
		}
		results, err = r.catalog.SearchText(ctx, terms, categories, r.topK)
	}
	if err != nil {
		return RetrieverResult{}, fmt.Errorf("catalog search: %w", err)
	}

	if plan.MaxPrice > 0 {
		results = filterByPrice(results, plan.MaxPrice)
	}

	set := RetrievedSet{}
	for _, res := range results {
		set.Items = append(set.Items, RetrievedItem{
			ID:       res.ID,
			Name:     res.Name,
			ImageURL: res.ImageURL,
			Price:    res.Price,
		})
	}
	return RetrieverResult{
		Retrieved:    set,
		ContextBlock: formatContextBlock(results),
	}, nil
}

func (r *Retriever) extractEntities(ctx context.Context, turn *Turn) []string {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: entityPrompt}}
	if turn.Context != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: "Conversation context:\n" + turn.Context})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: turn.Query})

	raw, err := r.llm.CallTool(ctx, llm.ToolRequest{Messages: messages, Tools: []llm.Tool{entityTool}})
	if err != nil {
		r.logger.Warn("entity extraction failed, searching with raw query", "turn_id", turn.ID, "error", err)
		return nil
	}
	var args struct {
		Entities []string `json:"entities"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		r.logger.Warn("entity extraction returned unparseable arguments", "turn_id", turn.ID, "error", err)
		return nil
	}
	return compactStrings(args.Entities)
}

func (r *Retriever) extractCategories(ctx context.Context, turn *Turn) []string {
	if len(r.categories) == 0 {
		return nil
	}
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: categoryPrompt},
		{Role: llm.RoleSystem, Content: "Available categories: " + strings.Join(r.categories, ", ")},
		{Role: llm.RoleUser, Content: turn.Query},
	}
	raw, err := r.llm.CallTool(ctx, llm.ToolRequest{Messages: messages, Tools: []llm.Tool{categoryTool(r.categories)}})
	if err != nil {
		r.logger.Warn("category extraction failed, searching without category filter", "turn_id", turn.ID, "error", err)
		return nil
	}
	var args struct {
		Categories []string `json:"categories"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		r.logger.Warn("category extraction returned unparseable arguments", "turn_id", turn.ID, "error", err)
		return nil
	}
	// Keep only categories the catalog actually has.
	var valid []string
	for _, c := range compactStrings(args.Categories) {
		if containsFold(r.categories, c) {
			valid = append(valid, c)
		}
	}
	return valid
}

// formatContextBlock renders catalog hits as the grounding block of the
// chatter prompt. An empty result set gets an explicit marker so the model
// does not invent products.
func formatContextBlock(results []catalog.Result) string {
	if len(results) == 0 {
		return "No matching products were found in the catalog."
	}
	var b strings.Builder
	b.WriteString("These products are available in the catalog:\n")
	for _, res := range results {
		fmt.Fprintf(&b, "- %s\n", res.Text)
	}
	return b.String()
}

func filterByPrice(results []catalog.Result, maxPrice float64) []catalog.Result {
	var kept []catalog.Result
	for _, res := range results {
		if res.Price <= maxPrice {
			kept = append(kept, res)
		}
	}
	return kept
}

func compactStrings(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
