package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopmate-ai/shopmate/internal/llm"
	"github.com/shopmate-ai/shopmate/internal/metrics"
)

// Service answers similarity queries by embedding the query payload and
// delegating to the repository. Image queries embed the base64 payload with
// the same multimodal embedding endpoint.
type Service struct {
	repo      Repository
	embedder  llm.Client
	topK      int
	threshold float64
}

func NewService(repo Repository, embedder llm.Client, topK int, threshold float64) *Service {
	return &Service{repo: repo, embedder: embedder, topK: topK, threshold: threshold}
}

// SearchText embeds the joined search terms and returns ranked products.
// An empty result list is a valid outcome, not an error.
func (s *Service) SearchText(ctx context.Context, terms, categories []string, k int) ([]Result, error) {
	metrics.CatalogQueriesTotal.WithLabelValues("text").Inc()

	query := strings.TrimSpace(strings.Join(terms, " "))
	if query == "" {
		return nil, nil
	}

	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding text query: %w", err)
	}
	return s.search(ctx, vecs[0], categories, k)
}

// SearchImage embeds the image payload, optionally averaged with text terms
// when both are present.
func (s *Service) SearchImage(ctx context.Context, terms []string, imageBase64 string, categories []string, k int) ([]Result, error) {
	metrics.CatalogQueriesTotal.WithLabelValues("image").Inc()

	inputs := []string{imageBase64}
	if joined := strings.TrimSpace(strings.Join(terms, " ")); joined != "" {
		inputs = append(inputs, joined)
	}
	vecs, err := s.embedder.Embed(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("embedding image query: %w", err)
	}

	vec := vecs[0]
	if len(vecs) > 1 {
		vec = averageVectors(vecs)
	}
	return s.search(ctx, vec, categories, k)
}

func (s *Service) search(ctx context.Context, vec []float32, categories []string, k int) ([]Result, error) {
	if k <= 0 {
		k = s.topK
	}
	results, err := s.repo.SearchByEmbedding(ctx, vec, categories, k, s.threshold)
	if err != nil {
		return nil, err
	}
	slog.Debug("catalog search", "k", k, "categories", categories, "hits", len(results))
	return results, nil
}

func averageVectors(vecs [][]float32) []float32 {
	out := make([]float32, len(vecs[0]))
	for _, v := range vecs {
		for i := range out {
			out[i] += v[i]
		}
	}
	n := float32(len(vecs))
	for i := range out {
		out[i] /= n
	}
	return out
}
