package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopmate-ai/shopmate/internal/catalog"
	"github.com/shopmate-ai/shopmate/internal/llm"
)

// stubSearcher records the search it received and returns canned results.
type stubSearcher struct {
	results []catalog.Result
	err     error

	gotTerms      []string
	gotCategories []string
	gotImage      string
	imageSearch   bool
}

func (s *stubSearcher) SearchText(_ context.Context, terms, categories []string, _ int) ([]catalog.Result, error) {
	s.gotTerms, s.gotCategories = terms, categories
	return s.results, s.err
}

func (s *stubSearcher) SearchImage(_ context.Context, terms []string, image string, categories []string, _ int) ([]catalog.Result, error) {
	s.imageSearch = true
	s.gotTerms, s.gotImage, s.gotCategories = terms, image, categories
	return s.results, s.err
}

// extractorStub answers search_entities and get_categories by tool name.
func extractorStub(entities, categories []string) *stubLLM {
	return &stubLLM{callToolFn: func(req llm.ToolRequest) (json.RawMessage, error) {
		switch req.Tools[0].Name {
		case "search_entities":
			return toolArgs(map[string]any{"entities": entities})
		case "get_categories":
			return toolArgs(map[string]any{"categories": categories})
		}
		return nil, llm.ErrNoToolCall
	}}
}

func sampleResults() []catalog.Result {
	return []catalog.Result{
		{ID: "dress_1", Name: "Zip Front Dress", Text: "Zip Front Dress ($89.90): A sleeveless dress.", Price: 89.90, ImageURL: "img/dress_1.jpg", Similarity: 0.91},
		{ID: "dress_2", Name: "Wrap Midi Dress", Text: "Wrap Midi Dress ($120.00): A wrap dress.", Price: 120.00, ImageURL: "img/dress_2.jpg", Similarity: 0.88},
	}
}

func TestRetrieverSearchesWithExtractedTermsAndCategories(t *testing.T) {
	searcher := &stubSearcher{results: sampleResults()}
	r := NewRetriever(extractorStub([]string{"dress", "summer dress"}, []string{"dress"}), searcher, []string{"dress", "shoes"}, 4, testLogger())

	got, err := r.Retrieve(context.Background(), &Turn{ID: "t1", Query: "show me summer dresses"}, Plan{Intent: IntentSearch})
	require.NoError(t, err)

	assert.Equal(t, []string{"dress", "summer dress"}, searcher.gotTerms)
	assert.Equal(t, []string{"dress"}, searcher.gotCategories)
	require.Len(t, got.Retrieved.Items, 2)
	assert.Equal(t, "dress_1", got.Retrieved.Items[0].ID)
	assert.Equal(t, "Zip Front Dress", got.Retrieved.Items[0].Name)
	assert.Contains(t, got.ContextBlock, "These products are available in the catalog:")
	assert.Contains(t, got.ContextBlock, "Zip Front Dress ($89.90)")
}

func TestRetrieverAppliesPriceBound(t *testing.T) {
	searcher := &stubSearcher{results: sampleResults()}
	r := NewRetriever(extractorStub([]string{"dress"}, nil), searcher, nil, 4, testLogger())

	got, err := r.Retrieve(context.Background(), &Turn{ID: "t1", Query: "dresses under 100"}, Plan{Intent: IntentSearch, MaxPrice: 100})
	require.NoError(t, err)

	require.Len(t, got.Retrieved.Items, 1)
	assert.Equal(t, "dress_1", got.Retrieved.Items[0].ID)
}

func TestRetrieverFallsBackToRawQueryWhenExtractionFails(t *testing.T) {
	searcher := &stubSearcher{results: sampleResults()}
	failing := &stubLLM{callToolFn: func(llm.ToolRequest) (json.RawMessage, error) {
		return nil, errors.New("model down")
	}}
	r := NewRetriever(failing, searcher, []string{"dress"}, 4, testLogger())

	_, err := r.Retrieve(context.Background(), &Turn{ID: "t1", Query: "red shoes"}, Plan{Intent: IntentSearch})
	require.NoError(t, err)
	assert.Equal(t, []string{"red shoes"}, searcher.gotTerms)
	assert.Empty(t, searcher.gotCategories)
}

func TestRetrieverImageTurnUsesImageSearch(t *testing.T) {
	searcher := &stubSearcher{results: sampleResults()[:1]}
	r := NewRetriever(extractorStub(nil, nil), searcher, nil, 4, testLogger())

	got, err := r.Retrieve(context.Background(), &Turn{ID: "t1", Image: "aGVsbG8="}, Plan{Intent: IntentSearch})
	require.NoError(t, err)
	assert.True(t, searcher.imageSearch)
	assert.Equal(t, "aGVsbG8=", searcher.gotImage)
	require.Len(t, got.Retrieved.Items, 1)
}

func TestRetrieverPropagatesCatalogError(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("catalog unreachable")}
	r := NewRetriever(extractorStub([]string{"dress"}, nil), searcher, nil, 4, testLogger())

	_, err := r.Retrieve(context.Background(), &Turn{ID: "t1", Query: "dresses"}, Plan{Intent: IntentSearch})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog search")
}

func TestRetrieverEmptyResultsGetExplicitMarker(t *testing.T) {
	searcher := &stubSearcher{}
	r := NewRetriever(extractorStub([]string{"unicorn"}, nil), searcher, nil, 4, testLogger())

	got, err := r.Retrieve(context.Background(), &Turn{ID: "t1", Query: "unicorn onesie"}, Plan{Intent: IntentSearch})
	require.NoError(t, err)
	assert.True(t, got.Retrieved.IsEmpty())
	assert.Equal(t, "No matching products were found in the catalog.", got.ContextBlock)
	assert.Empty(t, got.Retrieved.ImageMap())
}

func TestRetrieverDropsUnknownCategories(t *testing.T) {
	searcher := &stubSearcher{results: sampleResults()}
	r := NewRetriever(extractorStub([]string{"dress"}, []string{"dress", "furniture"}), searcher, []string{"dress", "shoes"}, 4, testLogger())

	_, err := r.Retrieve(context.Background(), &Turn{ID: "t1", Query: "dresses"}, Plan{Intent: IntentSearch})
	require.NoError(t, err)
	assert.Equal(t, []string{"dress"}, searcher.gotCategories)
}
