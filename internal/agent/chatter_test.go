package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopmate-ai/shopmate/internal/llm"
)

func TestChatterStreamsFragmentsInOrder(t *testing.T) {
	stub := &stubLLM{streamFn: func(_ llm.CompletionRequest, fn func(string) error) error {
		for _, d := range []string{"We have ", "two dresses ", "for you."} {
			if err := fn(d); err != nil {
				return err
			}
		}
		return nil
	}}
	c := NewChatter(stub)

	var got []string
	full, err := c.Compose(context.Background(), ChatterInput{Query: "show me dresses"}, func(f string) error {
		got = append(got, f)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"We have ", "two dresses ", "for you."}, got)
	assert.Equal(t, "We have two dresses for you.", full)
}

func TestChatterGroundsPromptInCatalogAndCart(t *testing.T) {
	var seen []llm.Message
	stub := &stubLLM{streamFn: func(req llm.CompletionRequest, fn func(string) error) error {
		seen = req.Messages
		return fn("ok")
	}}
	c := NewChatter(stub)

	_, err := c.Compose(context.Background(), ChatterInput{
		Query:        "add the first one",
		Context:      "User browsed dresses.",
		CatalogBlock: "These products are available in the catalog:\n- Zip Front Dress ($89.90)",
		CartBlock:    "Added 1 x Zip Front Dress to the cart.",
	}, func(string) error { return nil })
	require.NoError(t, err)

	require.Len(t, seen, 5)
	assert.Contains(t, seen[1].Content, "User browsed dresses.")
	assert.Contains(t, seen[2].Content, "CATALOG:")
	assert.Contains(t, seen[3].Content, "CART:")
	assert.Equal(t, llm.RoleUser, seen[4].Role)
}

func TestChatterImageOnlyTurnGetsPlaceholderQuery(t *testing.T) {
	var seen []llm.Message
	stub := &stubLLM{streamFn: func(req llm.CompletionRequest, fn func(string) error) error {
		seen = req.Messages
		return nil
	}}
	c := NewChatter(stub)

	_, err := c.Compose(context.Background(), ChatterInput{Query: "  "}, func(string) error { return nil })
	require.NoError(t, err)
	assert.Contains(t, seen[len(seen)-1].Content, "uploaded an image")
}

func TestChatterEmitErrorAbortsStream(t *testing.T) {
	emitted := 0
	stub := &stubLLM{streamFn: func(_ llm.CompletionRequest, fn func(string) error) error {
		for _, d := range []string{"a", "b", "c"} {
			if err := fn(d); err != nil {
				return err
			}
		}
		return nil
	}}
	c := NewChatter(stub)

	_, err := c.Compose(context.Background(), ChatterInput{Query: "hi"}, func(string) error {
		emitted++
		if emitted == 2 {
			return errors.New("client went away")
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 2, emitted)
}

func TestChatterReturnsPartialTextOnStreamError(t *testing.T) {
	stub := &stubLLM{streamFn: func(_ llm.CompletionRequest, fn func(string) error) error {
		_ = fn("partial ")
		return errors.New("connection reset")
	}}
	c := NewChatter(stub)

	full, err := c.Compose(context.Background(), ChatterInput{Query: "hi"}, func(string) error { return nil })
	require.Error(t, err)
	assert.Equal(t, "partial ", full)
}
