package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopmate-ai/shopmate/internal/config"
)

// Client is the HTTP client the retriever agent uses to query the catalog
// retriever service. Transient failures are retried once with backoff; the
// retry stays here, never at the orchestrator (a turn may already have had
// visible side effects).
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg config.CatalogConfig) *Client {
	return &Client{
		baseURL:    cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

const retryBackoff = 500 * time.Millisecond

// SearchText queries the catalog with text terms only.
func (c *Client) SearchText(ctx context.Context, terms, categories []string, k int) ([]Result, error) {
	req := TextQueryRequest{Text: terms, Categories: categories, K: k}
	return c.post(ctx, "/query/text", req)
}

// SearchImage queries the catalog with a base64 image, optionally with text.
func (c *Client) SearchImage(ctx context.Context, terms []string, imageBase64 string, categories []string, k int) ([]Result, error) {
	req := ImageQueryRequest{Text: terms, ImageBase64: imageBase64, Categories: categories, K: k}
	return c.post(ctx, "/query/image", req)
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling catalog request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying catalog query", "path", path, "error", lastErr)
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		results, err := c.doPost(ctx, path, body)
		if err == nil {
			return results, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) doPost(ctx context.Context, path string, body []byte) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building catalog request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("querying catalog: status %d", resp.StatusCode)
	}

	var qr QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, fmt.Errorf("decoding catalog response: %w", err)
	}
	return fromQueryResponse(qr), nil
}

// Healthy reports whether the catalog service answers HTTP.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func fromQueryResponse(qr QueryResponse) []Result {
	results := make([]Result, 0, len(qr.IDs))
	for i := range qr.IDs {
		r := Result{ID: qr.IDs[i]}
		if i < len(qr.Names) {
			r.Name = qr.Names[i]
		}
		if i < len(qr.Texts) {
			r.Text = qr.Texts[i]
		}
		if i < len(qr.Images) {
			r.ImageURL = qr.Images[i]
		}
		if i < len(qr.Similarities) {
			r.Similarity = qr.Similarities[i]
		}
		if i < len(qr.Prices) {
			r.Price = qr.Prices[i]
		}
		results = append(results, r)
	}
	return results
}
