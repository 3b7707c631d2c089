// Package guardrail talks to the content-safety rails service that screens
// user queries and assistant replies.
package guardrail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopmate-ai/shopmate/internal/config"
	"github.com/shopmate-ai/shopmate/internal/metrics"
)

// Direction selects which rail a text is checked against.
type Direction string

const (
	Input  Direction = "input"
	Output Direction = "output"
)

// ErrUnavailable indicates the rails service could not be reached or gave a
// malformed answer. Callers decide between fail-closed and fail-open.
var ErrUnavailable = errors.New("guardrail: service unavailable")

// Verdict is the outcome of one safety check.
type Verdict struct {
	Allowed bool
	Reason  string
}

// Gate checks text payloads against the rails service. The rails protocol
// echoes the submitted text back verbatim when it passes; any rewritten or
// substituted response means the rail fired.
type Gate struct {
	baseURL  string
	failOpen bool
	client   *http.Client
}

func NewGate(cfg config.GuardrailConfig) *Gate {
	return &Gate{
		baseURL:  cfg.URL,
		failOpen: cfg.FailOpen,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

type checkRequest struct {
	UserID int    `json:"user_id"`
	Query  string `json:"query"`
}

type checkResponse struct {
	Response []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"response"`
}

// Check submits text to the given rail. When the service is unreachable the
// default is to block (customer-facing safety boundary); fail-open must be
// opted into via config.
func (g *Gate) Check(ctx context.Context, userID int, text string, dir Direction) Verdict {
	verdict, err := g.check(ctx, userID, text, dir)
	if err != nil {
		slog.Error("guardrail check failed", "direction", dir, "error", err)
		if g.failOpen {
			metrics.GuardrailVerdictsTotal.WithLabelValues(string(dir), "fail_open").Inc()
			return Verdict{Allowed: true, Reason: "guardrail unavailable, fail-open"}
		}
		metrics.GuardrailVerdictsTotal.WithLabelValues(string(dir), "fail_closed").Inc()
		return Verdict{Allowed: false, Reason: "guardrail unavailable"}
	}

	result := "allowed"
	if !verdict.Allowed {
		result = "blocked"
	}
	metrics.GuardrailVerdictsTotal.WithLabelValues(string(dir), result).Inc()
	return verdict
}

func (g *Gate) check(ctx context.Context, userID int, text string, dir Direction) (Verdict, error) {
	body, err := json.Marshal(checkRequest{UserID: userID, Query: text})
	if err != nil {
		return Verdict{}, fmt.Errorf("marshaling check request: %w", err)
	}

	url := fmt.Sprintf("%s/rail/%s/check", g.baseURL, dir)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, fmt.Errorf("building check request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var cr checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return Verdict{}, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}

	// No rail messages means nothing fired.
	if len(cr.Response) == 0 {
		return Verdict{Allowed: true}, nil
	}
	if cr.Response[0].Content == text {
		return Verdict{Allowed: true}, nil
	}
	return Verdict{Allowed: false, Reason: cr.Response[0].Content}, nil
}

// Healthy reports whether the rails service answers HTTP at all.
func (g *Gate) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/", nil)
	if err != nil {
		return false
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
