// Package scorer talks to the external grading model that scores
// open-ended answers against a rubric.
package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ScoreRequest is what the grading model receives for one answer.
type ScoreRequest struct {
	QuestionText string   `json:"question_text"`
	Rubric       string   `json:"rubric"`
	MaxPoints    int      `json:"max_points"`
	Responses    []string `json:"responses"`
}

// ScoreResult is the model's verdict for one answer.
type ScoreResult struct {
	Score     float64 `json:"score"`
	Feedback  string  `json:"feedback"`
	Rationale string  `json:"rationale"`
}

// ExternalScorer scores one open-ended answer. Implementations must be
// safe for concurrent use by the worker pool.
type ExternalScorer interface {
	Score(ctx context.Context, req *ScoreRequest) (*ScoreResult, error)
}

// HTTPScorer calls the grading model over HTTP.
type HTTPScorer struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPScorer(baseURL, apiKey string, timeout time.Duration) *HTTPScorer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPScorer{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPScorer) Score(ctx context.Context, req *ScoreRequest) (*ScoreResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal score request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/score", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build score request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("scorer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scorer returned status %d", resp.StatusCode)
	}

	var result ScoreResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode score result: %w", err)
	}

	return &result, nil
}
