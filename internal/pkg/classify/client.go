// Package classify talks to the external column-classification service. The
// service suggests header-to-field mappings with confidences; the pipeline
// works fully without it, falling back to heuristic mapping.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lexdrive/ratehub/internal/pkg/env"
)

// SuggestedMapping is one header-to-field suggestion from the service.
type SuggestedMapping struct {
	Header     string `json:"header"`
	Field      string `json:"field"`
	Confidence int    `json:"confidence"`
}

// Suggestion is the full response for one sheet.
type Suggestion struct {
	Mappings          []SuggestedMapping `json:"mappings"`
	SuggestedProvider string             `json:"suggested_provider"`
}

// Client calls the classification service. A nil client or an empty base URL
// means the collaborator is absent.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClientFromEnv builds a client from CLASSIFIER_URL. Returns nil when the
// collaborator is not configured.
func NewClientFromEnv() *Client {
	baseURL := env.GetEnv("CLASSIFIER_URL", "")
	if baseURL == "" {
		return nil
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type suggestRequest struct {
	Headers    []string   `json:"headers"`
	SampleRows [][]string `json:"sample_rows"`
}

// Suggest submits headers plus a handful of sample rows. A nil client
// returns (nil, nil) so callers need no configuration check of their own.
func (c *Client) Suggest(ctx context.Context, headers []string, sampleRows [][]string) (*Suggestion, error) {
	if c == nil {
		return nil, nil
	}

	body, err := json.Marshal(suggestRequest{Headers: headers, SampleRows: sampleRows})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/classify-columns", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var suggestion Suggestion
	if err := json.NewDecoder(resp.Body).Decode(&suggestion); err != nil {
		return nil, fmt.Errorf("classifier response invalid: %w", err)
	}
	return &suggestion, nil
}

// OverrideMap converts suggestions at or above the confidence floor into a
// column mapper override table.
func (s *Suggestion) OverrideMap(minConfidence int) map[string]string {
	if s == nil {
		return nil
	}
	overrides := map[string]string{}
	for _, m := range s.Mappings {
		if m.Confidence >= minConfidence && m.Field != "" {
			overrides[m.Header] = m.Field
		}
	}
	return overrides
}
