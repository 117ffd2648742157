package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Logit is a raw, unnormalised score for one label.
type Logit struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Model scores text against every diagnosis label.
type Model interface {
	Logits(ctx context.Context, text string) ([]Logit, error)
}

// HTTPModel calls a hosted text-classification endpoint that returns raw logits
// (function_to_apply "none") for every label.
type HTTPModel struct {
	url    string
	token  string
	client *http.Client
}

func NewHTTPModel(url, token string, client *http.Client) *HTTPModel {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPModel{url: url, token: token, client: client}
}

type inferenceRequest struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
}

type inferenceParameters struct {
	FunctionToApply string `json:"function_to_apply"`
	Truncation      bool   `json:"truncation"`
	// null asks the endpoint for every label instead of the top one.
	TopK            *int   `json:"top_k"`
}

func (m *HTTPModel) Logits(ctx context.Context, text string) ([]Logit, error) {
	payload, err := json.Marshal(inferenceRequest{
		Inputs:     text,
		Parameters: inferenceParameters{FunctionToApply: "none", Truncation: true},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.token != "" {
		req.Header.Set("Authorization", "Bearer "+m.token)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read inference response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference endpoint returned %s: %s", resp.Status, string(body))
	}
	return decodeLogits(body)
}

// decodeLogits accepts both [[{label,score}]] and [{label,score}].
func decodeLogits(body []byte) ([]Logit, error) {
	var nested [][]Logit
	if err := json.Unmarshal(body, &nested); err == nil {
		if len(nested) == 0 {
			return nil, nil
		}
		return nested[0], nil
	}
	var flat []Logit
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, fmt.Errorf("decode inference response: %w", err)
	}
	return flat, nil
}
