package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// OpenAIBackend talks to an OpenAI-style text completions endpoint. No
// session slots; the stop signal is derived from finish_reason.
type OpenAIBackend struct {
	apiURL     string
	model      string
	apiKey     string
	httpClient *http.Client
}

// NewOpenAIBackend creates a backend for an OpenAI-compatible completions
// endpoint. apiKey may be empty for unauthenticated local servers.
func NewOpenAIBackend(apiURL, model, apiKey string, client *http.Client) *OpenAIBackend {
	return &OpenAIBackend{
		apiURL:     apiURL,
		model:      model,
		apiKey:     apiKey,
		httpClient: client,
	}
}

// openAIRequest is the completions wire format.
type openAIRequest struct {
	Model       string   `json:"model,omitempty"`
	Prompt      string   `json:"prompt"`
	Temperature float64  `json:"temperature"`
	TopP        float64  `json:"top_p"`
	N           int      `json:"n"`
	MaxTokens   int      `json:"max_tokens"`
	Stop        []string `json:"stop,omitempty"`
}

// openAIResponse is the completions response shape.
type openAIResponse struct {
	Choices []struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (Result, error) {
	wire := openAIRequest{
		Model:       b.model,
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		N:           1,
		MaxTokens:   req.MaxNewTokens,
		Stop:        req.Stop,
	}

	jsonData, err := json.Marshal(wire)
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, &BackendError{Status: resp.StatusCode, Body: string(body)}
	}

	var wireResp openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}
	if len(wireResp.Choices) == 0 {
		return Result{}, fmt.Errorf("no choices in response")
	}

	choice := wireResp.Choices[0]
	return Result{
		Content: choice.Text,
		Stopped: choice.FinishReason == "stop",
		SlotID:  NoSlot,
	}, nil
}
