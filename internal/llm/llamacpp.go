package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// LlamaCppBackend talks to a llama.cpp-style completion server. It is the
// only engine with session slots: passing the slot_id returned by the
// previous call lets the server reuse its KV cache for the conversation.
type LlamaCppBackend struct {
	apiURL     string
	httpClient *http.Client
}

// NewLlamaCppBackend creates a backend for a llama.cpp server completion
// endpoint (e.g. http://localhost:8080/completion).
func NewLlamaCppBackend(apiURL string, client *http.Client) *LlamaCppBackend {
	return &LlamaCppBackend{
		apiURL:     apiURL,
		httpClient: client,
	}
}

// llamaCppRequest is the llama.cpp server wire format.
type llamaCppRequest struct {
	Prompt      string   `json:"prompt"`
	Temperature float64  `json:"temperature"`
	TopP        float64  `json:"top_p"`
	TopK        int      `json:"top_k"`
	NPredict    int      `json:"n_predict"`
	SlotID      int      `json:"slot_id"`
	CachePrompt bool     `json:"cache_prompt"`
	TypicalP    float64  `json:"typical_p"`
	TfsZ        float64  `json:"tfs_z"`
	Stop        []string `json:"stop"`
}

// llamaCppResponse is the llama.cpp server response shape.
type llamaCppResponse struct {
	Content    string `json:"content"`
	StoppedEOS bool   `json:"stopped_eos"`
	StoppedWord bool  `json:"stopped_word"`
	SlotID     int    `json:"slot_id"`
}

func (b *LlamaCppBackend) Complete(ctx context.Context, req Request) (Result, error) {
	wire := llamaCppRequest{
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		TopK:        req.TopK,
		NPredict:    req.MaxNewTokens,
		SlotID:      req.SlotID,
		CachePrompt: true,
		TypicalP:    1,
		TfsZ:        1,
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

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, &BackendError{Status: resp.StatusCode, Body: string(body)}
	}

	var wireResp llamaCppResponse
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}

	return Result{
		Content: wireResp.Content,
		Stopped: wireResp.StoppedEOS || wireResp.StoppedWord,
		SlotID:  wireResp.SlotID,
	}, nil
}
