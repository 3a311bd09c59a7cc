package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// KoboldBackend talks to a KoboldAI-style generate endpoint. Kobold has no
// session slots and does not report why generation ended, so Stopped is
// always false and the caller's length heuristics decide when to finish.
type KoboldBackend struct {
	apiURL     string
	httpClient *http.Client
}

// NewKoboldBackend creates a backend for a Kobold generate endpoint.
func NewKoboldBackend(apiURL string, client *http.Client) *KoboldBackend {
	return &KoboldBackend{
		apiURL:     apiURL,
		httpClient: client,
	}
}

// koboldSamplerOrder matches the sampler chain the models were tuned with.
var koboldSamplerOrder = []int{6, 0, 1, 3, 4, 2, 5}

// koboldRequest is the Kobold wire format.
type koboldRequest struct {
	Prompt           string   `json:"prompt"`
	Temperature      float64  `json:"temperature"`
	TopP             float64  `json:"top_p"`
	TopK             int      `json:"top_k"`
	N                int      `json:"n"`
	MaxContextLength int      `json:"max_context_length"`
	MaxLength        int      `json:"max_length"`
	RepPen           float64  `json:"rep_pen"`
	RepPenRange      int      `json:"rep_pen_range"`
	RepPenSlope      float64  `json:"rep_pen_slope"`
	TopA             float64  `json:"top_a"`
	Typical          float64  `json:"typical"`
	Tfs              float64  `json:"tfs"`
	SamplerOrder     []int    `json:"sampler_order"`
	Quiet            bool     `json:"quiet"`
	StopSequence     []string `json:"stop_sequence"`
}

// koboldResponse is the Kobold response shape.
type koboldResponse struct {
	Results []struct {
		Text string `json:"text"`
	} `json:"results"`
}

func (b *KoboldBackend) Complete(ctx context.Context, req Request) (Result, error) {
	wire := koboldRequest{
		Prompt:           req.Prompt,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		TopK:             req.TopK,
		N:                1,
		MaxContextLength: req.ContextWindow,
		MaxLength:        req.MaxNewTokens,
		RepPen:           1.08,
		RepPenRange:      1024,
		RepPenSlope:      0.7,
		Typical:          1,
		Tfs:              1,
		SamplerOrder:     koboldSamplerOrder,
		Quiet:            true,
		StopSequence:     req.Stop,
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

	var wireResp koboldResponse
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}
	if len(wireResp.Results) == 0 {
		return Result{}, fmt.Errorf("no results in response")
	}

	return Result{
		Content: wireResp.Results[0].Text,
		Stopped: false,
		SlotID:  NoSlot,
	}, nil
}
