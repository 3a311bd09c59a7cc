package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mwadsworth/palaver/internal/config"
	"github.com/mwadsworth/palaver/internal/history"
	"github.com/mwadsworth/palaver/internal/httpkit"
)

// Params are the sampling parameters applied to every completion.
type Params struct {
	Temperature   float64
	TopP          float64
	TopK          int
	MaxNewTokens  int
	ContextWindow int
	Stop          []string
}

// Client issues completions for conversations, maintaining per-conversation
// backend sessions so the engine can reuse its KV cache between calls.
type Client struct {
	backend  Backend
	sessions *Sessions
	params   Params
	logger   *slog.Logger
}

// NewClient wraps a backend with session affinity.
func NewClient(backend Backend, sessions *Sessions, params Params, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		backend:  backend,
		sessions: sessions,
		params:   params,
		logger:   logger,
	}
}

// Sessions exposes the session store for teardown on history clear.
func (c *Client) Sessions() *Sessions {
	return c.sessions
}

// Complete runs one completion for a conversation. It resolves (or lazily
// creates) the conversation's session, passes the remembered slot id to the
// backend, and stores the returned slot id for the next call. Completion
// calls for the same conversation are serialized by the session lock.
func (c *Client) Complete(ctx context.Context, conv history.ConversationID, prompt string) (stopped bool, text string, err error) {
	sess := c.sessions.get(conv)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	req := Request{
		Prompt:        prompt,
		Temperature:   c.params.Temperature,
		TopP:          c.params.TopP,
		TopK:          c.params.TopK,
		Stop:          c.params.Stop,
		MaxNewTokens:  c.params.MaxNewTokens,
		ContextWindow: c.params.ContextWindow,
		SlotID:        sess.slotID,
	}

	c.logger.Log(ctx, config.LevelTrace, "completion request",
		"conversation", string(conv),
		"slot", sess.slotID,
		"prompt_bytes", len(prompt),
	)

	res, err := c.backend.Complete(ctx, req)
	if err != nil {
		return false, "", err
	}

	sess.slotID = res.SlotID

	c.logger.Log(ctx, config.LevelTrace, "completion response",
		"conversation", string(conv),
		"slot", res.SlotID,
		"stopped", res.Stopped,
		"content_bytes", len(res.Content),
	)

	return res.Stopped, res.Content, nil
}

// NewBackendFromConfig constructs the configured engine. Selection happens
// once here; callers only ever see the Backend contract.
func NewBackendFromConfig(cfg *config.Config) (Backend, error) {
	sec := cfg.Model.RequestTimeoutSec
	if sec <= 0 {
		sec = 300
	}
	httpClient := httpkit.NewClient(
		httpkit.WithTimeout(0),
		httpkit.WithResponseHeaderTimeout(time.Duration(sec)*time.Second),
	)

	switch cfg.Model.Engine {
	case "llamacpp":
		return NewLlamaCppBackend(cfg.Model.APIURL, httpClient), nil
	case "kobold":
		return NewKoboldBackend(cfg.Model.APIURL, httpClient), nil
	case "openai":
		return NewOpenAIBackend(cfg.Model.APIURL, cfg.Model.Name, cfg.Model.APIKey, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Model.Engine)
	}
}
