// Package llm drives text completions against a remote inference backend.
//
// The wire protocol differs per engine (llama.cpp server, Kobold, OpenAI
// completions), but the contract is engine-agnostic: a backend takes a
// prompt plus sampling parameters and reports the generated text, whether
// generation hit a defined stop condition or merely ran out of length, and
// the backend-side session slot to reuse on the next call.
package llm

import (
	"context"
	"fmt"
)

// NoSlot means no backend session is allocated; engines that support slots
// interpret it as "allocate a new one".
const NoSlot = -1

// Request carries the engine-agnostic parameters for one completion call.
type Request struct {
	Prompt       string
	Temperature  float64
	TopP         float64
	TopK         int
	Stop         []string
	MaxNewTokens int

	// SlotID is the backend session to reuse, or NoSlot.
	SlotID int

	// ContextWindow is the backend's total context size in tokens. Only
	// engines that require it on the wire (Kobold) send it.
	ContextWindow int
}

// Result is the engine-agnostic outcome of one completion call.
type Result struct {
	// Content is the raw generated text.
	Content string

	// Stopped reports whether generation ended on a defined stop condition
	// (end-of-sequence or a matched stop string) rather than a length cap.
	Stopped bool

	// SlotID is the backend session assigned to this conversation, or
	// NoSlot for engines without session reuse.
	SlotID int
}

// Backend issues one completion request over a specific wire protocol.
// Implementations must be safe for concurrent use.
type Backend interface {
	Complete(ctx context.Context, req Request) (Result, error)
}

// BackendError reports a non-success response from the inference backend.
type BackendError struct {
	Status int
	Body   string
}

func (e *BackendError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, body)
}
