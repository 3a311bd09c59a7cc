// Package respond drives one response cycle: build the prompt, call the
// model, execute any tool calls it embeds, feed the outcomes back, and clean
// the final text for delivery.
package respond

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mwadsworth/palaver/internal/chatml"
	"github.com/mwadsworth/palaver/internal/history"
	"github.com/mwadsworth/palaver/internal/prompt"
	"github.com/mwadsworth/palaver/internal/tokens"
	"github.com/mwadsworth/palaver/internal/tools"
)

// Terminal cycle failures. Each maps to one apology the user sees.
var (
	ErrDepthExceeded = errors.New("tool call depth exceeded")
	ErrNoStop        = errors.New("no stop within retry budget")
	ErrEmptyResult   = errors.New("empty response after cleaning")
)

// User-facing apologies for failed cycles.
const (
	apologyBackend = "I'm sorry, I'm having trouble reaching my model. Please try again later."
	apologyBudget  = "I'm sorry, this conversation has grown too large for me to follow. Please try again."
	apologyDepth   = "I'm sorry, I've exceeded my function call depth. Please try again."
	apologyNoStop  = "I'm sorry, I don't know how to respond to that. Please try again."
	apologyEmpty   = "I'm sorry, I'm having trouble coming up with a response. Please try again."
)

// EventKind classifies cycle events.
type EventKind int

const (
	// EventUpdate is interim progress worth showing while the cycle runs.
	EventUpdate EventKind = iota
	// EventSuccess carries the cleaned final response.
	EventSuccess
	// EventError carries a user-facing apology; the cycle is over.
	EventError
)

// Event is one observable step of a response cycle.
type Event struct {
	Kind EventKind
	Text string
}

// Completer issues one model completion for a conversation.
type Completer interface {
	Complete(ctx context.Context, conv history.ConversationID, prompt string) (stopped bool, text string, err error)
}

// Orchestrator runs response cycles. At most one cycle runs per conversation
// at a time; concurrent requests for the same conversation queue behind the
// running one.
type Orchestrator struct {
	builder   *prompt.Builder
	completer Completer
	registry  *tools.Registry // nil disables tool execution
	estimator tokens.Estimator

	maxTries     int
	maxToolDepth int
	maxLength    int

	logger *slog.Logger

	mu     sync.Mutex
	cycles map[history.ConversationID]*sync.Mutex
}

// Options configures an Orchestrator.
type Options struct {
	Registry     *tools.Registry
	MaxTries     int
	MaxToolDepth int
	MaxLength    int
	Logger       *slog.Logger
}

// New creates an orchestrator.
func New(builder *prompt.Builder, completer Completer, estimator tokens.Estimator, opts Options) *Orchestrator {
	if opts.MaxTries <= 0 {
		opts.MaxTries = 2
	}
	if opts.MaxToolDepth <= 0 {
		opts.MaxToolDepth = 3
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = 750
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		builder:      builder,
		completer:    completer,
		registry:     opts.Registry,
		estimator:    estimator,
		maxTries:     opts.MaxTries,
		maxToolDepth: opts.MaxToolDepth,
		maxLength:    opts.MaxLength,
		logger:       opts.Logger,
		cycles:       make(map[history.ConversationID]*sync.Mutex),
	}
}

// conversationLock returns the cycle lock for a conversation, creating it on
// first use. Locks are never removed; a conversation's lock is tiny and
// conversations are few.
func (o *Orchestrator) conversationLock(conv history.ConversationID) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.cycles[conv]
	if !ok {
		lock = &sync.Mutex{}
		o.cycles[conv] = lock
	}
	return lock
}

// Respond runs one full response cycle for a conversation, emitting events
// as it goes. Exactly one EventSuccess or EventError is emitted last. The
// returned error matches the EventError, nil on success.
func (o *Orchestrator) Respond(ctx context.Context, conv history.ConversationID, details prompt.ChatDetails, emit func(Event)) error {
	lock := o.conversationLock(conv)
	lock.Lock()
	defer lock.Unlock()

	requestID := uuid.NewString()
	logger := o.logger.With("request_id", requestID, "conversation", string(conv))

	basePrompt, used, err := o.builder.Build(conv, details)
	if err != nil {
		logger.Error("prompt build failed", "error", err)
		emit(Event{Kind: EventError, Text: apologyBudget})
		return err
	}

	stops := chatml.StopSequences(o.builder.Persona())

	var (
		tries         int
		toolCalls     int
		compounded    string
		stoppedReason string
		backendErr    error
	)

	for tries < o.maxTries {
		// Tool feedback grows the prompt between rounds; re-check the
		// budget before every completion, not just the first.
		if grown := used + o.estimator.Estimate(compounded); grown > o.builder.Budget() {
			logger.Error("budget exhausted mid-cycle", "tokens", grown, "budget", o.builder.Budget())
			emit(Event{Kind: EventError, Text: apologyBudget})
			return fmt.Errorf("%w: %d tokens after tool feedback, budget is %d", prompt.ErrBudgetExceeded, grown, o.builder.Budget())
		}

		stopped, last, err := o.completer.Complete(ctx, conv, basePrompt+compounded)
		if err != nil {
			// Backend failures consume a try; transient errors often
			// clear on the retry.
			logger.Warn("completion failed", "attempt", tries, "error", err)
			backendErr = err
			tries++
			continue
		}
		backendErr = nil

		if o.registry != nil && tools.HasCall(last) {
			if toolCalls >= o.maxToolDepth {
				logger.Warn("tool call depth exceeded", "depth", toolCalls)
				emit(Event{Kind: EventError, Text: apologyDepth})
				return ErrDepthExceeded
			}
			compounded += chatml.LineSeparator + o.runToolCall(ctx, logger, last, emit)
			toolCalls++
			continue
		}

		if tools.HasFabricatedResult(last) {
			block, _ := tools.ExtractFabricatedResult(last)
			logger.Warn("fabricated tool result", "block", block)
			last = block + chatml.LineSeparator + tools.FabricationNote()
			stopped = false
		}

		tries++
		compounded = strings.TrimRight(chatml.CutAtStops(compounded+last, stops), " \t")

		if stopped {
			stoppedReason = "stopped"
			break
		}
		if len(last) > o.maxLength {
			stoppedReason = "max_length"
			break
		}
	}

	if stoppedReason == "" {
		if backendErr != nil {
			logger.Error("completion retries exhausted", "tries", tries, "error", backendErr)
			emit(Event{Kind: EventError, Text: apologyBackend})
			return backendErr
		}
		logger.Warn("no stop within retry budget", "tries", tries)
		emit(Event{Kind: EventError, Text: apologyNoStop})
		return ErrNoStop
	}
	if stoppedReason == "max_length" {
		logger.Warn("stopped on length heuristic", "length", len(compounded))
	}

	clean := strings.TrimSpace(tools.StripBlocks(compounded))
	if clean == "" {
		logger.Warn("response empty after cleaning")
		emit(Event{Kind: EventError, Text: apologyEmpty})
		return ErrEmptyResult
	}

	logger.Info("response cycle complete", "tries", tries, "tool_calls", toolCalls, "length", len(clean))
	emit(Event{Kind: EventSuccess, Text: clean})
	return nil
}

// runToolCall parses and executes one embedded tool call, returning the
// transcript fragment to feed back: the canonical call followed by its
// result, error, or a parse complaint.
func (o *Orchestrator) runToolCall(ctx context.Context, logger *slog.Logger, raw string, emit func(Event)) string {
	call, canonical, err := tools.ExtractCall(raw)
	if err != nil {
		logger.Warn("unparseable tool call", "error", err)
		return tools.FormatParseError(err)
	}

	emit(Event{Kind: EventUpdate, Text: fmt.Sprintf("Calling function `%s`", call.Name)})
	logger.Info("executing tool call", "tool", call.Name)

	result, execErr := o.registry.Execute(ctx, call)
	if execErr != nil {
		logger.Warn("tool call failed", "tool", call.Name, "error", execErr)
		return canonical + chatml.LineSeparator + tools.FormatError(call, execErr)
	}
	logger.Debug("tool call succeeded", "tool", call.Name, "result_bytes", len(result))
	return canonical + chatml.LineSeparator + tools.FormatResult(call, result)
}
