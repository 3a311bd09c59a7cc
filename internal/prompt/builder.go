// Package prompt assembles token-budgeted ChatML prompts: a system preamble
// describing the persona, its tools and the chat, followed by as much recent
// history as the budget allows, followed by an open turn for the persona.
package prompt

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mwadsworth/palaver/internal/chatml"
	"github.com/mwadsworth/palaver/internal/history"
	"github.com/mwadsworth/palaver/internal/tokens"
)

// ErrBudgetExceeded is returned when the fixed prompt parts alone do not fit
// the token budget. History never triggers it; over-budget history is simply
// left out.
var ErrBudgetExceeded = errors.New("token budget exceeded")

// Builder renders prompts for one persona against one history store.
type Builder struct {
	store     history.Store
	estimator tokens.Estimator
	persona   string
	budget    int
	batchSize int

	// catalogue advertises the available tools in the preamble; empty
	// disables all tool guidance.
	catalogue    string
	maxToolDepth int

	logger *slog.Logger
	now    func() time.Time
}

// Options configures a Builder.
type Options struct {
	Persona      string
	Budget       int
	BatchSize    int
	Catalogue    string
	MaxToolDepth int
	Logger       *slog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewBuilder creates a prompt builder over a history store.
func NewBuilder(store history.Store, estimator tokens.Estimator, opts Options) *Builder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Builder{
		store:        store,
		estimator:    estimator,
		persona:      opts.Persona,
		budget:       opts.Budget,
		batchSize:    opts.BatchSize,
		catalogue:    opts.Catalogue,
		maxToolDepth: opts.MaxToolDepth,
		logger:       opts.Logger,
		now:          opts.Now,
	}
}

// Persona returns the name the prompt is generated for.
func (b *Builder) Persona() string {
	return b.persona
}

// Budget returns the total token budget a built prompt must fit in.
func (b *Builder) Budget() int {
	return b.budget
}

// Build assembles the prompt for a conversation and reports the tokens it
// consumed. The preamble and the persona's open turn are charged first;
// history is then walked newest-first, one rendered turn at a time, stopping
// at the first turn that would overflow the budget. The surviving turns are
// emitted in chronological order.
//
// A history store failure degrades to a preamble-only prompt rather than
// failing the cycle.
func (b *Builder) Build(conv history.ConversationID, details ChatDetails) (string, int, error) {
	preamble := chatml.Turn("SYSTEM", preambleText(b.persona, b.now(), b.catalogue, b.maxToolDepth)+chatml.LineSeparator+details.Render()) + chatml.LineSeparator
	openTurn := chatml.OpenTurn(b.persona)

	used := b.estimator.Estimate(preamble) + b.estimator.Estimate(openTurn)
	if used > b.budget {
		return "", used, fmt.Errorf("%w: fixed prompt parts need %d tokens, budget is %d", ErrBudgetExceeded, used, b.budget)
	}

	lines, historyUsed := b.collectHistory(conv, b.budget-used)
	used += historyUsed

	var prompt string
	prompt = preamble
	for i := len(lines) - 1; i >= 0; i-- {
		prompt += lines[i]
	}
	prompt += openTurn

	return prompt, used, nil
}

// collectHistory renders history turns newest-first until the remaining
// budget is spent, returning them still newest-first along with their token
// cost.
func (b *Builder) collectHistory(conv history.ConversationID, remaining int) ([]string, int) {
	var lines []string
	used := 0
	offset := 0

	for {
		batch, err := b.store.FetchLast(conv, b.batchSize, offset)
		if err != nil {
			b.logger.Warn("history fetch failed, prompting without history",
				"conversation", string(conv), "error", err)
			return nil, 0
		}

		for _, msg := range batch {
			sender := msg.Sender
			if msg.IsReply() {
				sender = chatml.ReplyLabel(msg.Sender, msg.ReplyToSender)
			}
			line := chatml.Turn(sender, msg.Text) + chatml.LineSeparator

			cost := b.estimator.Estimate(line)
			if used+cost > remaining {
				return lines, used
			}
			used += cost
			lines = append(lines, line)
		}

		if len(batch) < b.batchSize {
			return lines, used
		}
		offset += len(batch)
	}
}
