package prompt

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mwadsworth/palaver/internal/chatml"
	"github.com/mwadsworth/palaver/internal/history"
	"github.com/mwadsworth/palaver/internal/tokens"
)

// fakeStore serves messages most-recent-first from a fixed slice.
type fakeStore struct {
	messages []history.Message // chronological
	err      error
	fetches  int
}

func (s *fakeStore) FetchLast(conv history.ConversationID, limit, offset int) ([]history.Message, error) {
	s.fetches++
	if s.err != nil {
		return nil, s.err
	}
	var out []history.Message
	for i := len(s.messages) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.messages[i])
	}
	return out, nil
}

func (s *fakeStore) Append(history.Message) error { return nil }
func (s *fakeStore) UpdateText(history.ConversationID, int, string) error {
	return nil
}
func (s *fakeStore) Clear(history.ConversationID) error { return nil }

func fixedNow() time.Time {
	return time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)
}

func chronological(n int) []history.Message {
	msgs := make([]history.Message, n)
	for i := range msgs {
		msgs[i] = history.Message{
			ID:     i + 1,
			Sender: "alice",
			Text:   fmt.Sprintf("message number %d", i+1),
		}
	}
	return msgs
}

func newTestBuilder(store history.Store, budget int) *Builder {
	return NewBuilder(store, tokens.RatioEstimator{}, Options{
		Persona:   "palaver_bot",
		Budget:    budget,
		BatchSize: 5,
		Now:       fixedNow,
	})
}

func TestBuildEndsWithOpenPersonaTurn(t *testing.T) {
	b := newTestBuilder(&fakeStore{messages: chronological(3)}, 16384)

	prompt, _, err := b.Build(history.ChatConversation(1), ChatDetails{Type: "private", Username: "alice"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.HasSuffix(prompt, chatml.OpenTurn("palaver_bot")) {
		t.Errorf("prompt does not end with the persona's open turn:\n%s", prompt)
	}
	if !strings.HasPrefix(prompt, chatml.TurnStart+"SYSTEM") {
		t.Errorf("prompt does not start with the system turn")
	}
}

func TestBuildHistoryIsChronological(t *testing.T) {
	b := newTestBuilder(&fakeStore{messages: chronological(4)}, 16384)

	prompt, _, err := b.Build(history.ChatConversation(1), ChatDetails{Type: "private"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	last := -1
	for i := 1; i <= 4; i++ {
		pos := strings.Index(prompt, fmt.Sprintf("message number %d", i))
		if pos < 0 {
			t.Fatalf("message %d missing from prompt", i)
		}
		if pos < last {
			t.Errorf("message %d appears before message %d", i, i-1)
		}
		last = pos
	}
}

func TestBuildStaysWithinBudget(t *testing.T) {
	est := tokens.RatioEstimator{}
	store := &fakeStore{messages: chronological(200)}

	// Pick a budget that fits the preamble but not all 200 messages.
	b := newTestBuilder(store, 2000)
	prompt, used, err := b.Build(history.ChatConversation(1), ChatDetails{Type: "private"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if used > 2000 {
		t.Errorf("reported usage %d exceeds budget 2000", used)
	}
	if got := est.Estimate(prompt); got > 2000 {
		t.Errorf("prompt estimates at %d tokens, budget is 2000", got)
	}

	// Dropped history must be the oldest, not the newest.
	if !strings.Contains(prompt, "message number 200") {
		t.Error("most recent message missing from budget-limited prompt")
	}
	if strings.Contains(prompt, "message number 1\n") {
		t.Error("oldest message survived despite budget pressure")
	}
}

func TestBuildEmptyHistory(t *testing.T) {
	b := newTestBuilder(&fakeStore{}, 16384)

	prompt, _, err := b.Build(history.ChatConversation(1), ChatDetails{Type: "private", Username: "bob"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := chatml.OpenTurn("palaver_bot")
	idx := strings.Index(prompt, want)
	if idx < 0 || idx+len(want) != len(prompt) {
		t.Errorf("empty-history prompt is not preamble plus open turn:\n%s", prompt)
	}
}

func TestBuildPreambleOverBudget(t *testing.T) {
	b := newTestBuilder(&fakeStore{}, 10)

	_, _, err := b.Build(history.ChatConversation(1), ChatDetails{Type: "private"})
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("err = %v, want ErrBudgetExceeded", err)
	}
}

func TestBuildStoreFailureDegradesToPreamble(t *testing.T) {
	store := &fakeStore{err: errors.New("disk on fire")}
	b := newTestBuilder(store, 16384)

	prompt, _, err := b.Build(history.ChatConversation(1), ChatDetails{Type: "private"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.HasSuffix(prompt, chatml.OpenTurn("palaver_bot")) {
		t.Errorf("degraded prompt malformed:\n%s", prompt)
	}
}

func TestBuildRendersReplyLabels(t *testing.T) {
	store := &fakeStore{messages: []history.Message{
		{ID: 1, Sender: "alice", Text: "what time is it?"},
		{ID: 2, Sender: "bob", ReplyToID: 1, ReplyToSender: "alice", Text: "noon"},
	}}
	b := newTestBuilder(store, 16384)

	prompt, _, err := b.Build(history.ChatConversation(1), ChatDetails{Type: "group", Title: "clocks"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(prompt, chatml.TurnStart+"bob (in reply to alice)\n") {
		t.Errorf("reply label missing:\n%s", prompt)
	}
}

func TestBuildPaginatesHistory(t *testing.T) {
	store := &fakeStore{messages: chronological(12)}
	b := newTestBuilder(store, 16384) // batch size 5

	_, _, err := b.Build(history.ChatConversation(1), ChatDetails{Type: "private"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if store.fetches != 3 {
		t.Errorf("fetches = %d, want 3 (5+5+2)", store.fetches)
	}
}

func TestChatDetailsRender(t *testing.T) {
	tests := []struct {
		name    string
		details ChatDetails
		want    []string
	}{
		{
			name:    "private",
			details: ChatDetails{Type: "private", Username: "alice", FirstName: "Alice", LastName: "Ng", Bio: "likes go"},
			want:    []string{"Private Chat Details:", "user username: alice", "Alice Ng", "likes go"},
		},
		{
			name:    "group",
			details: ChatDetails{Type: "supergroup", Title: "gophers", Description: "go chat", Members: []string{"alice", "bob"}},
			want:    []string{"Group Chat Details:", "chat title: gophers", "alice, bob"},
		},
		{
			name:    "unknown type",
			details: ChatDetails{Type: "channel"},
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.details.Render()
			if tt.want == nil {
				if got != "" {
					t.Errorf("Render() = %q, want empty", got)
				}
				return
			}
			for _, fragment := range tt.want {
				if !strings.Contains(got, fragment) {
					t.Errorf("Render() missing %q:\n%s", fragment, got)
				}
			}
		})
	}
}

func TestPreambleAdvertisesTools(t *testing.T) {
	withTools := preambleText("palaver_bot", fixedNow(), `{"name": "add"}`, 3)
	if !strings.Contains(withTools, "<function-call>") {
		t.Error("tool preamble missing function-call guidance")
	}
	if !strings.Contains(withTools, `{"name": "add"}`) {
		t.Error("tool preamble missing the catalogue")
	}
	if !strings.Contains(withTools, "maximum of 3 in a row") {
		t.Error("tool preamble missing the depth limit")
	}

	without := preambleText("palaver_bot", fixedNow(), "", 3)
	if strings.Contains(without, "<function-call>") {
		t.Error("plain preamble must not teach the function-call syntax")
	}
}
