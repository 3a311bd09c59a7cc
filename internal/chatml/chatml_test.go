package chatml

import "testing"

func TestTurn(t *testing.T) {
	got := Turn("alice", "hello")
	want := "<|im_start|>alice\nhello\n<|im_end|>"
	if got != want {
		t.Errorf("Turn() = %q, want %q", got, want)
	}
}

func TestOpenTurn(t *testing.T) {
	got := OpenTurn("palaver_bot")
	want := "<|im_start|>palaver_bot\n"
	if got != want {
		t.Errorf("OpenTurn() = %q, want %q", got, want)
	}
}

func TestTurnsAreUnambiguous(t *testing.T) {
	// Two adjacent turns must remain distinguishable after concatenation.
	joined := Turn("alice", "first") + LineSeparator + Turn("bob", "second")
	first := CutAtStops(joined[len(TurnStart+"alice\n"):], []string{TurnEnd})
	if first != "first\n" {
		t.Errorf("first segment = %q, want %q", first, "first\n")
	}
}

func TestSenderLabel(t *testing.T) {
	tests := []struct {
		name     string
		username string
		first    string
		last     string
		want     string
	}{
		{name: "handle wins", username: "alice42", first: "Alice", last: "Ames", want: "alice42"},
		{name: "full name fallback", username: "", first: "Alice", last: "Ames", want: "Alice Ames"},
		{name: "first name only", username: "", first: "Alice", last: "", want: "Alice"},
		{name: "nothing", username: "", first: "", last: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SenderLabel(tt.username, tt.first, tt.last); got != tt.want {
				t.Errorf("SenderLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReplyLabel(t *testing.T) {
	if got := ReplyLabel("alice", "bob"); got != "alice (in reply to bob)" {
		t.Errorf("ReplyLabel() = %q", got)
	}
}

func TestCutAtStops(t *testing.T) {
	stops := StopSequences("palaver_bot")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "no stop present",
			in:   "Paris",
			want: "Paris",
		},
		{
			name: "turn end with hallucinated continuation",
			in:   "Paris<|im_end|>\nHallucinated extra turn",
			want: "Paris",
		},
		{
			name: "newline prefixed stop",
			in:   "Paris\n<|im_end|>more",
			want: "Paris\n",
		},
		{
			name: "model opens its own turn",
			in:   "Paris<|im_start|>palaver_bot\nagain",
			want: "Paris",
		},
		{
			name: "earliest of several stops wins",
			in:   "Paris<|endoftext|>tail<|im_end|>",
			want: "Paris",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CutAtStops(tt.in, stops); got != tt.want {
				t.Errorf("CutAtStops(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCutAtStopsIdempotent(t *testing.T) {
	stops := StopSequences("palaver_bot")
	once := CutAtStops("Paris<|im_end|>\nextra<|endoftext|>junk", stops)
	twice := CutAtStops(once, stops)
	if once != twice {
		t.Errorf("cut is not idempotent: %q != %q", once, twice)
	}
}
