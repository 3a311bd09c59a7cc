// Package chatml renders conversation turns in the ChatML dialect consumed
// by the completion backends, and provides the literal stop-sequence
// segmentation used when cleaning raw model output.
//
// Each turn is wrapped in explicit start/end markers so that the backend's
// stop-string matching can reliably segment one turn from the next:
//
//	<|im_start|>alice
//	hello there
//	<|im_end|>
package chatml

import "strings"

const (
	// TurnStart opens a turn and is immediately followed by the sender label.
	TurnStart = "<|im_start|>"

	// TurnEnd closes a turn.
	TurnEnd = "<|im_end|>"

	// EndOfText is emitted by some models instead of a turn marker.
	EndOfText = "<|endoftext|>"

	// LineSeparator joins turns in a prompt.
	LineSeparator = "\n"
)

// Turn renders one complete delimited turn for the given sender.
func Turn(sender, body string) string {
	return TurnStart + sender + LineSeparator + body + LineSeparator + TurnEnd
}

// OpenTurn renders a trailing unterminated turn for the model to complete.
func OpenTurn(sender string) string {
	return TurnStart + sender + LineSeparator
}

// SenderLabel resolves the display label for a participant: the handle when
// one exists, otherwise the concatenated given and family names.
func SenderLabel(username, firstName, lastName string) string {
	if username != "" {
		return username
	}
	return strings.TrimSpace(firstName + " " + lastName)
}

// ReplyLabel augments a sender label with the author of the message being
// replied to.
func ReplyLabel(sender, parentSender string) string {
	return sender + " (in reply to " + parentSender + ")"
}

// StopSequences returns the stop strings for a generation run: the persona's
// own open-turn marker (the model starting a fresh turn as itself), the turn
// terminator, and the end-of-text token.
func StopSequences(persona string) []string {
	return []string{
		OpenTurn(persona),
		TurnEnd,
		EndOfText,
	}
}

// CutAtStops truncates text at the earliest occurrence of any stop sequence,
// matching literally (no regexp). Both bare and newline-prefixed occurrences
// are handled, since truncating at the stop itself leaves at most leading
// whitespace for the caller to trim. Cutting an already-cut string is a
// no-op.
func CutAtStops(text string, stops []string) string {
	for {
		cut := -1
		for _, stop := range stops {
			if stop == "" {
				continue
			}
			if idx := strings.Index(text, stop); idx >= 0 && (cut < 0 || idx < cut) {
				cut = idx
			}
		}
		if cut < 0 {
			return text
		}
		text = text[:cut]
	}
}
