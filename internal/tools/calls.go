package tools

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Delimiters of the embedded tool-call protocol. The model emits a call
// block; every other block is feedback appended by the relay.
const (
	callOpen    = "<function-call>"
	callClose   = "</function-call>"
	resultOpen  = "<function-result>"
	resultClose = "</function-result>"
	errorOpen   = "<function-error>"
	errorClose  = "</function-error>"
	noteOpen    = "<function-note>"
	noteClose   = "</function-note>"
)

// Call is one tool invocation requested by the model.
type Call struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// HasCall reports whether the text contains a tool-call block.
func HasCall(text string) bool {
	return strings.Contains(text, callOpen)
}

// trailingCommas matches a comma directly before a closing brace or bracket.
var trailingCommas = regexp.MustCompile(`,\s*([}\]])`)

// ExtractCall parses the first tool-call block out of model output. It also
// returns the canonical rendering of the block, for echoing the call back
// into the transcript.
//
// Models get the JSON nearly right more often than exactly right, so parsing
// is two-stage: strict first, then a relaxed pass that flattens newlines and
// drops trailing commas.
func ExtractCall(text string) (Call, string, error) {
	var call Call

	_, rest, found := strings.Cut(text, callOpen)
	if !found {
		return call, "", fmt.Errorf("no %s block", callOpen)
	}
	payload, _, found := strings.Cut(rest, callClose)
	if !found {
		return call, "", fmt.Errorf("unterminated %s block", callOpen)
	}
	payload = strings.TrimSpace(payload)

	if err := json.Unmarshal([]byte(payload), &call); err != nil {
		relaxed := strings.ReplaceAll(payload, "\n", "")
		relaxed = trailingCommas.ReplaceAllString(relaxed, "$1")
		if err2 := json.Unmarshal([]byte(relaxed), &call); err2 != nil {
			return call, "", fmt.Errorf("malformed call payload: %w", err)
		}
		payload = relaxed
	}

	if call.Name == "" {
		return call, "", fmt.Errorf("call payload has no name")
	}
	canonical := callOpen + strings.ReplaceAll(payload, "\n", "") + callClose
	return call, canonical, nil
}

// FormatResult renders a successful execution as feedback for the model:
// the original call payload with the result attached.
func FormatResult(call Call, result string) string {
	return formatFeedback(resultOpen, resultClose, call, "result", result)
}

// FormatError renders a failed execution as feedback for the model.
func FormatError(call Call, execErr error) string {
	return formatFeedback(errorOpen, errorClose, call, "error", execErr.Error())
}

func formatFeedback(open, closing string, call Call, key, value string) string {
	payload := map[string]any{
		"name": call.Name,
		"args": call.Args,
		key:    value,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"name": %q, %q: %q}`, call.Name, key, value))
	}
	return open + strings.ReplaceAll(string(data), "\n", "") + closing
}

// FormatParseError renders a call the relay could not parse as feedback, so
// the model can correct its syntax on the next round.
func FormatParseError(parseErr error) string {
	data, err := json.Marshal(map[string]string{
		"error": "could not parse function call: " + parseErr.Error(),
	})
	if err != nil {
		data = []byte(`{"error": "could not parse function call"}`)
	}
	return errorOpen + string(data) + errorClose
}

// HasFabricatedResult reports whether the model wrote a result block itself.
// Only the relay is allowed to produce those.
func HasFabricatedResult(text string) bool {
	return strings.Contains(text, resultOpen)
}

// ExtractFabricatedResult returns the canonical rendering of a
// model-fabricated result block.
func ExtractFabricatedResult(text string) (string, bool) {
	_, rest, found := strings.Cut(text, resultOpen)
	if !found {
		return "", false
	}
	payload, _, found := strings.Cut(rest, resultClose)
	if !found {
		return "", false
	}
	return resultOpen + strings.ReplaceAll(strings.TrimSpace(payload), "\n", "") + resultClose, true
}

// FabricationNote is the reprimand appended after a fabricated result.
func FabricationNote() string {
	return noteOpen + `{"note": "You just fabricated a result. Please consider using a function call, instead of generating an uninformed result"}` + noteClose
}

// blockPattern matches any protocol block, including its payload. RE2 has no
// backreferences, so the four pairs are spelled out.
var blockPattern = regexp.MustCompile(`(?s)` +
	callOpen + `.*?` + callClose + `|` +
	resultOpen + `.*?` + resultClose + `|` +
	errorOpen + `.*?` + errorClose + `|` +
	noteOpen + `.*?` + noteClose)

// StripBlocks removes every protocol block from text, leaving only the prose
// meant for the chat. Stripping already-stripped text is a no-op.
func StripBlocks(text string) string {
	return blockPattern.ReplaceAllString(text, "")
}
