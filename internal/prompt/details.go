package prompt

import (
	"fmt"
	"strings"
)

// ChatDetails captures what the model should know about the chat it is
// speaking in. Private chats describe the peer; group chats describe the
// room.
type ChatDetails struct {
	Type string // "private", "group" or "supergroup"

	// Private chat fields.
	Username  string
	FirstName string
	LastName  string
	Bio       string

	// Group chat fields.
	Title       string
	Description string
	Members     []string
}

// Render formats the details block for the system preamble. Unknown chat
// types render as an empty block rather than failing the whole prompt.
func (d ChatDetails) Render() string {
	switch d.Type {
	case "private":
		return fmt.Sprintf(
			"Private Chat Details:\n-> user username: %s\n-> user full name: %s %s\n-> user bio: %s\n",
			d.Username, d.FirstName, d.LastName, d.Bio,
		)
	case "group", "supergroup":
		return fmt.Sprintf(
			"Group Chat Details:\n-> chat title: %s\n-> chat description: %s\n-> chat members: %s\n",
			d.Title, d.Description, strings.Join(d.Members, ", "),
		)
	default:
		return ""
	}
}
