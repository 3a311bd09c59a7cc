// Package history provides per-conversation chat history storage.
package history

import (
	"strconv"
	"time"
)

// ConversationID identifies one chat or forum sub-thread. It is the stable
// key for history lookup and for backend slot affinity.
type ConversationID string

// ChatConversation derives the conversation ID for a plain chat.
func ChatConversation(chatID int64) ConversationID {
	return ConversationID(strconv.FormatInt(chatID, 10))
}

// TopicConversation derives the conversation ID for a forum-style topic.
// Topics share their parent chat's numeric ID, so the thread ID is appended
// to keep the key unique.
func TopicConversation(chatID int64, threadID int) ConversationID {
	return ConversationID(strconv.FormatInt(chatID, 10) + "_" + strconv.Itoa(threadID))
}

// Message is one recorded chat message. Messages are append-only except that
// a platform edit event may overwrite Text in place; they are never deleted
// individually, only bulk-cleared per conversation.
type Message struct {
	// ID is the platform-assigned message identifier, unique within a
	// conversation.
	ID int

	Conversation ConversationID

	// Sender is the resolved display label of the author.
	Sender string

	// ReplyToID is the parent message's ID when this message is a reply,
	// zero otherwise. The reference is weak: the parent may have been
	// cleared already.
	ReplyToID int

	// ReplyToSender is the resolved label of the parent message's author,
	// captured at append time so rendering a reply never needs a second
	// lookup.
	ReplyToSender string

	Text      string
	Timestamp time.Time
}

// IsReply reports whether the message references a parent message.
func (m Message) IsReply() bool {
	return m.ReplyToID != 0
}

// Store is the history capability consumed by the prompt builder and the
// platform glue.
type Store interface {
	// FetchLast returns up to limit messages for the conversation, most
	// recent first, skipping offset newer messages. A short batch (fewer
	// than limit rows) signals end of history.
	FetchLast(conversation ConversationID, limit, offset int) ([]Message, error)

	// Append records a message.
	Append(msg Message) error

	// UpdateText overwrites the body of an existing message in place.
	// Unknown message IDs are ignored.
	UpdateText(conversation ConversationID, messageID int, text string) error

	// Clear removes all history for a conversation.
	Clear(conversation ConversationID) error
}
