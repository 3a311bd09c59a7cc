package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a SQLite-backed history store.
type SQLiteStore struct {
	db          *sql.DB
	maxMessages int
}

// NewSQLiteStore opens (or creates) the history database at dbPath.
// maxMessages caps the retained rows per conversation; zero or negative
// keeps everything.
func NewSQLiteStore(dbPath string, maxMessages int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:          db,
		maxMessages: maxMessages,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		conversation_id TEXT NOT NULL,
		message_id      INTEGER NOT NULL,
		sender          TEXT NOT NULL,
		reply_to_id     INTEGER NOT NULL DEFAULT 0,
		reply_to_sender TEXT NOT NULL DEFAULT '',
		body            TEXT NOT NULL,
		created_at      TIMESTAMP NOT NULL,
		PRIMARY KEY (conversation_id, message_id)
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conv_time
		ON messages(conversation_id, created_at DESC, message_id DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append records a message and prunes the conversation to the retention cap.
func (s *SQLiteStore) Append(msg Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO messages
			(conversation_id, message_id, sender, reply_to_id, reply_to_sender, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(msg.Conversation), msg.ID, msg.Sender, msg.ReplyToID, msg.ReplyToSender, msg.Text, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if s.maxMessages > 0 {
		if err := s.prune(msg.Conversation); err != nil {
			return fmt.Errorf("prune: %w", err)
		}
	}

	return nil
}

// prune drops the oldest rows beyond the retention cap.
func (s *SQLiteStore) prune(conversation ConversationID) error {
	_, err := s.db.Exec(`
		DELETE FROM messages
		WHERE conversation_id = ?
		  AND message_id NOT IN (
			SELECT message_id FROM messages
			WHERE conversation_id = ?
			ORDER BY created_at DESC, message_id DESC
			LIMIT ?
		  )
	`, string(conversation), string(conversation), s.maxMessages)
	return err
}

// FetchLast returns up to limit messages, most recent first.
func (s *SQLiteStore) FetchLast(conversation ConversationID, limit, offset int) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT message_id, sender, reply_to_id, reply_to_sender, body, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, message_id DESC
		LIMIT ? OFFSET ?
	`, string(conversation), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m := Message{Conversation: conversation}
		if err := rows.Scan(&m.ID, &m.Sender, &m.ReplyToID, &m.ReplyToSender, &m.Text, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// UpdateText overwrites the body of an existing message. Unknown IDs are a
// no-op, matching how platform edit events for unrecorded messages behave.
func (s *SQLiteStore) UpdateText(conversation ConversationID, messageID int, text string) error {
	_, err := s.db.Exec(`
		UPDATE messages SET body = ?
		WHERE conversation_id = ? AND message_id = ?
	`, text, string(conversation), messageID)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return nil
}

// Clear removes all history for a conversation.
func (s *SQLiteStore) Clear(conversation ConversationID) error {
	_, err := s.db.Exec(`
		DELETE FROM messages WHERE conversation_id = ?
	`, string(conversation))
	if err != nil {
		return fmt.Errorf("clear conversation: %w", err)
	}
	return nil
}
