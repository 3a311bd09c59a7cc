package llm

import (
	"sync"

	"github.com/mwadsworth/palaver/internal/history"
)

// session pairs a conversation with its backend slot. The mutex serializes
// completion calls for the conversation so an interleaved call cannot
// clobber the slot id between request and response.
type session struct {
	mu     sync.Mutex
	slotID int
}

// Sessions is a conversation-keyed store of backend sessions. It is the
// only cross-cycle mutable shared state in the completion layer; entries
// are created lazily and removed when a conversation's history is cleared.
type Sessions struct {
	mu      sync.Mutex
	entries map[history.ConversationID]*session
}

// NewSessions creates an empty session store.
func NewSessions() *Sessions {
	return &Sessions{
		entries: make(map[history.ConversationID]*session),
	}
}

// get returns the session for a conversation, creating it with an
// unallocated slot on first use.
func (s *Sessions) get(conv history.ConversationID) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.entries[conv]
	if !ok {
		sess = &session{slotID: NoSlot}
		s.entries[conv] = sess
	}
	return sess
}

// Drop tears down a conversation's session. The next completion call for
// that conversation allocates a fresh backend slot.
func (s *Sessions) Drop(conv history.ConversationID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, conv)
}

// Len reports how many conversations currently hold a session.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
