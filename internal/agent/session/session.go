package session

import (
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
)

// Session is one user's conversation with the assistant plus the state of
// any in-progress schedule flow.
type Session struct {
	UserID string

	messages []*schema.Message
	limit    int
	flow     Flow

	createTime time.Time
	updateTime time.Time

	mu sync.RWMutex
}

func newSession(userID string, limit int) *Session {
	now := time.Now()
	return &Session{
		UserID:     userID,
		messages:   make([]*schema.Message, 0, 8),
		limit:      limit,
		createTime: now,
		updateTime: now,
	}
}

func (s *Session) History() []*schema.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]*schema.Message, len(s.messages))
	copy(msgs, s.messages)
	return msgs
}

// Append adds messages and trims the history to the configured limit.
func (s *Session) Append(msgs ...*schema.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		if m != nil {
			s.messages = append(s.messages, m)
		}
	}
	s.messages = trimHistory(s.messages, s.limit)
	s.updateTime = time.Now()
}

// Clear drops the history and abandons any pending flow.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = s.messages[:0]
	s.flow = Flow{}
	s.updateTime = time.Now()
}

func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func (s *Session) Flow() Flow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flow
}

func (s *Session) SetFlow(f Flow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flow = f
	s.updateTime = time.Now()
}

func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updateTime
}

// trimHistory keeps the newest limit messages. The kept window always starts
// at a user turn so no tool result is separated from the call that produced it.
func trimHistory(msgs []*schema.Message, limit int) []*schema.Message {
	if limit <= 0 || len(msgs) <= limit {
		return msgs
	}
	kept := msgs[len(msgs)-limit:]
	for len(kept) > 0 && kept[0].Role != schema.User {
		kept = kept[1:]
	}
	out := make([]*schema.Message, len(kept))
	copy(out, kept)
	return out
}
