package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the accumulated, validated state of one conversation. Answers
// only ever grow; a value is present only if it passed validation.
type Session struct {
	ConversationID string            `json:"conversation_id"`
	Answers        map[string]string `json:"answers"`
	StartedAt      time.Time         `json:"started_at"`
	LastActivityAt time.Time         `json:"last_activity_at"`
}

// Store holds per-conversation lead state for the process lifetime. Entries
// are created lazily and never evicted.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	locks    map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Ensure returns the session for the given conversation, creating it on first
// use. An empty id gets a freshly generated one.
func (s *Store) Ensure(conversationID string) *Session {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[conversationID]
	if !ok {
		now := time.Now().UTC()
		sess = &Session{
			ConversationID: conversationID,
			Answers:        make(map[string]string),
			StartedAt:      now,
			LastActivityAt: now,
		}
		s.sessions[conversationID] = sess
	}
	return clone(sess)
}

// Merge applies accepted field updates in one step and returns the post-merge
// answers snapshot. Keys absent from updates are left untouched.
func (s *Store) Merge(conversationID string, updates map[string]string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[conversationID]
	if !ok {
		now := time.Now().UTC()
		sess = &Session{
			ConversationID: conversationID,
			Answers:        make(map[string]string),
			StartedAt:      now,
		}
		s.sessions[conversationID] = sess
	}
	for k, v := range updates {
		sess.Answers[k] = v
	}
	sess.LastActivityAt = time.Now().UTC()
	return copyAnswers(sess.Answers)
}

// Answers returns a snapshot of the conversation's current answers. Unknown
// conversations yield an empty map.
func (s *Store) Answers(conversationID string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[conversationID]
	if !ok {
		return map[string]string{}
	}
	return copyAnswers(sess.Answers)
}

// Count reports how many conversations the store has seen.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Acquire takes the per-conversation turn lock and returns its release func.
// Turns for the same conversation are serialized across the whole
// plan/validate/merge pipeline; turns for different conversations never
// contend.
func (s *Store) Acquire(conversationID string) func() {
	s.mu.Lock()
	l, ok := s.locks[conversationID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[conversationID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func clone(sess *Session) *Session {
	c := *sess
	c.Answers = copyAnswers(sess.Answers)
	return &c
}

func copyAnswers(answers map[string]string) map[string]string {
	out := make(map[string]string, len(answers))
	for k, v := range answers {
		out[k] = v
	}
	return out
}
