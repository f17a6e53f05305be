package assistant

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/manualqa/internal/llm"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// DefaultMaxTurns bounds the transcript to this many user/assistant pairs.
const DefaultMaxTurns = 10

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript is the bounded conversation memory. It is not safe for
// concurrent use on its own; Session guards it.
type Transcript struct {
	MaxTurns int
	turns    []Turn
}

func (t *Transcript) limit() int {
	if t.MaxTurns <= 0 {
		return DefaultMaxTurns * 2
	}
	return t.MaxTurns * 2
}

func (t *Transcript) Append(role Role, content string) {
	t.turns = append(t.turns, Turn{Role: role, Content: content})
}

// Trim drops the oldest turns beyond 2*MaxTurns.
func (t *Transcript) Trim() {
	if n := t.limit(); len(t.turns) > n {
		t.turns = append([]Turn(nil), t.turns[len(t.turns)-n:]...)
	}
}

// Render trims the transcript and formats it one turn per line as
// "[User] ..." or "[AI] ...". An empty transcript renders as "[None]".
func (t *Transcript) Render() string {
	t.Trim()
	if len(t.turns) == 0 {
		return llm.EmptyHistory
	}
	lines := make([]string, len(t.turns))
	for i, turn := range t.turns {
		if turn.Role == RoleUser {
			lines[i] = "[User] " + turn.Content
		} else {
			lines[i] = "[AI] " + turn.Content
		}
	}
	return strings.Join(lines, "\n")
}

func (t *Transcript) Reset() { t.turns = nil }

func (t *Transcript) Len() int { return len(t.turns) }

// Turns returns a copy of the stored turns.
func (t *Transcript) Turns() []Turn {
	return append([]Turn{}, t.turns...)
}

// Session is one conversation. Questions against the same session are
// answered strictly one at a time.
type Session struct {
	ID        string
	CreatedAt time.Time

	queryMu sync.Mutex

	mu         sync.Mutex
	updatedAt  time.Time
	transcript Transcript
}

func NewSession(id string, maxTurns int) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	return &Session{
		ID:         id,
		CreatedAt:  now,
		updatedAt:  now,
		transcript: Transcript{MaxTurns: maxTurns},
	}
}

// Render returns the trimmed, formatted transcript.
func (s *Session) Render() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Render()
}

// Turns returns a copy of the transcript.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Turns()
}

// Remember appends a question and its answer.
func (s *Session) Remember(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript.Append(RoleUser, question)
	s.transcript.Append(RoleAssistant, answer)
	s.updatedAt = time.Now()
}

// Reset clears the transcript.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript.Reset()
	s.updatedAt = time.Now()
}

func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

func (s *Session) touch() {
	s.mu.Lock()
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

// SessionStore is a thread-safe in-memory session registry with TTL eviction.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	maxTurns int
}

func NewSessionStore(ttl time.Duration, maxTurns int) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		maxTurns: maxTurns,
	}
}

func (s *SessionStore) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

// GetOrCreate returns the session with id, creating it if needed. An empty
// id always creates a session with a fresh UUID.
func (s *SessionStore) GetOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok && id != "" {
		sess.touch()
		return sess
	}
	sess := NewSession(id, s.maxTurns)
	s.sessions[sess.ID] = sess
	return sess
}

// Reset clears a session's transcript but keeps the session. Sessions are
// only ever removed by Cleanup.
func (s *SessionStore) Reset(id string) error {
	sess, err := s.Get(id)
	if err != nil {
		return err
	}
	sess.Reset()
	return nil
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Cleanup removes sessions idle for longer than the TTL and returns how many
// were removed.
func (s *SessionStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.UpdatedAt()) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
