// Package history keeps per-session conversation turns.
package history

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrInvalidRole is returned when a turn carries a role other than user,
// assistant or system.
var ErrInvalidRole = errors.New("invalid turn role")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Turn is one utterance in a conversation.
type Turn struct {
	Role    Role
	Content string
}

func UserTurn(content string) Turn      { return Turn{Role: RoleUser, Content: content} }
func AssistantTurn(content string) Turn { return Turn{Role: RoleAssistant, Content: content} }

// Store maps a session identifier to its ordered turns.
type Store interface {
	// GetOrCreate returns the session for id, creating an empty one if it
	// has never been seen.
	GetOrCreate(ctx context.Context, sessionID string) (*Session, error)
	// Append adds turns to the end of the session. All turns of one call
	// are recorded together or not at all.
	Append(ctx context.Context, sessionID string, turns ...Turn) error
}

// Session is an identified, insertion-ordered sequence of turns.
type Session struct {
	ID string

	mu    sync.RWMutex
	turns []Turn
}

func newSession(id string, turns []Turn) *Session {
	return &Session{ID: id, turns: turns}
}

// Turns returns a copy of the session's turns in insertion order.
func (s *Session) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.turns)
}

func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

func (s *Session) append(turns ...Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turns...)
}

func validate(turns []Turn) error {
	for i, t := range turns {
		if !t.Role.Valid() {
			return fmt.Errorf("turn %d: %w %q", i, ErrInvalidRole, t.Role)
		}
	}
	return nil
}
