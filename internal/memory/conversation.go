package memory

import (
	"context"
	"fmt"

	"mentor/internal/history"
)

// ConversationMemory recalls the full conversation history for a session.
type ConversationMemory struct {
	store history.Store
}

func NewConversationMemory(store history.Store) *ConversationMemory {
	return &ConversationMemory{store: store}
}

func (m *ConversationMemory) Recall(ctx context.Context, sessionID string) ([]history.Turn, error) {
	sess, err := m.store.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("recall %s: %w", sessionID, err)
	}
	return sess.Turns(), nil
}
