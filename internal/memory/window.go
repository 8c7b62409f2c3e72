package memory

import (
	"context"
	"fmt"

	"mentor/internal/history"
)

// WindowMemory recalls at most the last maxTurns turns. A window never
// opens on an assistant turn, so the model never sees an answer without
// its question.
type WindowMemory struct {
	store    history.Store
	maxTurns int
}

func NewWindowMemory(store history.Store, maxTurns int) *WindowMemory {
	return &WindowMemory{store: store, maxTurns: maxTurns}
}

func (m *WindowMemory) Recall(ctx context.Context, sessionID string) ([]history.Turn, error) {
	sess, err := m.store.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("recall %s: %w", sessionID, err)
	}
	return lastTurns(sess.Turns(), m.maxTurns), nil
}

func lastTurns(turns []history.Turn, n int) []history.Turn {
	if n <= 0 {
		return nil
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	for len(turns) > 0 && turns[0].Role == history.RoleAssistant {
		turns = turns[1:]
	}
	return turns
}
