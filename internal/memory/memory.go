// Package memory decides how much of a session's history is replayed to
// the model on each exchange.
package memory

import (
	"context"

	"mentor/internal/history"
)

// Memory recalls prior context for a session to feed into the LLM. Recall
// creates the session when it does not exist yet.
type Memory interface {
	Recall(ctx context.Context, sessionID string) ([]history.Turn, error)
}
