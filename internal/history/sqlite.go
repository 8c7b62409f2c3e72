package history

import (
	"context"
	"fmt"

	"mentor/internal/db"
)

// SQLiteStore persists sessions in the mentor database so they outlive the
// process. Each GetOrCreate returns a snapshot loaded from disk.
type SQLiteStore struct {
	database *db.DB
	q        *db.Queries
}

func NewSQLiteStore(database *db.DB) *SQLiteStore {
	return &SQLiteStore{database: database, q: db.New(database.Conn())}
}

func (s *SQLiteStore) GetOrCreate(ctx context.Context, sessionID string) (*Session, error) {
	if err := s.q.UpsertSession(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("ensuring session: %w", err)
	}

	rows, err := s.q.GetTurnsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading turns: %w", err)
	}

	turns := make([]Turn, 0, len(rows))
	for _, r := range rows {
		turns = append(turns, Turn{Role: Role(r.Role), Content: r.Content})
	}
	return newSession(sessionID, turns), nil
}

func (s *SQLiteStore) Append(ctx context.Context, sessionID string, turns ...Turn) error {
	if err := validate(turns); err != nil {
		return err
	}
	return s.database.InTx(ctx, func(q *db.Queries) error {
		if err := q.UpsertSession(ctx, sessionID); err != nil {
			return fmt.Errorf("ensuring session: %w", err)
		}
		for _, t := range turns {
			if _, err := q.InsertTurn(ctx, db.InsertTurnParams{
				SessionID: sessionID,
				Role:      string(t.Role),
				Content:   t.Content,
			}); err != nil {
				return fmt.Errorf("inserting turn: %w", err)
			}
		}
		return q.TouchSession(ctx, sessionID)
	})
}
