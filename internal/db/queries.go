package db

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Session struct {
	ID        string
	CreatedAt string
	UpdatedAt string
	TurnCount int64
}

type Turn struct {
	ID        int64
	SessionID string
	Role      string
	Content   string
	CreatedAt string
}

type InsertTurnParams struct {
	SessionID string
	Role      string
	Content   string
}

const upsertSession = `
INSERT INTO sessions (id) VALUES (?)
ON CONFLICT(id) DO NOTHING`

func (q *Queries) UpsertSession(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, upsertSession, id)
	return err
}

const touchSession = `
UPDATE sessions SET updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now') WHERE id = ?`

func (q *Queries) TouchSession(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, touchSession, id)
	return err
}

const insertTurn = `
INSERT INTO turns (session_id, role, content) VALUES (?, ?, ?)`

func (q *Queries) InsertTurn(ctx context.Context, arg InsertTurnParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertTurn, arg.SessionID, arg.Role, arg.Content)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getTurnsBySession = `
SELECT id, session_id, role, content, created_at
FROM turns
WHERE session_id = ?
ORDER BY id`

func (q *Queries) GetTurnsBySession(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := q.db.QueryContext(ctx, getTurnsBySession, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const countTurnsBySession = `
SELECT COUNT(*) FROM turns WHERE session_id = ?`

func (q *Queries) CountTurnsBySession(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countTurnsBySession, sessionID).Scan(&n)
	return n, err
}

const listSessions = `
SELECT s.id, s.created_at, s.updated_at, COUNT(t.id)
FROM sessions s
LEFT JOIN turns t ON t.session_id = s.id
GROUP BY s.id
ORDER BY s.updated_at DESC`

func (q *Queries) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := q.db.QueryContext(ctx, listSessions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt, &s.TurnCount); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
