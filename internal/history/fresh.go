package history

import "context"

// FreshStore hands out a new, empty session on every lookup and discards
// appended turns, so no exchange ever sees an earlier one.
type FreshStore struct{}

func NewFreshStore() *FreshStore {
	return &FreshStore{}
}

func (FreshStore) GetOrCreate(_ context.Context, sessionID string) (*Session, error) {
	return newSession(sessionID, nil), nil
}

func (FreshStore) Append(_ context.Context, _ string, turns ...Turn) error {
	return validate(turns)
}
