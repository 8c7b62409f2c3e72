package agent

import "context"

// Runner carries out one conversational exchange. onToken, when non-nil,
// receives reply text as it streams in.
type Runner interface {
	Converse(ctx context.Context, sessionID, userText string, onToken func(string)) (string, error)
}
