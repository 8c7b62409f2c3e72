// Package prompt renders the request sent to the completion provider.
package prompt

import (
	"mentor/internal/history"
	"mentor/internal/llm"
)

// Render places the persona first as a system message, then the history
// turns in order, then the new user text. It never truncates and never
// modifies turns.
func Render(persona string, turns []history.Turn, userText string) []llm.Message {
	msgs := make([]llm.Message, 0, len(turns)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: persona})
	for _, t := range turns {
		msgs = append(msgs, llm.Message{Role: llm.Role(t.Role), Content: t.Content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: userText})
	return msgs
}
