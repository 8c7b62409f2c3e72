package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"mentor/internal/config"
	"mentor/internal/history"
	"mentor/internal/llm"
)

const summaryPrompt = "Summarize the following conversation concisely, preserving key facts, decisions, and context needed for continuity. Write the summary in the language of the conversation. Output only the summary, no preamble."

// SummaryPrefix introduces the summary turn in the recalled view.
const SummaryPrefix = "Summary of the earlier conversation:\n"

type summary struct {
	text string
	upTo int // number of leading turns covered by text
}

// Compactor summarizes older conversation turns to keep context windows
// manageable. Summaries live in memory only and are rebuilt after restart.
type Compactor struct {
	store    history.Store
	provider llm.Provider
	cfg      config.CompactionConfig

	mu        sync.Mutex
	summaries map[string]summary
}

func NewCompactor(store history.Store, provider llm.Provider, cfg config.CompactionConfig) *Compactor {
	return &Compactor{
		store:     store,
		provider:  provider,
		cfg:       cfg,
		summaries: make(map[string]summary),
	}
}

// Recall returns the latest summary as a system turn followed by every turn
// it does not cover. Once the uncovered turns reach the threshold, all but
// the most recent KeepRecent of them are folded into a new summary first.
func (c *Compactor) Recall(ctx context.Context, sessionID string) ([]history.Turn, error) {
	sess, err := c.store.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("recall %s: %w", sessionID, err)
	}
	turns := sess.Turns()

	c.mu.Lock()
	s := c.summaries[sessionID]
	c.mu.Unlock()

	// The store may have been replaced under us (fresh mode).
	if s.upTo > len(turns) {
		s = summary{}
	}

	if len(turns)-s.upTo >= c.cfg.TurnThreshold {
		cutoff := len(turns) - c.cfg.KeepRecent
		text, err := c.summarize(ctx, s.text, turns[s.upTo:cutoff])
		if err != nil {
			slog.Warn("compaction: summarize failed, replaying previous view",
				"session_id", sessionID,
				"error", err,
			)
		} else {
			slog.Info("compaction: summarized turns",
				"session_id", sessionID,
				"turns_summarized", cutoff-s.upTo,
				"cutoff", cutoff,
			)
			s = summary{text: text, upTo: cutoff}
			c.mu.Lock()
			c.summaries[sessionID] = s
			c.mu.Unlock()
		}
	}

	if s.text == "" {
		return turns, nil
	}
	view := make([]history.Turn, 0, len(turns)-s.upTo+1)
	view = append(view, history.Turn{Role: history.RoleSystem, Content: SummaryPrefix + s.text})
	return append(view, turns[s.upTo:]...), nil
}

func (c *Compactor) summarize(ctx context.Context, previous string, turns []history.Turn) (string, error) {
	var b strings.Builder
	b.WriteString(summaryPrompt)
	b.WriteString("\n\n")
	if previous != "" {
		fmt.Fprintf(&b, "Previous summary:\n%s\n\n", previous)
	}
	b.WriteString("New turns to incorporate:\n")
	for _, t := range turns {
		switch t.Role {
		case history.RoleUser:
			fmt.Fprintf(&b, "User: %s\n", t.Content)
		case history.RoleAssistant:
			fmt.Fprintf(&b, "Assistant: %s\n", t.Content)
		}
	}

	resp, err := c.provider.ChatStream(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: b.String()},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}
