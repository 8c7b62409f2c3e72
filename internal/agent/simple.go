package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"mentor/internal/history"
	"mentor/internal/llm"
	"mentor/internal/memory"
	"mentor/internal/prompt"
	"mentor/internal/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// SimpleRunner renders persona, recalled history and the user's text into a
// single completion request. Exchanges on the same session run one at a time.
type SimpleRunner struct {
	provider llm.Provider
	store    history.Store
	memory   memory.Memory
	persona  string

	mu    sync.Mutex
	locks map[string]chan struct{}
}

type Option func(*SimpleRunner)

// WithMemory sets the history-window policy. The default replays every turn.
func WithMemory(m memory.Memory) Option {
	return func(r *SimpleRunner) { r.memory = m }
}

func NewSimpleRunner(provider llm.Provider, store history.Store, persona string, opts ...Option) *SimpleRunner {
	r := &SimpleRunner{
		provider: provider,
		store:    store,
		persona:  persona,
		locks:    make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.memory == nil {
		r.memory = memory.NewConversationMemory(store)
	}
	return r
}

func (r *SimpleRunner) Converse(ctx context.Context, sessionID, userText string, onToken func(string)) (string, error) {
	unlock, err := r.lock(ctx, sessionID)
	if err != nil {
		return "", err
	}
	defer unlock()

	ctx, span := trace.Tracer().Start(ctx, "agent.converse",
		oteltrace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Int("user.message_length", len(userText)),
		),
	)
	defer span.End()

	reply, err := r.converse(ctx, sessionID, userText, onToken)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return reply, nil
}

func (r *SimpleRunner) converse(ctx context.Context, sessionID, userText string, onToken func(string)) (string, error) {
	turns, err := r.memory.Recall(ctx, sessionID)
	if err != nil {
		return "", err
	}
	messages := prompt.Render(r.persona, turns, userText)

	llmCtx, llmSpan := trace.Tracer().Start(ctx, "llm.chat",
		oteltrace.WithAttributes(attribute.Int("llm.message_count", len(messages))),
	)
	resp, err := r.provider.ChatStream(llmCtx, messages, onToken)
	if err != nil {
		llmSpan.RecordError(err)
		llmSpan.SetStatus(codes.Error, err.Error())
		llmSpan.End()
		return "", fmt.Errorf("completion: %w", err)
	}
	llmSpan.SetAttributes(
		attribute.String("llm.model", resp.Model),
		attribute.Int64("llm.input_tokens", resp.InputTokens),
		attribute.Int64("llm.output_tokens", resp.OutputTokens),
	)
	llmSpan.End()

	slog.Debug("exchange completed",
		"session_id", sessionID,
		"history_turns", len(turns),
		"model", resp.Model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
	)

	// A storage failure does not void a reply the user has already seen.
	if err := r.store.Append(ctx, sessionID,
		history.UserTurn(userText),
		history.AssistantTurn(resp.Content),
	); err != nil {
		slog.Warn("failed to record exchange", "session_id", sessionID, "error", err)
	}
	return resp.Content, nil
}

// lock acquires the session's slot, giving up when ctx is done.
func (r *SimpleRunner) lock(ctx context.Context, sessionID string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	slot, ok := r.locks[sessionID]
	if !ok {
		slot = make(chan struct{}, 1)
		r.locks[sessionID] = slot
	}
	r.mu.Unlock()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
