// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"errors"
	"slices"
	"sync"

	"mentor/internal/llm"
)

// Provider replays Replies in order. When Func is set it is called instead.
// Err, when set, fails every call.
type Provider struct {
	Replies []string
	Err     error
	Func    func(ctx context.Context, messages []llm.Message) (string, error)

	mu    sync.Mutex
	calls [][]llm.Message
	next  int
}

func (p *Provider) ChatStream(ctx context.Context, messages []llm.Message, onToken func(string)) (*llm.Response, error) {
	p.mu.Lock()
	p.calls = append(p.calls, slices.Clone(messages))
	fn, err := p.Func, p.Err
	var reply string
	if fn == nil && err == nil {
		if p.next >= len(p.Replies) {
			p.mu.Unlock()
			return nil, errors.New("llmtest: no more replies configured")
		}
		reply = p.Replies[p.next]
		p.next++
	}
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if fn != nil {
		if reply, err = fn(ctx, messages); err != nil {
			return nil, err
		}
	}
	if reply == "" {
		return nil, llm.ErrEmptyCompletion
	}
	if onToken != nil {
		onToken(reply)
	}
	return &llm.Response{Content: reply, Model: "llmtest"}, nil
}

// Calls returns the messages of every call so far.
func (p *Provider) Calls() [][]llm.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}

func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
