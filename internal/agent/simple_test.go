package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mentor/internal/history"
	"mentor/internal/llm"
	"mentor/internal/llm/llmtest"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const persona = "Ti si mentor za dizajn interijera."

func TestConverse_AccumulatesAlternatingTurns(t *testing.T) {
	store := history.NewMemoryStore()
	provider := &llmtest.Provider{Replies: []string{"r0", "r1", "r2"}}
	r := NewSimpleRunner(provider, store, persona)
	ctx := context.Background()

	for i := range 3 {
		reply, err := r.Converse(ctx, "s1", fmt.Sprintf("q%d", i), nil)
		if err != nil {
			t.Fatalf("exchange %d: %v", i, err)
		}
		if want := fmt.Sprintf("r%d", i); reply != want {
			t.Errorf("expected reply %q, got %q", want, reply)
		}
	}

	sess, _ := store.GetOrCreate(ctx, "s1")
	turns := sess.Turns()
	if len(turns) != 6 {
		t.Fatalf("expected 6 turns, got %d", len(turns))
	}
	for i, turn := range turns {
		wantRole := history.RoleUser
		if i%2 == 1 {
			wantRole = history.RoleAssistant
		}
		if turn.Role != wantRole {
			t.Errorf("turn %d: expected role %q, got %q", i, wantRole, turn.Role)
		}
	}

	// The third request carries persona, four history turns and the new text.
	last := provider.Calls()[2]
	if len(last) != 6 {
		t.Fatalf("expected 6 rendered messages, got %d", len(last))
	}
	if last[0].Role != llm.RoleSystem || last[0].Content != persona {
		t.Errorf("persona should lead the request, got %+v", last[0])
	}
	if last[5].Content != "q2" {
		t.Errorf("new user text should be last, got %+v", last[5])
	}
}

func TestConverse_MaterialsScenario(t *testing.T) {
	store := history.NewMemoryStore()
	provider := &llmtest.Provider{Replies: []string{"Da, pristup materijalima je doživotan."}}
	r := NewSimpleRunner(provider, store, persona)

	reply, err := r.Converse(context.Background(), "default_session", "Da li dobijam pristup materijalima zauvijek?", nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply == "" {
		t.Fatal("expected non-empty reply")
	}

	sent := provider.Calls()[0]
	if len(sent) != 2 || sent[0].Content != persona || sent[1].Content != "Da li dobijam pristup materijalima zauvijek?" {
		t.Errorf("expected persona then the question, got %+v", sent)
	}

	sess, _ := store.GetOrCreate(context.Background(), "default_session")
	turns := sess.Turns()
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0] != history.UserTurn("Da li dobijam pristup materijalima zauvijek?") {
		t.Errorf("unexpected user turn: %+v", turns[0])
	}
	if turns[1] != history.AssistantTurn(reply) {
		t.Errorf("unexpected assistant turn: %+v", turns[1])
	}
}

func TestConverse_FailureLeavesHistoryUntouched(t *testing.T) {
	store := history.NewMemoryStore()
	boom := errors.New("connection reset")
	provider := &llmtest.Provider{Replies: []string{"ok"}}
	r := NewSimpleRunner(provider, store, persona)
	ctx := context.Background()

	if _, err := r.Converse(ctx, "s1", "first", nil); err != nil {
		t.Fatal(err)
	}

	provider.Err = boom
	_, err := r.Converse(ctx, "s1", "second", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}

	sess, _ := store.GetOrCreate(ctx, "s1")
	if sess.Len() != 2 {
		t.Errorf("failed exchange must not be recorded, got %d turns", sess.Len())
	}
}

func TestConverse_EmptyCompletionIsFailure(t *testing.T) {
	store := history.NewMemoryStore()
	provider := &llmtest.Provider{Replies: []string{""}}
	r := NewSimpleRunner(provider, store, persona)

	_, err := r.Converse(context.Background(), "s1", "hello", nil)
	if !errors.Is(err, llm.ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
	sess, _ := store.GetOrCreate(context.Background(), "s1")
	if sess.Len() != 0 {
		t.Errorf("expected no turns, got %d", sess.Len())
	}
}

func TestConverse_FreshStoreForgets(t *testing.T) {
	provider := &llmtest.Provider{Replies: []string{"a", "b"}}
	r := NewSimpleRunner(provider, history.NewFreshStore(), persona)
	ctx := context.Background()

	for _, q := range []string{"prvo", "drugo"} {
		if _, err := r.Converse(ctx, "s1", q, nil); err != nil {
			t.Fatal(err)
		}
	}
	for i, call := range provider.Calls() {
		if len(call) != 2 {
			t.Errorf("call %d: fresh mode should send only persona and input, got %d messages", i, len(call))
		}
	}
}

func TestConverse_PersistStoreRemembers(t *testing.T) {
	provider := &llmtest.Provider{Replies: []string{"a", "b"}}
	r := NewSimpleRunner(provider, history.NewMemoryStore(), persona)
	ctx := context.Background()

	for _, q := range []string{"prvo", "drugo"} {
		if _, err := r.Converse(ctx, "s1", q, nil); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(provider.Calls()[1]); got != 4 {
		t.Errorf("second call should replay the first exchange, got %d messages", got)
	}
}

func TestConverse_StreamsTokens(t *testing.T) {
	provider := &llmtest.Provider{Replies: []string{"zdravo"}}
	r := NewSimpleRunner(provider, history.NewMemoryStore(), persona)

	var got strings.Builder
	if _, err := r.Converse(context.Background(), "s1", "hej", func(s string) { got.WriteString(s) }); err != nil {
		t.Fatal(err)
	}
	if got.String() != "zdravo" {
		t.Errorf("expected streamed %q, got %q", "zdravo", got.String())
	}
}

func TestConverse_SerializesSameSession(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	provider := &llmtest.Provider{Func: func(context.Context, []llm.Message) (string, error) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return "ok", nil
	}}
	store := history.NewMemoryStore()
	r := NewSimpleRunner(provider, store, persona)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := r.Converse(context.Background(), "shared", fmt.Sprintf("q%d", i), nil); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	if maxInFlight.Load() != 1 {
		t.Errorf("expected exchanges on one session to be serialized, saw %d in flight", maxInFlight.Load())
	}

	sess, _ := store.GetOrCreate(context.Background(), "shared")
	turns := sess.Turns()
	if len(turns) != 16 {
		t.Fatalf("expected 16 turns, got %d", len(turns))
	}
	for i := 0; i < len(turns); i += 2 {
		if turns[i].Role != history.RoleUser || turns[i+1].Role != history.RoleAssistant {
			t.Errorf("exchange at %d interleaved: %+v %+v", i, turns[i], turns[i+1])
		}
	}
}

func TestConverse_CancelledWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	provider := &llmtest.Provider{Func: func(context.Context, []llm.Message) (string, error) {
		<-release
		return "ok", nil
	}}
	r := NewSimpleRunner(provider, history.NewMemoryStore(), persona)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Converse(context.Background(), "s1", "blocking", nil)
	}()
	for provider.CallCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Converse(ctx, "s1", "waiting", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	close(release)
	<-done
}

func TestConverse_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	provider := &llmtest.Provider{Replies: []string{"ok"}}
	r := NewSimpleRunner(provider, history.NewMemoryStore(), persona)
	if _, err := r.Converse(context.Background(), "s1", "hi", nil); err != nil {
		t.Fatal(err)
	}
	provider.Err = errors.New("down")
	r.Converse(context.Background(), "s1", "again", nil)

	spans := recorder.Ended()
	if len(spans) != 4 {
		t.Fatalf("expected 4 spans, got %d", len(spans))
	}

	byName := map[string][]sdktrace.ReadOnlySpan{}
	for _, s := range spans {
		byName[s.Name()] = append(byName[s.Name()], s)
	}
	if len(byName["agent.converse"]) != 2 || len(byName["llm.chat"]) != 2 {
		t.Fatalf("unexpected span names: %v", byName)
	}

	chat, converse := byName["llm.chat"][0], byName["agent.converse"][0]
	if chat.Parent().SpanID() != converse.SpanContext().SpanID() {
		t.Error("llm.chat should be a child of agent.converse")
	}
	if got := byName["agent.converse"][1].Status().Code; got != codes.Error {
		t.Errorf("failed exchange should mark span as error, got %v", got)
	}
}
