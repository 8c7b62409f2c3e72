package llm

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrEmptyCompletion is returned when the provider answers without any text.
var ErrEmptyCompletion = errors.New("empty completion")

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

type Response struct {
	Content      string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Provider sends one rendered conversation to a completion service. onToken,
// when non-nil, receives text as it arrives. Providers make a single attempt.
type Provider interface {
	ChatStream(ctx context.Context, messages []Message, onToken func(string)) (*Response, error)
}

// Options shared by every provider constructor.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int64
	HTTPClient  *http.Client
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}
