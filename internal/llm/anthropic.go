package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicProvider streams from the Messages API. System messages are sent
// in the request's system field, the remaining turns as messages.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
}

func NewAnthropic(o Options) *AnthropicProvider {
	opts := []anthropicoption.RequestOption{
		anthropicoption.WithMaxRetries(0),
		anthropicoption.WithHTTPClient(o.httpClient()),
	}
	if o.APIKey != "" {
		opts = append(opts, anthropicoption.WithAPIKey(o.APIKey))
	}
	if o.BaseURL != "" {
		opts = append(opts, anthropicoption.WithBaseURL(o.BaseURL))
	}

	maxTokens := o.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicProvider{
		client:      anthropic.NewClient(opts...),
		model:       o.Model,
		temperature: o.Temperature,
		maxTokens:   maxTokens,
	}
}

func (p *AnthropicProvider) ChatStream(ctx context.Context, messages []Message, onToken func(string)) (*Response, error) {
	system, msgs := splitSystem(messages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		Messages:    msgs,
		MaxTokens:   p.maxTokens,
		Temperature: anthropic.Float(p.temperature),
	}
	if len(system) > 0 {
		params.System = system
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	resp := &Response{Model: p.model}
	var text strings.Builder

	for stream.Next() {
		event := stream.Current()

		switch variant := event.AsAny().(type) {
		case anthropic.MessageStartEvent:
			resp.Model = string(variant.Message.Model)
			resp.InputTokens = variant.Message.Usage.InputTokens
		case anthropic.ContentBlockDeltaEvent:
			if d, ok := variant.Delta.AsAny().(anthropic.TextDelta); ok && d.Text != "" {
				text.WriteString(d.Text)
				if onToken != nil {
					onToken(d.Text)
				}
			}
		case anthropic.MessageDeltaEvent:
			resp.OutputTokens = variant.Usage.OutputTokens
		}
	}

	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	resp.Content = text.String()
	if resp.Content == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrEmptyCompletion)
	}
	return resp, nil
}

func splitSystem(messages []Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var (
		system []anthropic.TextBlockParam
		msgs   []anthropic.MessageParam
	)
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return system, msgs
}
