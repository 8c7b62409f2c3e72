package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
)

// ChatProvider uses the Chat Completions API, which OpenAI-compatible servers
// such as Ollama or vLLM implement even when they lack the Responses API.
type ChatProvider struct {
	client      openai.Client
	model       string
	temperature float64
}

func NewChat(o Options) *ChatProvider {
	return &ChatProvider{
		client:      openai.NewClient(requestOptions(o)...),
		model:       o.Model,
		temperature: o.Temperature,
	}
}

func (p *ChatProvider) ChatStream(ctx context.Context, messages []Message, onToken func(string)) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.model),
		Messages:    toChatMessages(messages),
		Temperature: openai.Float(p.temperature),
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("openai chat completion: no choices: %w", ErrEmptyCompletion)
	}

	content := completion.Choices[0].Message.Content
	if content == "" {
		return nil, fmt.Errorf("openai chat completion: %w", ErrEmptyCompletion)
	}
	if onToken != nil {
		onToken(content)
	}

	return &Response{
		Content:      content,
		Model:        completion.Model,
		InputTokens:  completion.Usage.PromptTokens,
		OutputTokens: completion.Usage.CompletionTokens,
	}, nil
}

func toChatMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, len(msgs))
	for i, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out[i] = openai.SystemMessage(m.Content)
		case RoleAssistant:
			out[i] = openai.AssistantMessage(m.Content)
		default:
			out[i] = openai.UserMessage(m.Content)
		}
	}
	return out
}
