package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
)

// OpenAIProvider talks to the Responses API and streams output text.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float64
}

func NewOpenAI(o Options) *OpenAIProvider {
	client := openai.NewClient(requestOptions(o)...)
	return &OpenAIProvider{client: &client, model: o.Model, temperature: o.Temperature}
}

func requestOptions(o Options) []option.RequestOption {
	var opts []option.RequestOption
	if o.APIKey != "" {
		opts = append(opts, option.WithAPIKey(o.APIKey))
	}
	if o.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(o.BaseURL))
	}
	opts = append(opts,
		option.WithMaxRetries(0),
		option.WithHTTPClient(o.httpClient()),
	)
	return opts
}

func (o *OpenAIProvider) ChatStream(ctx context.Context, messages []Message, onToken func(string)) (*Response, error) {
	input := make([]responses.ResponseInputItemUnionParam, 0, len(messages))
	for _, m := range messages {
		input = append(input, responses.ResponseInputItemParamOfMessage(m.Content, responses.EasyInputMessageRole(m.Role)))
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(o.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: input,
		},
		Temperature: openai.Float(o.temperature),
	}

	stream := o.client.Responses.NewStreaming(ctx, params)
	defer stream.Close()

	var (
		completed *responses.Response
		text      strings.Builder
	)

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "response.output_text.delta":
			if event.Delta != "" {
				text.WriteString(event.Delta)
				if onToken != nil {
					onToken(event.Delta)
				}
			}
		case "response.completed":
			completed = &event.Response
		case "response.failed":
			return nil, fmt.Errorf("openai: response failed: %s", event.Response.Error.Message)
		}
	}

	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if completed == nil {
		return nil, fmt.Errorf("openai: stream ended before response.completed")
	}

	content := text.String()
	if content == "" {
		content = outputText(completed.Output)
	}
	if content == "" {
		return nil, fmt.Errorf("openai: %w", ErrEmptyCompletion)
	}

	return &Response{
		Content:      content,
		Model:        string(completed.Model),
		InputTokens:  completed.Usage.InputTokens,
		OutputTokens: completed.Usage.OutputTokens,
	}, nil
}

// outputText joins the output_text parts of every message item.
func outputText(output []responses.ResponseOutputItemUnion) string {
	var b strings.Builder
	for _, item := range output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.AsMessage().Content {
			if c.Type == "output_text" {
				b.WriteString(c.AsOutputText().Text)
			}
		}
	}
	return b.String()
}
