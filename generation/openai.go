package generation

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/animus-ai/animus/provider"
)

// OpenAIAdapter drives the OpenAI Chat Completions API (streaming and
// non-streaming, including function/tool calling) through the official SDK.
// Because endpoint and key come from the resolved ModelConfig per request,
// the same adapter serves OpenAI-compatible gateways configured via settings.
type OpenAIAdapter struct{}

// NewOpenAIAdapter creates the OpenAI adapter.
func NewOpenAIAdapter() *OpenAIAdapter { return &OpenAIAdapter{} }

// Name implements Adapter.
func (a *OpenAIAdapter) Name() string { return provider.OpenAI }

// Generate implements Adapter.
func (a *OpenAIAdapter) Generate(ctx context.Context, req Request) (<-chan Step, <-chan error) {
	out := make(chan Step, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		client := a.client(req.Config)
		params := buildOpenAIParams(req)

		if req.Stream {
			a.handleStreaming(ctx, client, params, out, errCh)
			return
		}
		a.handleNonStreaming(ctx, client, params, out, errCh)
	}()

	return out, errCh
}

func (a *OpenAIAdapter) client(cfg provider.ModelConfig) *openai.Client {
	var clientOpts []option.RequestOption
	if cfg.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.Endpoint))
	}
	client := openai.NewClient(clientOpts...)
	return &client
}

func buildOpenAIParams(req Request) openai.ChatCompletionNewParams {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               req.Config.Model,
		Temperature:         openai.Float(req.Config.Temperature),
		MaxCompletionTokens: openai.Int(int64(req.Config.MaxOutputTokens)),
	}
	if req.Config.FrequencyPenalty != 0 {
		params.FrequencyPenalty = openai.Float(req.Config.FrequencyPenalty)
	}
	if req.Config.PresencePenalty != 0 {
		params.PresencePenalty = openai.Float(req.Config.PresencePenalty)
	}
	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
		for i, tdef := range req.Tools {
			tools[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        tdef.Name,
					Description: openai.String(tdef.Description),
					Parameters:  tdef.Parameters,
				},
			}
		}
		params.Tools = tools
	}
	return params
}

// aggCall aggregates partial tool call streaming deltas (id, name, arguments)
// so complete calls can be emitted when the finish reason arrives.
type aggCall struct{ id, name, args string }

func (a *OpenAIAdapter) handleStreaming(
	ctx context.Context,
	client *openai.Client,
	params openai.ChatCompletionNewParams,
	out chan<- Step,
	errCh chan<- error,
) {
	stream := client.Chat.Completions.NewStreaming(ctx, params)
	toolAgg := map[int64]*aggCall{}
	for stream.Next() {
		ck := stream.Current()
		for _, ch := range ck.Choices {
			if ch.Delta.Content != "" {
				out <- Step{Type: StepText, Text: ch.Delta.Content}
			}
			for _, tc := range ch.Delta.ToolCalls {
				ac, ok := toolAgg[tc.Index]
				if !ok {
					ac = &aggCall{}
					toolAgg[tc.Index] = ac
				}
				if tc.ID != "" {
					ac.id = tc.ID
				}
				if tc.Function.Name != "" {
					ac.name = tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					ac.args += tc.Function.Arguments
				}
			}
			if ch.FinishReason != "" {
				for _, ac := range toolAgg {
					out <- Step{Type: StepToolCall, ToolCall: &ToolCall{ID: ac.id, Name: ac.name, Arguments: ac.args}}
				}
				out <- Step{Type: StepFinish, FinishReason: ch.FinishReason}
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("openai streaming error: %w", err)
	}
}

func (a *OpenAIAdapter) handleNonStreaming(
	ctx context.Context,
	client *openai.Client,
	params openai.ChatCompletionNewParams,
	out chan<- Step,
	errCh chan<- error,
) {
	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("openai api error: %w", err)
		return
	}
	if len(resp.Choices) == 0 {
		errCh <- fmt.Errorf("openai returned no choices")
		return
	}
	ch0 := resp.Choices[0]
	if ch0.Message.Content != "" {
		out <- Step{Type: StepText, Text: ch0.Message.Content}
	}
	for _, tc := range ch0.Message.ToolCalls {
		out <- Step{Type: StepToolCall, ToolCall: &ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments}}
	}
	out <- Step{Type: StepFinish, FinishReason: ch0.FinishReason}
}
