package generation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/animus-ai/animus/provider"
)

// AnthropicAdapter drives the Anthropic Messages API through the official
// SDK. Streaming requests degrade to a single final text step; step
// consumers observe the same terminal sequence either way.
type AnthropicAdapter struct{}

// NewAnthropicAdapter creates the Anthropic adapter.
func NewAnthropicAdapter() *AnthropicAdapter { return &AnthropicAdapter{} }

// Name implements Adapter.
func (a *AnthropicAdapter) Name() string { return provider.Anthropic }

// Generate implements Adapter.
func (a *AnthropicAdapter) Generate(ctx context.Context, req Request) (<-chan Step, <-chan error) {
	out := make(chan Step, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		var clientOpts []option.RequestOption
		if req.Config.APIKey != "" {
			clientOpts = append(clientOpts, option.WithAPIKey(req.Config.APIKey))
		}
		if req.Config.Endpoint != "" {
			clientOpts = append(clientOpts, option.WithBaseURL(req.Config.Endpoint))
		}
		client := anthropic.NewClient(clientOpts...)

		params := anthropic.MessageNewParams{
			Model:       anthropic.Model(req.Config.Model),
			MaxTokens:   int64(req.Config.MaxOutputTokens),
			Temperature: anthropic.Float(req.Config.Temperature),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
			},
		}
		if req.System != "" {
			params.System = []anthropic.TextBlockParam{{Text: req.System}}
		}
		if len(req.Tools) > 0 {
			params.Tools = buildAnthropicTools(req.Tools)
		}

		resp, err := client.Messages.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				textBlock := block.AsText()
				if textBlock.Text != "" {
					out <- Step{Type: StepText, Text: textBlock.Text}
				}
			case "tool_use":
				toolBlock := block.AsToolUse()
				args := ""
				if toolBlock.Input != nil {
					if argsBytes, err := json.Marshal(toolBlock.Input); err == nil {
						args = string(argsBytes)
					}
				}
				out <- Step{Type: StepToolCall, ToolCall: &ToolCall{
					ID:        toolBlock.ID,
					Name:      toolBlock.Name,
					Arguments: args,
				}}
			}
		}

		finishReason := "stop"
		if resp.StopReason != "" {
			finishReason = string(resp.StopReason)
		}
		out <- Step{Type: StepFinish, FinishReason: finishReason}
	}()

	return out, errCh
}

func buildAnthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if tool.Parameters != nil {
			if properties, exists := tool.Parameters["properties"]; exists {
				inputSchema.Properties = properties
			}
			if required, exists := tool.Parameters["required"]; exists {
				switch req := required.(type) {
				case []string:
					inputSchema.Required = req
				case []any:
					var reqStrings []string
					for _, r := range req {
						if s, ok := r.(string); ok {
							reqStrings = append(reqStrings, s)
						}
					}
					inputSchema.Required = reqStrings
				}
			}
		}
		anthropicTools[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Name)
	}
	return anthropicTools
}
