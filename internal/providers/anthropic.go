package providers

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sipeed/picoclaw-core/internal/errs"
)

// AnthropicAdapter wraps the official Messages API client. Vendor-specific
// framing (system-message placement, tool_result grouping) is contained
// entirely here, per spec.md §4.2's adapter contract.
type AnthropicAdapter struct {
	client *anthropic.Client
}

// NewAnthropicAdapter builds an adapter authenticated with apiKey against
// apiBase (or the default Anthropic endpoint if empty).
func NewAnthropicAdapter(apiKey, apiBase string) *AnthropicAdapter {
	opts := []option.RequestOption{option.WithAuthToken(apiKey)}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(apiBase))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicAdapter{client: &client}
}

func (a *AnthropicAdapter) Name() string { return "anthropic" }

func (a *AnthropicAdapter) SupportedModels() []ModelCapability {
	return []ModelCapability{
		{Model: "claude-opus-4-6", ToolCalling: true, Vision: true},
		{Model: "claude-sonnet-4-5", ToolCalling: true, Vision: true},
		{Model: "claude-haiku-4-5", ToolCalling: true, Vision: false},
	}
}

func (a *AnthropicAdapter) Health(ctx context.Context) error {
	return nil
}

func (a *AnthropicAdapter) Chat(ctx context.Context, model string, req ChatRequest) (*ChatResponse, error) {
	params, err := anthropicParams(model, req)
	if err != nil {
		return nil, &errs.RouterError{Provider: "anthropic", Model: model, Retriable: false, Cause: err}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, &errs.RouterError{Provider: "anthropic", Model: model, Retriable: isRetriableAnthropicErr(err), Cause: err}
	}

	return anthropicResponse(resp), nil
}

// The Anthropic API requires every tool_result block belonging to one
// assistant turn to appear together in the next user message, so we merge
// consecutive tool-result turns exactly as the teacher's adapter does.
func anthropicParams(model string, req ChatRequest) (anthropic.MessageNewParams, error) {
	var system []anthropic.TextBlockParam
	var messages []anthropic.MessageParam

	msgs := req.Messages
	for i := 0; i < len(msgs); i++ {
		msg := msgs[i]
		switch msg.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case RoleTool:
			var blocks []anthropic.ContentBlockParamUnion
			for i < len(msgs) && msgs[i].Role == RoleTool {
				blocks = append(blocks, anthropic.NewToolResultBlock(msgs[i].ToolCallID, msgs[i].Content, false))
				i++
			}
			i--
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		case RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				var blocks []anthropic.ContentBlockParamUnion
				if msg.Content != "" {
					blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
				}
				for _, tc := range msg.ToolCalls {
					args := tc.Arguments
					if args == nil {
						args = map[string]any{}
					}
					blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, args, tc.Name))
				}
				messages = append(messages, anthropic.NewAssistantMessage(blocks...))
			} else {
				messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
			}
		}
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(req.Tools) > 0 {
		params.Tools = anthropicTools(req.Tools)
	}
	return params, nil
}

func anthropicTools(defs []ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		schema := anthropic.ToolInputSchemaParam{}
		if props, ok := d.Parameters["properties"].(map[string]any); ok {
			schema.Properties = props
		}
		if req, ok := d.Parameters["required"].([]string); ok {
			schema.Required = req
		}
		tool := anthropic.ToolParam{
			Name:        d.Name,
			Description: anthropic.String(d.Description),
			InputSchema: schema,
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return out
}

func anthropicResponse(resp *anthropic.Message) *ChatResponse {
	var content string
	var calls []ToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			content += block.AsText().Text
		case "tool_use":
			tu := block.AsToolUse()
			var args map[string]any
			if err := json.Unmarshal(tu.Input, &args); err != nil {
				args = map[string]any{"raw": string(tu.Input)}
			}
			calls = append(calls, ToolCall{ID: tu.ID, Name: tu.Name, Arguments: args})
		}
	}

	finish := "stop"
	switch resp.StopReason {
	case anthropic.StopReasonToolUse:
		finish = "tool_calls"
	case anthropic.StopReasonMaxTokens:
		finish = "length"
	}

	return &ChatResponse{
		Content:      content,
		ToolCalls:    calls,
		FinishReason: finish,
		Usage: Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}
}

func isRetriableAnthropicErr(err error) bool {
	var apiErr *anthropic.Error
	if ok := asAnthropicError(err, &apiErr); ok {
		switch apiErr.StatusCode {
		case 401, 403, 400:
			return false
		default:
			return true
		}
	}
	return true
}

func asAnthropicError(err error, target **anthropic.Error) bool {
	ae, ok := err.(*anthropic.Error)
	if !ok {
		return false
	}
	*target = ae
	return true
}
