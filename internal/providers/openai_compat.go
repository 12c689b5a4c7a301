package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/sipeed/picoclaw-core/internal/errs"
)

// OpenAICompatAdapter talks the OpenAI chat-completions wire format. It
// backs both the "openai" provider and the "local" provider (an
// OpenAI-compatible endpoint for self-hosted models), matching
// SPEC_FULL.md §4.2's domain-stack note.
type OpenAICompatAdapter struct {
	providerName string
	models       []ModelCapability
	client       *openai.Client
}

// NewOpenAICompatAdapter builds an adapter against apiBase (empty uses the
// OpenAI default endpoint).
func NewOpenAICompatAdapter(providerName, apiKey, apiBase string, models []ModelCapability) *OpenAICompatAdapter {
	opts := []option.RequestOption{option.WithHTTPClient(&http.Client{})}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(apiBase, "/")))
	}
	client := openai.NewClient(opts...)
	return &OpenAICompatAdapter{providerName: providerName, models: models, client: &client}
}

func (a *OpenAICompatAdapter) Name() string { return a.providerName }

func (a *OpenAICompatAdapter) SupportedModels() []ModelCapability { return a.models }

func (a *OpenAICompatAdapter) Health(ctx context.Context) error { return nil }

func (a *OpenAICompatAdapter) Chat(ctx context.Context, model string, req ChatRequest) (*ChatResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: openaiMessages(req.Messages),
	}
	if len(req.Tools) > 0 {
		params.Tools = openaiTools(req.Tools)
		params.ToolChoice.OfAuto = openai.String(string(openai.ChatCompletionToolChoiceOptionAutoAuto))
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		retriable := true
		if errors.As(err, &apiErr) {
			retriable = apiErr.StatusCode >= 500 || apiErr.StatusCode == 429
		}
		return nil, &errs.RouterError{Provider: a.providerName, Model: model, Retriable: retriable, Cause: err}
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, &errs.RouterError{Provider: a.providerName, Model: model, Retriable: true, Cause: errors.New("no choices returned")}
	}

	choice := resp.Choices[0]
	return &ChatResponse{
		Content:      choice.Message.Content,
		ToolCalls:    openaiToolCalls(choice.Message.ToolCalls),
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}

func openaiMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			out = append(out, openaiAssistantMessage(msg))
		case RoleTool:
			out = append(out, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

func openaiAssistantMessage(msg Message) openai.ChatCompletionMessageParamUnion {
	assistant := openai.ChatCompletionAssistantMessageParam{}
	if msg.Content != "" {
		assistant.Content.OfString = openai.String(msg.Content)
	}
	for _, tc := range msg.ToolCalls {
		args := "{}"
		if len(tc.Arguments) > 0 {
			if b, err := json.Marshal(tc.Arguments); err == nil {
				args = string(b)
			}
		}
		assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: args,
				},
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

func openaiTools(defs []ToolDefinition) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(defs))
	for _, d := range defs {
		fn := shared.FunctionDefinitionParam{
			Name:        d.Name,
			Description: openai.String(d.Description),
			Parameters:  shared.FunctionParameters(d.Parameters),
		}
		out = append(out, openai.ChatCompletionFunctionTool(fn))
	}
	return out
}

func openaiToolCalls(calls []openai.ChatCompletionMessageToolCallUnion) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCall, 0, len(calls))
	for _, c := range calls {
		fn := c.AsFunction()
		var args map[string]any
		if fn.Function.Arguments != "" {
			_ = json.Unmarshal([]byte(fn.Function.Arguments), &args)
		}
		if args == nil {
			args = map[string]any{}
		}
		out = append(out, ToolCall{ID: c.ID, Name: fn.Function.Name, Arguments: args})
	}
	return out
}
