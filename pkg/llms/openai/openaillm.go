package openai

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolagent/pkg/llms"
	"github.com/effective-security/xlog"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolagent/pkg/llms", "openai")

// LLM is a chat model served by an OpenAI-compatible chat completions endpoint.
type LLM struct {
	client   openai.Client
	model    string
	provider llms.ProviderType
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI LLM.
func New(opts ...Option) (*LLM, error) {
	o := newOptions(opts...)

	reqOpts := []option.RequestOption{
		option.WithMaxRetries(*o.maxRetries),
	}
	if o.token != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(o.token))
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	if o.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(o.organization))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}

	return &LLM{
		client:   openai.NewClient(reqOpts...),
		model:    o.model,
		provider: o.provider,
	}, nil
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return o.provider
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(options...)

	msgs, err := toChatMessages(messages)
	if err != nil {
		return nil, err
	}

	req := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: msgs,
	}
	if opts.Model != "" {
		req.Model = openai.ChatModel(opts.Model)
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.Temperature != nil {
		req.Temperature = openai.Float(*opts.Temperature)
	}
	if opts.Seed != 0 {
		req.Seed = openai.Int(int64(opts.Seed))
	}

	// without tools the request carries neither tools nor tool choice
	if len(opts.Tools) > 0 {
		for _, t := range opts.Tools {
			if t.Function == nil {
				continue
			}
			req.Tools = append(req.Tools, toolFromTool(t))
		}
		choice := opts.ToolChoice
		if choice == "" {
			choice = llms.FunctionCallBehaviorAuto
		}
		req.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String(string(choice)),
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, req)
	if err != nil {
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "chat_completion_failed",
			"model", req.Model,
			"err", err.Error(),
		)
		return nil, errors.Wrap(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.WithStack(llms.ErrEmptyResponse)
	}

	choices := make([]*llms.ContentChoice, 0, len(resp.Choices))
	for _, c := range resp.Choices {
		choice := &llms.ContentChoice{
			Content:    c.Message.Content,
			StopReason: string(c.FinishReason),
			GenerationInfo: map[string]any{
				"InputTokens":  resp.Usage.PromptTokens,
				"OutputTokens": resp.Usage.CompletionTokens,
				"TotalTokens":  resp.Usage.TotalTokens,
			},
		}
		for _, tc := range c.Message.ToolCalls {
			choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
				ID:   tc.ID,
				Type: string(tc.Type),
				FunctionCall: &llms.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		choices = append(choices, choice)
	}

	return &llms.ContentResponse{Choices: choices}, nil
}

func toChatMessages(messages []llms.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, mc := range messages {
		switch mc.Role {
		case llms.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(textOf(mc)))
		case llms.RoleHuman:
			msgs = append(msgs, openai.UserMessage(textOf(mc)))
		case llms.RoleAI:
			msgs = append(msgs, assistantMessage(mc))
		case llms.RoleTool:
			if len(mc.Parts) != 1 {
				return nil, errors.Newf("expected exactly one part for role %v, got %v", mc.Role, len(mc.Parts))
			}
			p, ok := mc.Parts[0].(llms.ToolCallResponse)
			if !ok {
				return nil, errors.Newf("expected part of type ToolCallResponse for role %v, got %T", mc.Role, mc.Parts[0])
			}
			msgs = append(msgs, openai.ToolMessage(p.Text(), p.ToolCallID))
		default:
			return nil, errors.Wrapf(llms.ErrUnexpectedRole, "role %v not supported", mc.Role)
		}
	}
	return msgs, nil
}

func textOf(mc llms.Message) string {
	var text string
	for _, p := range mc.Parts {
		if tc, ok := p.(llms.TextContent); ok {
			if text != "" {
				text += "\n"
			}
			text += tc.Text
		}
	}
	return text
}

func assistantMessage(mc llms.Message) openai.ChatCompletionMessageParamUnion {
	msg := &openai.ChatCompletionAssistantMessageParam{}
	if text := textOf(mc); text != "" {
		msg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(text),
		}
	}
	for _, tc := range mc.ToolCalls() {
		if tc.FunctionCall == nil {
			continue
		}
		msg.ToolCalls = append(msg.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      tc.FunctionCall.Name,
					Arguments: tc.FunctionCall.Arguments,
				},
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: msg}
}

func toolFromTool(t llms.Tool) openai.ChatCompletionToolUnionParam {
	fn := openai.FunctionDefinitionParam{
		Name:       t.Function.Name,
		Parameters: openai.FunctionParameters(t.Function.Parameters),
	}
	if t.Function.Description != "" {
		fn.Description = openai.String(t.Function.Description)
	}
	return openai.ChatCompletionFunctionTool(fn)
}
