package llms

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolagent/pkg/toolargs"
)

// ErrUnexpectedRole is returned when a message role is of an unexpected type.
var ErrUnexpectedRole = errors.New("unexpected role")

// ErrEmptyResponse is returned when the endpoint responds without choices.
var ErrEmptyResponse = errors.New("no response")

// Role is the type of chat message.
type Role string

const (
	// RoleAI is a message sent by an AI.
	RoleAI Role = "ai"
	// RoleHuman is a message sent by a human.
	RoleHuman Role = "human"
	// RoleSystem is a message sent by the system.
	RoleSystem Role = "system"
	// RoleTool is a message sent by a tool.
	RoleTool Role = "tool"
)

// Message is the message sent to a LLM. It has a role and a
// sequence of parts.
// AI messages may carry ToolCall parts, and tool messages carry
// exactly one ToolCallResponse part.
type Message struct {
	Role  Role          `json:"role"`
	Parts []ContentPart `json:"parts"`
}

// ContentPart is an interface all parts of content have to implement.
type ContentPart interface {
	isPart()
}

// TextPart creates TextContent from a given string.
func TextPart(s string) TextContent {
	return TextContent{Text: s}
}

// TextContent is content with some text.
type TextContent struct {
	Text string `json:"text"`
}

func (tc TextContent) String() string {
	return tc.Text
}

func (TextContent) isPart() {}

// FunctionCall is the name and arguments of a function call.
type FunctionCall struct {
	// The name of the function to call.
	Name string `json:"name"`
	// The arguments to pass to the function, as a JSON string.
	Arguments string `json:"arguments"`
}

// ToolCall is a call to a tool (as requested by the model) that should be executed.
type ToolCall struct {
	// ID is the unique identifier of the tool call.
	ID string `json:"id"`
	// Type is the type of the tool call. Typically, this would be "function".
	Type string `json:"type"`
	// FunctionCall is the function call to be executed.
	FunctionCall *FunctionCall `json:"function,omitempty"`
}

func (tc ToolCall) String() string {
	if tc.FunctionCall == nil {
		return fmt.Sprintf("ToolCall: %s", tc.ID)
	}
	return fmt.Sprintf("ToolCall: %s (%s), input: %s", tc.ID, tc.FunctionCall.Name, tc.FunctionCall.Arguments)
}

func (ToolCall) isPart() {}

// ToolCallResponse is the structured result of an executed tool call.
type ToolCallResponse struct {
	// ToolCallID is the ID of the tool call this response is for.
	ToolCallID string `json:"tool_call_id"`
	// Name is the name of the tool that was called.
	Name string `json:"name"`
	// Arguments are the parsed arguments the tool was called with.
	Arguments toolargs.Value `json:"arguments"`
	// Content is the textual content of the response.
	Content string `json:"content"`
	// Duplicate is set when the call repeated an earlier one and was not executed.
	Duplicate bool `json:"duplicate,omitempty"`
}

// Text renders the response the way it is presented to the model.
func (tc ToolCallResponse) Text() string {
	if tc.Duplicate {
		return fmt.Sprintf("Tool '%s' was already called with arguments (%s); reuse the earlier result.",
			tc.Name, tc.Arguments.FormatPairs())
	}
	return fmt.Sprintf("Tool '%s' was called with arguments (%s) and returned: %s",
		tc.Name, tc.Arguments.FormatPairs(), tc.Content)
}

func (tc ToolCallResponse) String() string {
	return fmt.Sprintf("ToolCallResponse: %s (%s), response size: %d", tc.ToolCallID, tc.Name, len(tc.Content))
}

func (ToolCallResponse) isPart() {}

// ContentResponse is the response returned by a GenerateContent call.
// It can potentially return multiple content choices.
type ContentResponse struct {
	Choices []*ContentChoice
}

// ContentChoice is one of the response choices returned by GenerateContent
// calls.
type ContentChoice struct {
	// Content is the textual content of a response
	Content string `json:"content"`

	// StopReason is the reason the model stopped generating output.
	StopReason string `json:"stop_reason"`

	// GenerationInfo is arbitrary information the model adds to the response.
	GenerationInfo map[string]any `json:"generation_info"`

	// ToolCalls is a list of tool calls the model asks to invoke.
	ToolCalls []ToolCall `json:"tool_calls"`
}

// MessageFromParts is a helper function to create a Message with a role and a
// list of parts.
func MessageFromParts(role Role, parts ...ContentPart) Message {
	return Message{
		Role:  role,
		Parts: parts,
	}
}

// MessageFromTextParts is a helper function to create a Message with a role and a
// list of text parts.
func MessageFromTextParts(role Role, parts ...string) Message {
	result := Message{
		Role:  role,
		Parts: make([]ContentPart, 0, len(parts)),
	}
	for _, part := range parts {
		result.Parts = append(result.Parts, TextPart(part))
	}
	return result
}

// MessageFromToolCalls is a helper function to create an AI Message with
// optional text content and a list of tool calls.
func MessageFromToolCalls(content string, toolCalls ...ToolCall) Message {
	result := Message{
		Role:  RoleAI,
		Parts: make([]ContentPart, 0, len(toolCalls)+1),
	}
	if content != "" {
		result.Parts = append(result.Parts, TextPart(content))
	}
	for _, toolCall := range toolCalls {
		tc := ToolCall{
			ID:   toolCall.ID,
			Type: toolCall.Type,
		}
		if toolCall.FunctionCall != nil {
			tc.FunctionCall = &FunctionCall{
				Name:      toolCall.FunctionCall.Name,
				Arguments: toolCall.FunctionCall.Arguments,
			}
		}
		result.Parts = append(result.Parts, tc)
	}
	return result
}

// MessageFromToolResponse is a helper function to create a tool Message
// from a tool response.
func MessageFromToolResponse(toolResponse ToolCallResponse) Message {
	return MessageFromParts(RoleTool, toolResponse)
}

// GetContent returns a human-readable rendering of all parts.
func (m Message) GetContent() string {
	var buf strings.Builder
	lastNewLine := true
	for _, p := range m.Parts {
		if !lastNewLine {
			buf.WriteString("\n")
		}
		switch typ := p.(type) {
		case TextContent:
			buf.WriteString(typ.Text)
			lastNewLine = strings.HasSuffix(typ.Text, "\n")
		case ToolCall:
			buf.WriteString("Tool Call: ")
			js, _ := json.Marshal(typ)
			buf.Write(js)
			buf.WriteString("\n")
			lastNewLine = true
		case ToolCallResponse:
			buf.WriteString(typ.Text())
			buf.WriteString("\n")
			lastNewLine = true
		}
	}
	if !lastNewLine {
		buf.WriteString("\n")
	}
	return buf.String()
}

// ToolCalls returns the tool call parts of the message.
func (m Message) ToolCalls() []ToolCall {
	var list []ToolCall
	for _, p := range m.Parts {
		if tc, ok := p.(ToolCall); ok {
			list = append(list, tc)
		}
	}
	return list
}

// ToolResponse returns the tool response part of the message, if any.
func (m Message) ToolResponse() (ToolCallResponse, bool) {
	for _, p := range m.Parts {
		if tr, ok := p.(ToolCallResponse); ok {
			return tr, true
		}
	}
	return ToolCallResponse{}, false
}
