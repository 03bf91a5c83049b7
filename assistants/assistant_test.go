package assistants_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolagent/assistants"
	"github.com/effective-security/toolagent/mcp"
	"github.com/effective-security/toolagent/mocks/mockassistants"
	"github.com/effective-security/toolagent/mocks/mockllms"
	"github.com/effective-security/toolagent/pkg/llms"
	"github.com/effective-security/toolagent/pkg/toolargs"
	"github.com/effective-security/toolagent/tools"
	"github.com/effective-security/xlog"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestMain(m *testing.M) {
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	xlog.SetGlobalLogLevel(xlog.DEBUG)
	os.Exit(m.Run())
}

const modelName = "gemma-3-4b-it"

var catalog = []tools.Declaration{
	{
		Name:        "add",
		Description: "Add two numbers.",
		InputSchema: tools.InputSchema{
			Properties: map[string]any{
				"a": map[string]any{"type": "integer"},
				"b": map[string]any{"type": "integer"},
			},
			Required: []string{"a", "b"},
		},
	},
	{
		Name:        "get_temperature",
		Description: "Get the current temperature from the location.",
		InputSchema: tools.InputSchema{
			Properties: map[string]any{
				"location": map[string]any{"type": "string"},
			},
			Required: []string{"location"},
		},
	},
	{
		Name:        "lookup",
		Description: "Accepts any arguments.",
	},
}

// scriptedModel returns the tool-enabled responses in order,
// and the summary response for completions without tools.
type scriptedModel struct {
	lock sync.Mutex

	steps      []*llms.ContentResponse
	stepErr    error
	summary    *llms.ContentResponse
	summaryErr error

	toolCompletions int
	summaries       int
	toolsSent       []llms.Tool
	deadlines       []bool
}

func (s *scriptedModel) generate(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	_, hasDeadline := ctx.Deadline()
	s.deadlines = append(s.deadlines, hasDeadline)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := llms.NewCallOptions(options...)
	if len(opts.Tools) == 0 {
		s.summaries++
		if s.summaryErr != nil {
			return nil, s.summaryErr
		}
		if s.summary == nil {
			return textResponse(""), nil
		}
		return s.summary, nil
	}

	s.toolsSent = opts.Tools
	s.toolCompletions++
	if s.stepErr != nil {
		return nil, s.stepErr
	}
	if s.toolCompletions > len(s.steps) {
		return textResponse(""), nil
	}
	return s.steps[s.toolCompletions-1], nil
}

func textResponse(content string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: content, StopReason: "stop"}},
	}
}

func toolResponse(content string, calls ...llms.ToolCall) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: content, StopReason: "tool_calls", ToolCalls: calls}},
	}
}

func toolCall(id, name, args string) llms.ToolCall {
	return llms.ToolCall{
		ID:           id,
		Type:         "function",
		FunctionCall: &llms.FunctionCall{Name: name, Arguments: args},
	}
}

func newSession(ctrl *gomock.Controller, model *scriptedModel) (*assistants.Session, *mockassistants.MockToolHost) {
	llm := mockllms.NewMockModel(ctrl)
	llm.EXPECT().GetName().Return(modelName).AnyTimes()
	llm.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
	llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(model.generate).AnyTimes()

	host := mockassistants.NewMockToolHost(ctrl)
	host.EXPECT().ListTools(gomock.Any()).Return(catalog, nil).AnyTimes()

	return assistants.NewSession(llm, host), host
}

func roles(msgs []llms.Message) []llms.Role {
	var res []llms.Role
	for _, m := range msgs {
		res = append(res, m.Role)
	}
	return res
}

func toolResponses(msgs []llms.Message) []llms.ToolCallResponse {
	var res []llms.ToolCallResponse
	for _, m := range msgs {
		if tr, ok := m.ToolResponse(); ok {
			res = append(res, tr)
		}
	}
	return res
}

func TestProcessQuery_NoToolCalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := &scriptedModel{
		steps: []*llms.ContentResponse{textResponse("It's 25 degrees")},
	}
	sess, host := newSession(ctrl, model)
	host.EXPECT().CallTool(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	ans, err := assistants.New().ProcessQuery(context.Background(), sess, "What is the temperature in Paris?")
	require.NoError(t, err)

	assert.Equal(t, "It's 25 degrees", ans.Text)
	assert.Equal(t, 1, model.toolCompletions)
	assert.Equal(t, 1, model.summaries)
	assert.Equal(t, 1, ans.Iterations)
	assert.Equal(t, 0, ans.ToolCalls)
	assert.Equal(t, assistants.StopCompleted, ans.Stop)
	assert.NotEmpty(t, ans.QueryID)

	require.Len(t, model.toolsSent, len(catalog))
	assert.Equal(t, "get_temperature", model.toolsSent[1].Function.Name)

	require.Len(t, ans.Transcript, 2)
	first, ok := ans.Transcript[0].Parts[0].(llms.TextContent)
	require.True(t, ok)
	assert.Equal(t, assistants.InstructionPrefix+"What is the temperature in Paris?", first.Text)
	last, ok := ans.Transcript[1].Parts[0].(llms.TextContent)
	require.True(t, ok)
	assert.Equal(t, assistants.SummaryPrompt, last.Text)
}

func TestProcessQuery_ToolThenAnswer(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := &scriptedModel{
		steps: []*llms.ContentResponse{
			toolResponse("", toolCall("call_1", "get_temperature", `{"location":"Hanoi"}`)),
			textResponse("It is 30 degrees in Hanoi"),
		},
	}
	sess, host := newSession(ctrl, model)
	host.EXPECT().CallTool(gomock.Any(), "get_temperature", map[string]any{"location": "Hanoi"}).
		Return("30", nil).Times(1)

	ans, err := assistants.New().ProcessQuery(context.Background(), sess, "What is the temperature in Hanoi?")
	require.NoError(t, err)

	assert.Contains(t, ans.Text, "It is 30 degrees in Hanoi")
	assert.Equal(t, 2, ans.Iterations)
	assert.Equal(t, 1, ans.ToolCalls)
	assert.Equal(t, 0, ans.Duplicates)

	exp := []llms.Role{llms.RoleHuman, llms.RoleAI, llms.RoleTool, llms.RoleHuman}
	if diff := cmp.Diff(exp, roles(ans.Transcript)); diff != "" {
		t.Errorf("transcript roles mismatch (-want +got):\n%s", diff)
	}

	calls := ans.Transcript[1].ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)

	res := toolResponses(ans.Transcript)
	require.Len(t, res, 1)
	assert.Equal(t, "call_1", res[0].ToolCallID)
	assert.Equal(t, "Tool 'get_temperature' was called with arguments (location=Hanoi) and returned: 30", res[0].Text())
}

func TestProcessQuery_FragmentsJoined(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := &scriptedModel{
		steps: []*llms.ContentResponse{
			toolResponse("Let me check.", toolCall("call_1", "add", `{"a":1,"b":2}`)),
			textResponse("The sum is 3."),
		},
		summary: textResponse("1 + 2 = 3"),
	}
	sess, host := newSession(ctrl, model)
	host.EXPECT().CallTool(gomock.Any(), "add", gomock.Any()).Return("3", nil).Times(1)

	ans, err := assistants.New().ProcessQuery(context.Background(), sess, "add 1 and 2")
	require.NoError(t, err)
	assert.Equal(t, []string{"Let me check.", "The sum is 3.", "1 + 2 = 3"}, ans.Fragments)
	assert.Equal(t, "Let me check.\nThe sum is 3.\n1 + 2 = 3", ans.Text)
	assert.Equal(t, llms.TextContent{Text: "Let me check."}, ans.Transcript[1].Parts[0])
}

func TestProcessQuery_DuplicateInBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := &scriptedModel{
		steps: []*llms.ContentResponse{
			toolResponse("",
				toolCall("call_1", "get_temperature", `{"location":"Hanoi"}`),
				toolCall("call_2", "get_temperature", `{"location":"Hanoi"}`),
			),
			textResponse("It is 30 degrees in Hanoi"),
		},
	}
	sess, host := newSession(ctrl, model)
	host.EXPECT().CallTool(gomock.Any(), "get_temperature", gomock.Any()).Return("30", nil).Times(1)

	ans, err := assistants.New().ProcessQuery(context.Background(), sess, "What is the temperature in Hanoi?")
	require.NoError(t, err)
	assert.Equal(t, 1, ans.ToolCalls)
	assert.Equal(t, 1, ans.Duplicates)

	res := toolResponses(ans.Transcript)
	require.Len(t, res, 1)
	assert.Equal(t, "call_1", res[0].ToolCallID)

	calls := ans.Transcript[1].ToolCalls()
	require.Len(t, calls, 1, "only answered calls are kept in the AI message")
}

func TestProcessQuery_LargeIntegerArguments(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := &scriptedModel{
		steps: []*llms.ContentResponse{
			toolResponse("",
				toolCall("call_1", "add", `{"a":9007199254740993,"b":1}`),
				toolCall("call_2", "add", `{"a":9007199254740992,"b":1}`),
			),
			textResponse("Done."),
		},
	}
	sess, host := newSession(ctrl, model)
	host.EXPECT().CallTool(gomock.Any(), "add", map[string]any{"a": json.Number("9007199254740993"), "b": float64(1)}).
		Return("9007199254740994", nil).Times(1)
	host.EXPECT().CallTool(gomock.Any(), "add", map[string]any{"a": float64(9007199254740992), "b": float64(1)}).
		Return("9007199254740993", nil).Times(1)

	ans, err := assistants.New().ProcessQuery(context.Background(), sess, "Add the numbers.")
	require.NoError(t, err)
	assert.Equal(t, 2, ans.ToolCalls)
	assert.Equal(t, 0, ans.Duplicates)
}

func TestProcessQuery_DuplicateAcrossIterations(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := &scriptedModel{
		steps: []*llms.ContentResponse{
			toolResponse("", toolCall("call_1", "add", `{"a":1,"b":2}`)),
			toolResponse("", toolCall("call_2", "add", `{"b":2, "a":1}`)),
			textResponse("3"),
		},
	}
	sess, host := newSession(ctrl, model)
	host.EXPECT().CallTool(gomock.Any(), "add", map[string]any{"a": float64(1), "b": float64(2)}).
		Return("3", nil).Times(1)

	ans, err := assistants.New().ProcessQuery(context.Background(), sess, "add 1 and 2")
	require.NoError(t, err)
	assert.Equal(t, "3", ans.Text)
	assert.Equal(t, 3, ans.Iterations)
	assert.Equal(t, 1, ans.ToolCalls)
	assert.Equal(t, 1, ans.Duplicates)
	assert.Len(t, toolResponses(ans.Transcript), 1)
}

func TestProcessQuery_DuplicateNotice(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := &scriptedModel{
		steps: []*llms.ContentResponse{
			toolResponse("",
				toolCall("call_1", "get_temperature", `{"location":"Hanoi"}`),
				toolCall("", "get_temperature", `{"location":"Hanoi"}`),
			),
			textResponse("It is 30 degrees in Hanoi"),
		},
	}
	sess, host := newSession(ctrl, model)
	host.EXPECT().CallTool(gomock.Any(), "get_temperature", gomock.Any()).Return("30", nil).Times(1)

	a := assistants.New(assistants.WithDuplicateNotice(true))
	ans, err := a.ProcessQuery(context.Background(), sess, "What is the temperature in Hanoi?")
	require.NoError(t, err)
	assert.Equal(t, 1, ans.ToolCalls)
	assert.Equal(t, 1, ans.Duplicates)

	calls := ans.Transcript[1].ToolCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "get_temperature_1", calls[1].ID)

	res := toolResponses(ans.Transcript)
	require.Len(t, res, 2)
	assert.False(t, res[0].Duplicate)
	assert.True(t, res[1].Duplicate)
	assert.Equal(t, "get_temperature_1", res[1].ToolCallID)
	assert.Equal(t,
		"Tool 'get_temperature' was already called with arguments (location=Hanoi); reuse the earlier result.",
		res[1].Text())
}

func TestProcessQuery_ArgumentKeyOrder(t *testing.T) {
	f := gofakeit.New(2024)

	for i := 0; i < 20; i++ {
		n := f.Number(1, 6)
		keys := make([]string, 0, n)
		vals := make(map[string]string, n)
		for j := 0; j < n; j++ {
			k := fmt.Sprintf("%s_%d", f.Noun(), j)
			keys = append(keys, k)
			vals[k] = f.City()
		}

		encode := func(order []string) string {
			parts := make([]string, 0, len(order))
			for _, k := range order {
				parts = append(parts, fmt.Sprintf("%q:%q", k, vals[k]))
			}
			return "{" + strings.Join(parts, ",") + "}"
		}

		shuffled := append([]string(nil), keys...)
		f.ShuffleStrings(shuffled)

		ctrl := gomock.NewController(t)
		model := &scriptedModel{
			steps: []*llms.ContentResponse{
				toolResponse("",
					toolCall("call_1", "lookup", encode(keys)),
					toolCall("call_2", "lookup", encode(shuffled)),
				),
				toolResponse("", toolCall("call_3", "lookup", encode(shuffled))),
				textResponse("done"),
			},
		}
		sess, host := newSession(ctrl, model)
		host.EXPECT().CallTool(gomock.Any(), "lookup", gomock.Any()).Return("found", nil).Times(1)

		ans, err := assistants.New().ProcessQuery(context.Background(), sess, "lookup")
		require.NoError(t, err)
		assert.Equal(t, 1, ans.ToolCalls)
		assert.Equal(t, 2, ans.Duplicates)
	}
}

func TestProcessQuery_InvocationFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "invocation", err: errors.Wrapf(mcp.ErrToolInvocation, "tool %q returned error: boom", "get_temperature")},
		{name: "unmarked", err: errors.New("connection reset")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			model := &scriptedModel{
				steps: []*llms.ContentResponse{
					toolResponse("", toolCall("call_1", "get_temperature", `{"location":"Hanoi"}`)),
				},
			}
			sess, host := newSession(ctrl, model)
			host.EXPECT().CallTool(gomock.Any(), "get_temperature", gomock.Any()).Return("", tt.err).Times(1)

			_, err := assistants.New().ProcessQuery(context.Background(), sess, "What is the temperature in Hanoi?")
			require.Error(t, err)
			assert.True(t, errors.Is(err, assistants.ErrToolInvocation))
			assert.False(t, errors.Is(err, assistants.ErrArgumentParse))
			assert.Contains(t, err.Error(), "failed to call tool get_temperature")
			assert.Equal(t, 0, model.summaries)
		})
	}
}

func TestProcessQuery_ArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		call llms.ToolCall
		exp  string
	}{
		{name: "malformed", call: toolCall("call_1", "get_temperature", `{"location":`), exp: "invalid JSON"},
		{name: "not_object", call: toolCall("call_1", "get_temperature", `["Hanoi"]`), exp: "expected a JSON object"},
		{name: "unknown_tool", call: toolCall("call_1", "get_weather", `{"location":"Hanoi"}`), exp: `tool "get_weather" is not available`},
		{name: "missing_required", call: toolCall("call_1", "get_temperature", `{}`), exp: `missing required argument "location"`},
		{name: "wrong_type", call: toolCall("call_1", "add", `{"a":"one","b":2}`), exp: `argument "a" must be`},
		{name: "not_integer", call: toolCall("call_1", "add", `{"a":1.5,"b":2}`), exp: `argument "a" must be`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			model := &scriptedModel{
				steps: []*llms.ContentResponse{toolResponse("", tt.call)},
			}
			sess, host := newSession(ctrl, model)
			host.EXPECT().CallTool(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

			_, err := assistants.New().ProcessQuery(context.Background(), sess, "question")
			require.Error(t, err)
			assert.True(t, errors.Is(err, assistants.ErrArgumentParse))
			assert.True(t, errors.Is(err, assistants.ErrToolInvocation))
			assert.Contains(t, err.Error(), tt.exp)
			assert.Equal(t, 0, model.summaries)
		})
	}
}

func TestProcessQuery_FencedArguments(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := &scriptedModel{
		steps: []*llms.ContentResponse{
			toolResponse("", toolCall("call_1", "get_temperature", "```json\n{\"location\": \"Tokyo\"}\n```")),
			textResponse("It is 22 degrees in Tokyo"),
		},
	}
	sess, host := newSession(ctrl, model)
	host.EXPECT().CallTool(gomock.Any(), "get_temperature", map[string]any{"location": "Tokyo"}).
		Return("22", nil).Times(1)

	ans, err := assistants.New().ProcessQuery(context.Background(), sess, "How warm is Tokyo?")
	require.NoError(t, err)
	assert.Equal(t, 1, ans.ToolCalls)
	assert.Equal(t, "It is 22 degrees in Tokyo", ans.Text)
}

func TestProcessQuery_CompletionFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := &scriptedModel{stepErr: errors.New("connection refused")}
	sess, host := newSession(ctrl, model)
	host.EXPECT().CallTool(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := assistants.New().ProcessQuery(context.Background(), sess, "question")
	require.Error(t, err)
	assert.True(t, errors.Is(err, assistants.ErrCompletion))
	assert.False(t, errors.Is(err, assistants.ErrToolInvocation))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 0, model.summaries)
}

func TestProcessQuery_EmptyChoices(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := &scriptedModel{
		steps: []*llms.ContentResponse{{}},
	}
	sess, _ := newSession(ctrl, model)

	_, err := assistants.New().ProcessQuery(context.Background(), sess, "question")
	require.Error(t, err)
	assert.True(t, errors.Is(err, assistants.ErrCompletion))
	assert.True(t, errors.Is(err, llms.ErrEmptyResponse))
	assert.Equal(t, 1, model.toolCompletions)
}

func TestProcessQuery_SummarizeFailure(t *testing.T) {
	t.Run("keeps_fragments", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		model := &scriptedModel{
			steps:      []*llms.ContentResponse{textResponse("It's 25 degrees")},
			summaryErr: errors.New("server overloaded"),
		}
		sess, _ := newSession(ctrl, model)

		ans, err := assistants.New().ProcessQuery(context.Background(), sess, "question")
		require.NoError(t, err)
		assert.Equal(t, "It's 25 degrees", ans.Text)
		assert.Equal(t, 1, model.summaries)
	})

	t.Run("fallback", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		model := &scriptedModel{
			steps:      []*llms.ContentResponse{textResponse("")},
			summaryErr: errors.New("server overloaded"),
		}
		sess, _ := newSession(ctrl, model)

		ans, err := assistants.New().ProcessQuery(context.Background(), sess, "question")
		require.NoError(t, err)
		assert.Equal(t, assistants.FallbackAnswer, ans.Text)
		assert.Empty(t, ans.Fragments)
	})
}

func TestProcessQuery_FallbackAnswer(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := &scriptedModel{
		steps: []*llms.ContentResponse{textResponse("")},
	}
	sess, _ := newSession(ctrl, model)

	ans, err := assistants.New().ProcessQuery(context.Background(), sess, "question")
	require.NoError(t, err)
	assert.Equal(t, "Sorry, I could not find an answer to your question.", ans.Text)
}

func TestProcessQuery_MaxIterations(t *testing.T) {
	ctrl := gomock.NewController(t)
	cities := []string{"Hanoi", "Tokyo", "London", "Paris"}
	var steps []*llms.ContentResponse
	for i, c := range cities {
		steps = append(steps, toolResponse("", toolCall(fmt.Sprintf("call_%d", i), "get_temperature", fmt.Sprintf(`{"location":%q}`, c))))
	}
	model := &scriptedModel{
		steps:   steps,
		summary: textResponse("I checked a few cities."),
	}
	sess, host := newSession(ctrl, model)
	host.EXPECT().CallTool(gomock.Any(), "get_temperature", gomock.Any()).Return("25", nil).Times(2)

	ans, err := assistants.New(assistants.WithMaxIterations(3)).ProcessQuery(context.Background(), sess, "temperatures?")
	require.NoError(t, err)
	assert.Equal(t, assistants.StopMaxIterations, ans.Stop)
	assert.Equal(t, 3, ans.Iterations)
	assert.Equal(t, 3, model.toolCompletions)
	assert.Equal(t, 1, model.summaries)
	assert.Equal(t, 2, ans.ToolCalls)
	assert.Equal(t, "I checked a few cities.", ans.Text)

	// the transcript never carries unanswered calls
	exp := []llms.Role{
		llms.RoleHuman,
		llms.RoleAI, llms.RoleTool,
		llms.RoleAI, llms.RoleTool,
		llms.RoleHuman,
	}
	if diff := cmp.Diff(exp, roles(ans.Transcript)); diff != "" {
		t.Errorf("transcript roles mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessQuery_CallTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := &scriptedModel{
		steps: []*llms.ContentResponse{
			toolResponse("", toolCall("call_1", "get_temperature", `{"location":"Hanoi"}`)),
			textResponse("It is 30 degrees in Hanoi"),
		},
	}
	sess, host := newSession(ctrl, model)
	host.EXPECT().CallTool(gomock.Any(), "get_temperature", gomock.Any()).DoAndReturn(
		func(ctx context.Context, name string, args map[string]any) (string, error) {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			return "30", nil
		}).Times(1)

	a := assistants.New(assistants.WithCallTimeout(time.Minute))
	_, err := a.ProcessQuery(context.Background(), sess, "What is the temperature in Hanoi?")
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, true}, model.deadlines)
}

func TestProcessQuery_Cancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := &scriptedModel{
		steps: []*llms.ContentResponse{textResponse("never")},
	}
	sess, _ := newSession(ctrl, model)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := assistants.New().ProcessQuery(ctx, sess, "question")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestProcessQuery_SessionErrors(t *testing.T) {
	ctx := context.Background()
	a := assistants.New()

	_, err := a.ProcessQuery(ctx, nil, "question")
	assert.EqualError(t, err, "assistants: session requires a model and a tool host")

	t.Run("unsupported_provider", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		llm := mockllms.NewMockModel(ctrl)
		llm.EXPECT().GetName().Return(modelName).AnyTimes()
		llm.EXPECT().GetProviderType().Return(llms.ProviderType("UNKNOWN")).AnyTimes()
		host := mockassistants.NewMockToolHost(ctrl)

		_, err := a.ProcessQuery(ctx, assistants.NewSession(llm, host), "question")
		assert.EqualError(t, err, "model gemma-3-4b-it does not support function calling")
	})

	t.Run("list_tools", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		llm := mockllms.NewMockModel(ctrl)
		llm.EXPECT().GetName().Return(modelName).AnyTimes()
		llm.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
		host := mockassistants.NewMockToolHost(ctrl)
		host.EXPECT().ListTools(gomock.Any()).Return(nil, errors.Wrap(mcp.ErrTransport, "connection refused"))

		_, err := a.ProcessQuery(ctx, assistants.NewSession(llm, host), "question")
		require.Error(t, err)
		assert.True(t, errors.Is(err, mcp.ErrTransport))
		assert.Contains(t, err.Error(), "failed to list tools")
	})
}

type recordingCallback struct {
	assistants.NoopCallback
	events []string
}

func (r *recordingCallback) OnQueryStart(_ context.Context, query string) {
	r.events = append(r.events, "query_start")
}

func (r *recordingCallback) OnQueryEnd(_ context.Context, _ string, ans *assistants.Answer) {
	r.events = append(r.events, "query_end:"+string(ans.Stop))
}

func (r *recordingCallback) OnLLMCallStart(_ context.Context, _ string, msgs []llms.Message) {
	r.events = append(r.events, fmt.Sprintf("llm_start:%d", len(msgs)))
}

func (r *recordingCallback) OnToolStart(_ context.Context, tool string, args toolargs.Value) {
	r.events = append(r.events, "tool_start:"+tool+":"+args.Canonical())
}

func (r *recordingCallback) OnToolEnd(_ context.Context, tool string, _ toolargs.Value, output string) {
	r.events = append(r.events, "tool_end:"+tool+":"+output)
}

func (r *recordingCallback) OnToolDuplicate(_ context.Context, key assistants.CallKey) {
	r.events = append(r.events, "tool_duplicate:"+key.String())
}

func TestProcessQuery_Callback(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := &scriptedModel{
		steps: []*llms.ContentResponse{
			toolResponse("",
				toolCall("call_1", "add", `{"b":2,"a":1}`),
				toolCall("call_2", "add", `{"a":1,"b":2}`),
			),
			textResponse("3"),
		},
	}
	sess, host := newSession(ctrl, model)
	host.EXPECT().CallTool(gomock.Any(), "add", gomock.Any()).Return("3", nil).Times(1)

	cb := &recordingCallback{}
	_, err := assistants.New(assistants.WithCallback(cb)).ProcessQuery(context.Background(), sess, "add")
	require.NoError(t, err)

	exp := []string{
		"query_start",
		"llm_start:1",
		`tool_start:add:{"a":1,"b":2}`,
		"tool_end:add:3",
		`tool_duplicate:add{"a":1,"b":2}`,
		"llm_start:3",
		"llm_start:4",
		"query_end:completed",
	}
	if diff := cmp.Diff(exp, cb.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessQuery_QueryID(t *testing.T) {
	ctrl := gomock.NewController(t)
	model := &scriptedModel{
		steps: []*llms.ContentResponse{textResponse("ok")},
	}
	sess, _ := newSession(ctrl, model)

	assert.Empty(t, assistants.QueryID(context.Background()))

	ctx := assistants.WithQueryID(context.Background(), "q-1")
	ans, err := assistants.New().ProcessQuery(ctx, sess, "question")
	require.NoError(t, err)
	assert.Equal(t, "q-1", ans.QueryID)

	ans2, err := assistants.New().ProcessQuery(context.Background(), sess, "question")
	require.NoError(t, err)
	assert.NotEmpty(t, ans2.QueryID)
	assert.NotEqual(t, "q-1", ans2.QueryID)
}
