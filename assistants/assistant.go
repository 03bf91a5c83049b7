package assistants

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolagent/pkg/llms"
	"github.com/effective-security/toolagent/pkg/llmutils"
	"github.com/effective-security/toolagent/pkg/metricskey"
	"github.com/effective-security/toolagent/pkg/toolargs"
	"github.com/effective-security/toolagent/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolagent", "assistants")

const (
	// InstructionPrefix is prepended to the user query.
	InstructionPrefix = "You can use one or more tools step by step to solve this problem. " +
		"If you already get a tool result, do not call the same tool again with the same arguments. " +
		"Please give me the final answer when enough information is available. Now answer this: "
	// SummaryPrompt asks the model for the final answer, with tools disabled.
	SummaryPrompt = "Now, based on the previous question and the tool results above, " +
		"please give me the final answer in natural language."
	// FallbackAnswer is returned when the model produced no text.
	FallbackAnswer = "Sorry, I could not find an answer to your question."
)

// StopReason describes why the loop stopped requesting tools.
type StopReason string

const (
	// StopCompleted is set when the model stopped requesting tools.
	StopCompleted StopReason = "completed"
	// StopMaxIterations is set when the iteration cap was reached.
	StopMaxIterations StopReason = "max_iterations"
)

// Answer is the result of a query.
type Answer struct {
	// QueryID identifies the query in logs.
	QueryID string
	// Text is the final answer.
	Text string
	// Fragments are the non-empty contents returned by the model, in order.
	Fragments []string
	// Transcript is the conversation of the query.
	Transcript []llms.Message
	// Iterations is the number of completions that carried tools.
	Iterations int
	// ToolCalls is the number of executed tool calls.
	ToolCalls int
	// Duplicates is the number of skipped repeated tool calls.
	Duplicates int
	// Stop is the reason the loop stopped.
	Stop StopReason
}

// Assistant runs queries against a session. It is immutable and may be
// reused for sequential and concurrent queries.
type Assistant struct {
	cfg Config
}

// New returns an assistant.
func New(opts ...Option) *Assistant {
	return &Assistant{cfg: *NewConfig(opts...)}
}

// Config returns a copy of the assistant config.
func (a *Assistant) Config() Config {
	return a.cfg
}

// query is the state of one ProcessQuery call.
type query struct {
	sess     *Session
	model    string
	catalog  *tools.Catalog
	llmTools []llms.Tool
	seen     seenCalls
	answer   *Answer
}

// ProcessQuery answers the query, calling the session's tools as requested by the model.
func (a *Assistant) ProcessQuery(ctx context.Context, sess *Session, input string) (*Answer, error) {
	if sess == nil || sess.LLM == nil || sess.Tools == nil {
		return nil, errors.New("assistants: session requires a model and a tool host")
	}

	cb := a.cfg.CallbackHandler
	model := values.StringsCoalesce(a.cfg.Model, sess.LLM.GetName())

	if QueryID(ctx) == "" {
		ctx = WithQueryID(ctx, uuid.NewString())
	}

	started := time.Now()
	defer metricskey.PerfQuery.MeasureSince(started, model)

	cb.OnQueryStart(ctx, input)
	answer, err := a.run(ctx, sess, model, input)
	if err != nil {
		metricskey.StatsQueriesFailed.IncrCounter(1, model)
		cb.OnQueryError(ctx, input, err)
		return nil, err
	}

	metricskey.StatsQueriesSucceeded.IncrCounter(1, model, string(answer.Stop))
	cb.OnQueryEnd(ctx, input, answer)
	return answer, nil
}

func (a *Assistant) run(ctx context.Context, sess *Session, model, input string) (*Answer, error) {
	if !sess.LLM.GetProviderType().Supports(llms.CapabilityFunctionCalling) {
		return nil, errors.Newf("model %s does not support function calling", model)
	}

	list, err := sess.Tools.ListTools(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to list tools")
	}

	q := &query{
		sess:    sess,
		model:   model,
		catalog: tools.NewCatalog(list),
		seen:    seenCalls{},
		answer: &Answer{
			QueryID: QueryID(ctx),
			Stop:    StopCompleted,
		},
	}
	q.llmTools = q.catalog.LLMTools()
	q.answer.Transcript = []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, InstructionPrefix+input),
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "query_started",
		"query_id", q.answer.QueryID,
		"model", model,
		"tools", q.catalog.Names(),
		"input", slices.StringUpto(input, 64),
	)

	callOpts := a.cfg.GetCallOptions(
		llms.WithTools(q.llmTools),
		llms.WithToolChoice(llms.FunctionCallBehaviorAuto),
	)

	for {
		q.answer.Iterations++
		resp, err := a.generate(ctx, q, callOpts...)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "failed to generate content from LLM"), ErrCompletion)
		}

		choice := resp.Choices[0]
		if choice.Content != "" {
			q.answer.Fragments = append(q.answer.Fragments, choice.Content)
		}
		if len(choice.ToolCalls) == 0 {
			break
		}

		if q.answer.Iterations >= a.cfg.MaxIterations {
			q.answer.Stop = StopMaxIterations
			logger.ContextKV(ctx, xlog.NOTICE,
				"status", "max_iterations",
				"query_id", q.answer.QueryID,
				"iterations", q.answer.Iterations,
				"dropped_calls", len(choice.ToolCalls),
			)
			break
		}

		if err = a.executeToolCalls(ctx, q, choice); err != nil {
			return nil, err
		}
	}

	a.summarize(ctx, q)
	if err = ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	ans := q.answer
	if len(ans.Fragments) == 0 {
		ans.Text = FallbackAnswer
	} else {
		ans.Text = strings.Join(ans.Fragments, "\n")
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "query_completed",
		"query_id", ans.QueryID,
		"stop", ans.Stop,
		"iterations", ans.Iterations,
		"tool_calls", ans.ToolCalls,
		"duplicates", ans.Duplicates,
	)
	return ans, nil
}

// summarize asks for the final answer with tools disabled.
// Failures are logged and do not fail the query.
func (a *Assistant) summarize(ctx context.Context, q *query) {
	q.answer.Transcript = append(q.answer.Transcript, llms.MessageFromTextParts(llms.RoleHuman, SummaryPrompt))

	resp, err := a.generate(ctx, q, a.cfg.GetCallOptions()...)
	if err != nil {
		metricskey.StatsSummarizeFailed.IncrCounter(1, q.model)
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "summarize_failed",
			"query_id", q.answer.QueryID,
			"err", err.Error(),
		)
		return
	}
	if content := resp.Choices[0].Content; content != "" {
		q.answer.Fragments = append(q.answer.Fragments, content)
	}
}

// generate sends the transcript to the model and returns a response
// with at least one choice.
func (a *Assistant) generate(ctx context.Context, q *query, opts ...llms.CallOption) (*llms.ContentResponse, error) {
	cb := a.cfg.CallbackHandler
	messages := q.answer.Transcript

	bytesSent := llmutils.CountMessagesContentSize(messages)
	metricskey.StatsLLMMessagesSent.IncrCounter(float64(len(messages)), q.model)
	metricskey.StatsLLMBytesSent.IncrCounter(float64(bytesSent), q.model)

	cb.OnLLMCallStart(ctx, q.model, messages)

	callCtx, cancel := a.callContext(ctx)
	defer cancel()

	started := time.Now()
	resp, err := q.sess.LLM.GenerateContent(callCtx, messages, opts...)
	metricskey.PerfLLMCall.MeasureSince(started, q.model)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, errors.WithStack(llms.ErrEmptyResponse)
	}

	cb.OnLLMCallEnd(ctx, q.model, resp)

	metricskey.StatsLLMBytesReceived.IncrCounter(float64(llmutils.CountResponseContentSize(resp)), q.model)
	tokensIn, tokensOut, tokensTotal := llmutils.CountTokens(resp)
	metricskey.StatsLLMInputTokens.IncrCounter(float64(tokensIn), q.model)
	metricskey.StatsLLMOutputTokens.IncrCounter(float64(tokensOut), q.model)
	metricskey.StatsLLMTotalTokens.IncrCounter(float64(tokensTotal), q.model)

	return resp, nil
}

// executeToolCalls runs the requested calls in order and appends the answered
// calls and their results to the transcript. Repeated calls are not executed.
func (a *Assistant) executeToolCalls(ctx context.Context, q *query, choice *llms.ContentChoice) error {
	cb := a.cfg.CallbackHandler

	var answered []llms.ToolCall
	var results []llms.Message

	for i, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "tool_call_without_function",
				"query_id", q.answer.QueryID,
				"id", tc.ID,
			)
			continue
		}

		toolName := tc.FunctionCall.Name
		call := llms.ToolCall{
			ID:   values.StringsCoalesce(tc.ID, fmt.Sprintf("%s_%d", toolName, i)),
			Type: values.StringsCoalesce(tc.Type, "function"),
			FunctionCall: &llms.FunctionCall{
				Name:      toolName,
				Arguments: tc.FunctionCall.Arguments,
			},
		}

		args, err := a.parseArguments(ctx, q, call)
		if err != nil {
			return err
		}

		key := NewCallKey(toolName, args)
		if !q.seen.add(key) {
			q.answer.Duplicates++
			metricskey.StatsToolCallsDuplicate.IncrCounter(1, toolName)
			cb.OnToolDuplicate(ctx, key)
			logger.ContextKV(ctx, xlog.DEBUG,
				"status", "tool_call_duplicate",
				"query_id", q.answer.QueryID,
				"tool", toolName,
				"key", key.Digest(),
			)
			if a.cfg.DuplicateNotice {
				answered = append(answered, call)
				results = append(results, llms.MessageFromToolResponse(llms.ToolCallResponse{
					ToolCallID: call.ID,
					Name:       toolName,
					Arguments:  args,
					Duplicate:  true,
				}))
			}
			continue
		}

		cb.OnToolStart(ctx, toolName, args)

		started := time.Now()
		output, err := a.callTool(ctx, q, toolName, args)
		metricskey.PerfToolCall.MeasureSince(started, toolName)
		if err != nil {
			metricskey.StatsToolCallsFailed.IncrCounter(1, toolName)
			cb.OnToolError(ctx, toolName, args, err)
			logger.ContextKV(ctx, xlog.DEBUG,
				"status", "tool_call_failed",
				"query_id", q.answer.QueryID,
				"tool", toolName,
				"key", key.Digest(),
				"err", err.Error(),
			)
			if !errors.Is(err, ErrToolInvocation) {
				err = errors.Mark(err, ErrToolInvocation)
			}
			return errors.WithMessagef(err, "failed to call tool %s", toolName)
		}

		q.answer.ToolCalls++
		metricskey.StatsToolCallsSucceeded.IncrCounter(1, toolName)
		cb.OnToolEnd(ctx, toolName, args, output)
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "tool_called",
			"query_id", q.answer.QueryID,
			"tool", toolName,
			"key", key.Digest(),
			"output", slices.StringUpto(output, 64),
		)

		answered = append(answered, call)
		results = append(results, llms.MessageFromToolResponse(llms.ToolCallResponse{
			ToolCallID: call.ID,
			Name:       toolName,
			Arguments:  args,
			Content:    output,
		}))
	}

	if len(answered) > 0 {
		q.answer.Transcript = append(q.answer.Transcript, llms.MessageFromToolCalls(choice.Content, answered...))
		q.answer.Transcript = append(q.answer.Transcript, results...)
	} else if choice.Content != "" {
		q.answer.Transcript = append(q.answer.Transcript, llms.MessageFromTextParts(llms.RoleAI, choice.Content))
	}
	return nil
}

// parseArguments parses the call arguments and checks them against the tool declaration.
func (a *Assistant) parseArguments(ctx context.Context, q *query, call llms.ToolCall) (toolargs.Value, error) {
	toolName := call.FunctionCall.Name

	args, err := toolargs.ParseObject(call.FunctionCall.Arguments)
	if err != nil {
		// local models may wrap the arguments in a code fence or prose
		cleaned := llmutils.CleanJSON(call.FunctionCall.Arguments)
		if cleaned == call.FunctionCall.Arguments {
			return args, argumentError(err, "tool %s", toolName)
		}
		var cerr error
		if args, cerr = toolargs.ParseObject(cleaned); cerr != nil {
			return args, argumentError(err, "tool %s", toolName)
		}
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "arguments_cleaned",
			"query_id", q.answer.QueryID,
			"tool", toolName,
		)
	}

	decl, ok := q.catalog.Lookup(toolName)
	if !ok {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, toolName)
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "tool_not_found",
			"query_id", q.answer.QueryID,
			"tool", toolName,
			"available_tools", strings.Join(q.catalog.Names(), ", "),
		)
		return args, argumentError(nil, "tool %q is not available", toolName)
	}

	if err = toolargs.Validate(args, decl.InputSchema.Properties, decl.InputSchema.Required); err != nil {
		return args, argumentError(err, "tool %s", toolName)
	}
	return args, nil
}

func (a *Assistant) callTool(ctx context.Context, q *query, toolName string, args toolargs.Value) (string, error) {
	callCtx, cancel := a.callContext(ctx)
	defer cancel()
	return q.sess.Tools.CallTool(callCtx, toolName, args.Map())
}

func (a *Assistant) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, a.cfg.CallTimeout)
	}
	return context.WithCancel(ctx)
}
