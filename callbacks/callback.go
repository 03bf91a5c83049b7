package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/effective-security/toolagent/assistants"
	"github.com/effective-security/toolagent/pkg/llms"
	"github.com/effective-security/toolagent/pkg/llmutils"
	"github.com/effective-security/toolagent/pkg/toolargs"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

// ensure that the callbacks implement the correct interfaces
var (
	_ assistants.Callback = (*Printer)(nil)
	_ assistants.Callback = (*PackageLogger)(nil)
	_ assistants.Callback = (*Fanout)(nil)
	_ assistants.Callback = (*Scratchpad)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault is the default mode for callback printing
	ModeDefault Mode = iota
	// ModeVerbose is the verbose mode for callback printing
	ModeVerbose
)

// Fanout is a callback handler that forwards the events to multiple callbacks.
type Fanout struct {
	callbacks []assistants.Callback
}

// NewFanout returns a callback that forwards the events to the callbacks, in order.
func NewFanout(callbacks ...assistants.Callback) *Fanout {
	return &Fanout{callbacks: callbacks}
}

// Add appends a callback.
func (l *Fanout) Add(callback assistants.Callback) {
	l.callbacks = append(l.callbacks, callback)
}

func (l *Fanout) OnQueryStart(ctx context.Context, query string) {
	for _, callback := range l.callbacks {
		callback.OnQueryStart(ctx, query)
	}
}

func (l *Fanout) OnQueryEnd(ctx context.Context, query string, answer *assistants.Answer) {
	for _, callback := range l.callbacks {
		callback.OnQueryEnd(ctx, query, answer)
	}
}

func (l *Fanout) OnQueryError(ctx context.Context, query string, err error) {
	for _, callback := range l.callbacks {
		callback.OnQueryError(ctx, query, err)
	}
}

func (l *Fanout) OnLLMCallStart(ctx context.Context, model string, messages []llms.Message) {
	for _, callback := range l.callbacks {
		callback.OnLLMCallStart(ctx, model, messages)
	}
}

func (l *Fanout) OnLLMCallEnd(ctx context.Context, model string, resp *llms.ContentResponse) {
	for _, callback := range l.callbacks {
		callback.OnLLMCallEnd(ctx, model, resp)
	}
}

func (l *Fanout) OnToolStart(ctx context.Context, tool string, args toolargs.Value) {
	for _, callback := range l.callbacks {
		callback.OnToolStart(ctx, tool, args)
	}
}

func (l *Fanout) OnToolEnd(ctx context.Context, tool string, args toolargs.Value, output string) {
	for _, callback := range l.callbacks {
		callback.OnToolEnd(ctx, tool, args, output)
	}
}

func (l *Fanout) OnToolError(ctx context.Context, tool string, args toolargs.Value, err error) {
	for _, callback := range l.callbacks {
		callback.OnToolError(ctx, tool, args, err)
	}
}

func (l *Fanout) OnToolDuplicate(ctx context.Context, key assistants.CallKey) {
	for _, callback := range l.callbacks {
		callback.OnToolDuplicate(ctx, key)
	}
}

// Printer is a callback handler that prints the progress of a query to the Writer.
type Printer struct {
	assistants.NoopCallback

	Out  io.Writer
	Mode Mode

	lock sync.Mutex
}

// NewPrinter returns a callback that prints tool calls to out.
// ModeVerbose also prints the model calls.
func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (l *Printer) OnLLMCallStart(ctx context.Context, model string, messages []llms.Message) {
	if l.Mode != ModeVerbose {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "LLM Call: %s model, %d messages\n", model, len(messages))
	llmutils.PrintMessages(l.Out, messages)
}

func (l *Printer) OnLLMCallEnd(ctx context.Context, model string, resp *llms.ContentResponse) {
	if l.Mode != ModeVerbose {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	in, out, total := llmutils.CountTokens(resp)
	fmt.Fprintf(l.Out, "LLM Call End: %s model, %d input tokens, %d output tokens, %d total tokens\n", model, in, out, total)
}

func (l *Printer) OnToolStart(ctx context.Context, tool string, args toolargs.Value) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Calling tool: %s with args: %s\n", tool, args.String())
}

func (l *Printer) OnToolEnd(ctx context.Context, tool string, args toolargs.Value, output string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool result: %s\n", output)
}

func (l *Printer) OnToolError(ctx context.Context, tool string, args toolargs.Value, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool error: %s: %s\n", tool, err.Error())
}

func (l *Printer) OnToolDuplicate(ctx context.Context, key assistants.CallKey) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Skipping duplicate tool call: %s\n", key.String())
}

// PackageLogger is a callback handler that prints to the logger.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

// NewPackageLogger returns a callback that logs the events with logger.
func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) OnQueryStart(ctx context.Context, query string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "query_start",
		"query_id", assistants.QueryID(ctx),
		"input", query,
	)
}

func (l *PackageLogger) OnQueryEnd(ctx context.Context, query string, answer *assistants.Answer) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "query_end",
		"query_id", answer.QueryID,
		"stop", answer.Stop,
		"iterations", answer.Iterations,
		"tool_calls", answer.ToolCalls,
		"duplicates", answer.Duplicates,
		"result", slices.StringUpto(answer.Text, 256),
	)
}

func (l *PackageLogger) OnQueryError(ctx context.Context, query string, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "query_error",
		"query_id", assistants.QueryID(ctx),
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnLLMCallStart(ctx context.Context, model string, messages []llms.Message) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_call_start",
		"query_id", assistants.QueryID(ctx),
		"model", model,
		"messages", len(messages),
	)
}

func (l *PackageLogger) OnLLMCallEnd(ctx context.Context, model string, resp *llms.ContentResponse) {
	in, out, total := llmutils.CountTokens(resp)
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_call_end",
		"query_id", assistants.QueryID(ctx),
		"model", model,
		"choices", len(resp.Choices),
		"input_tokens", in,
		"output_tokens", out,
		"total_tokens", total,
	)
}

func (l *PackageLogger) OnToolStart(ctx context.Context, tool string, args toolargs.Value) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_start",
		"query_id", assistants.QueryID(ctx),
		"tool", tool,
		"input", args.String(),
	)
}

func (l *PackageLogger) OnToolEnd(ctx context.Context, tool string, args toolargs.Value, output string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_end",
		"query_id", assistants.QueryID(ctx),
		"tool", tool,
		"output", output,
	)
}

func (l *PackageLogger) OnToolError(ctx context.Context, tool string, args toolargs.Value, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "tool_error",
		"query_id", assistants.QueryID(ctx),
		"tool", tool,
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnToolDuplicate(ctx context.Context, key assistants.CallKey) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_duplicate",
		"query_id", assistants.QueryID(ctx),
		"tool", key.Name,
		"key", key.Digest(),
	)
}
