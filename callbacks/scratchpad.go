package callbacks

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/effective-security/toolagent/assistants"
	"github.com/effective-security/toolagent/pkg/llms"
	"github.com/effective-security/toolagent/pkg/llmutils"
	"github.com/effective-security/toolagent/pkg/toolargs"
)

var TimeNowFn = time.Now

// RunStats are the counters of one query.
type RunStats struct {
	QueryID string
	Stop    assistants.StopReason

	Duration            time.Duration
	TotalMessages       uint32
	LLMBytesOut         uint64
	LLMBytesIn          uint64
	LLMInputTokens      uint64
	LLMOutputTokens     uint64
	LLMTotalTokens      uint64
	LLMCalls            uint32
	ToolsCalls          uint32
	ToolsCallsSucceeded uint32
	ToolsCallsFailed    uint32
	ToolsCallsDuplicate uint32
	Failed              bool
}

// Scratchpad records a trace and the stats of each query.
// A run starts with the query and is kept until it is taken with EndRun.
type Scratchpad struct {
	runs map[string]*run
	mode Mode
	lock sync.Mutex
}

func NewScratchpad(mode Mode) *Scratchpad {
	return &Scratchpad{
		runs: make(map[string]*run),
		mode: mode,
	}
}

// EndRun returns the stats and the trace of the query, and forgets it.
func (l *Scratchpad) EndRun(queryID string) (*RunStats, []byte) {
	l.lock.Lock()
	run := l.runs[queryID]
	delete(l.runs, queryID)
	l.lock.Unlock()

	if run == nil {
		return nil, nil
	}

	run.lock.Lock()
	defer run.lock.Unlock()
	stats := run.stats
	return &stats, run.w.Bytes()
}

func (l *Scratchpad) getRun(ctx context.Context) *run {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.runs[assistants.QueryID(ctx)]
}

func (l *Scratchpad) OnQueryStart(ctx context.Context, query string) {
	queryID := assistants.QueryID(ctx)
	if queryID == "" {
		return
	}

	r := &run{
		stats:   RunStats{QueryID: queryID},
		started: time.Now(),
	}
	l.lock.Lock()
	l.runs[queryID] = r
	l.lock.Unlock()

	r.print("*** Query Started ***")
	r.print("Input:", query)
}

func (l *Scratchpad) OnQueryEnd(ctx context.Context, query string, answer *assistants.Answer) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	run.finish(answer.Stop, false)
	if l.mode == ModeVerbose {
		run.print("Output:", answer.Text)
	}
	run.printSummary()
}

func (l *Scratchpad) OnQueryError(ctx context.Context, query string, err error) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	run.finish("", true)
	run.print("*** Error ***", err.Error())
	run.printSummary()
}

func (l *Scratchpad) OnLLMCallStart(ctx context.Context, model string, messages []llms.Message) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}

	atomic.AddUint64(&run.stats.LLMBytesOut, llmutils.CountMessagesContentSize(messages))
	atomic.AddUint32(&run.stats.LLMCalls, 1)
	count := uint32(len(messages))
	atomic.AddUint32(&run.stats.TotalMessages, count)

	run.print("*** LLM Call ***", fmt.Sprintf("%s model, %d messages", model, count))
	if l.mode == ModeVerbose {
		run.print(printMessages(messages))
	}
}

func (l *Scratchpad) OnLLMCallEnd(ctx context.Context, model string, resp *llms.ContentResponse) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}

	atomic.AddUint64(&run.stats.LLMBytesIn, llmutils.CountResponseContentSize(resp))
	tokensIn, tokensOut, tokensTotal := llmutils.CountTokens(resp)
	atomic.AddUint64(&run.stats.LLMInputTokens, uint64(tokensIn))
	atomic.AddUint64(&run.stats.LLMOutputTokens, uint64(tokensOut))
	atomic.AddUint64(&run.stats.LLMTotalTokens, uint64(tokensTotal))

	run.print("*** LLM Call End ***", fmt.Sprintf("%s model, %d input tokens, %d output tokens, %d total tokens", model, tokensIn, tokensOut, tokensTotal))
}

func (l *Scratchpad) OnToolStart(ctx context.Context, tool string, args toolargs.Value) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.ToolsCalls, 1)
	run.print(tool, "*** Tool Start ***")
	run.print(tool, "Input:", args.String())
}

func (l *Scratchpad) OnToolEnd(ctx context.Context, tool string, args toolargs.Value, output string) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.ToolsCallsSucceeded, 1)
	if l.mode == ModeVerbose {
		run.print(tool, "Output:", output)
	}
	run.print(tool, "*** Tool End ***")
}

func (l *Scratchpad) OnToolError(ctx context.Context, tool string, args toolargs.Value, err error) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.ToolsCallsFailed, 1)
	run.print(tool, "*** Tool Error ***", err.Error())
}

func (l *Scratchpad) OnToolDuplicate(ctx context.Context, key assistants.CallKey) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.ToolsCallsDuplicate, 1)
	run.print(key.Name, "*** Tool Duplicate ***", key.Args)
}

func printMessages(messages []llms.Message) string {
	var buf strings.Builder
	buf.WriteString("Messages:\n")
	for idx, msg := range messages {
		fmt.Fprintf(&buf, "[%d] %s:\n", idx, msg.Role)
		textParts := 0
		toolParts := 0
		toolResponseParts := 0
		for _, part := range msg.Parts {
			switch typ := part.(type) {
			case llms.TextContent:
				textParts++
			case llms.ToolCall:
				toolParts++
				buf.WriteString("  - ")
				buf.WriteString(typ.String())
				buf.WriteString("\n")
			case llms.ToolCallResponse:
				toolResponseParts++
				buf.WriteString("  - ")
				buf.WriteString(typ.String())
				buf.WriteString("\n")
			}
		}

		fmt.Fprintf(&buf, "  - %d texts, %d tool calls, %d tool responses\n", textParts, toolParts, toolResponseParts)
	}
	return buf.String()
}

type run struct {
	w       bytes.Buffer
	started time.Time
	lock    sync.Mutex
	stats   RunStats
}

func (r *run) finish(stop assistants.StopReason, failed bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.stats.Duration = time.Since(r.started)
	r.stats.Stop = stop
	r.stats.Failed = failed
}

func (r *run) printSummary() {
	r.lock.Lock()
	stats := r.stats
	r.lock.Unlock()

	r.print(fmt.Sprintf("Tool calls: %d, Failed: %d, Duplicates: %d",
		stats.ToolsCalls,
		stats.ToolsCallsFailed,
		stats.ToolsCallsDuplicate,
	))
	r.print(fmt.Sprintf("LLM calls: %d, Messages: %d, Bytes Out: %d, Bytes In: %d, Bytes Total: %d, Input Tokens: %d, Output Tokens: %d, Total Tokens: %d",
		stats.LLMCalls,
		stats.TotalMessages,
		stats.LLMBytesOut,
		stats.LLMBytesIn,
		stats.LLMBytesOut+stats.LLMBytesIn,
		stats.LLMInputTokens,
		stats.LLMOutputTokens,
		stats.LLMTotalTokens,
	))
	r.print(fmt.Sprintf("*** Query Ended. Duration: %s ***", stats.Duration))
}

// print writes the entries to the run's output.
// The entries are written in the following format:
// [timestamp queryID] entry entry\n
func (r *run) print(entries ...string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	now := TimeNowFn()
	ts := now.Format("2006-01-02 15:04:05")

	_, _ = r.w.WriteString(ts)
	_, _ = r.w.WriteString(" ")
	_, _ = r.w.WriteString(r.stats.QueryID)
	_, _ = r.w.WriteString(" ")

	for i, entry := range entries {
		if i > 0 {
			_, _ = r.w.WriteString(" ")
		}
		_, _ = r.w.WriteString(entry)
	}
	_, _ = r.w.WriteString("\n")
}
