package assistants

import (
	"context"

	"github.com/effective-security/toolagent/pkg/llms"
	"github.com/effective-security/toolagent/pkg/toolargs"
)

// Callback receives the events of the loop.
// Implementations must not modify the passed values.
type Callback interface {
	OnQueryStart(ctx context.Context, query string)
	OnQueryEnd(ctx context.Context, query string, answer *Answer)
	OnQueryError(ctx context.Context, query string, err error)

	OnLLMCallStart(ctx context.Context, model string, messages []llms.Message)
	OnLLMCallEnd(ctx context.Context, model string, resp *llms.ContentResponse)

	OnToolStart(ctx context.Context, tool string, args toolargs.Value)
	OnToolEnd(ctx context.Context, tool string, args toolargs.Value, output string)
	OnToolError(ctx context.Context, tool string, args toolargs.Value, err error)
	OnToolDuplicate(ctx context.Context, key CallKey)
}

// NoopCallback does nothing.
type NoopCallback struct{}

var _ Callback = NoopCallback{}

func (NoopCallback) OnQueryStart(context.Context, string) {}
func (NoopCallback) OnQueryEnd(context.Context, string, *Answer) {}
func (NoopCallback) OnQueryError(context.Context, string, error) {}
func (NoopCallback) OnLLMCallStart(context.Context, string, []llms.Message) {}
func (NoopCallback) OnLLMCallEnd(context.Context, string, *llms.ContentResponse) {}
func (NoopCallback) OnToolStart(context.Context, string, toolargs.Value) {}
func (NoopCallback) OnToolEnd(context.Context, string, toolargs.Value, string) {}
func (NoopCallback) OnToolError(context.Context, string, toolargs.Value, error) {}
func (NoopCallback) OnToolDuplicate(context.Context, CallKey) {}
