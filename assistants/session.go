package assistants

import (
	"context"

	"github.com/effective-security/toolagent/mcp"
	"github.com/effective-security/toolagent/pkg/llms"
	"github.com/effective-security/toolagent/tools"
)

//go:generate mockgen -source=session.go -destination=../mocks/mockassistants/session_mock.gen.go -package mockassistants

// ToolHost lists and invokes remote tools.
type ToolHost interface {
	ListTools(ctx context.Context) ([]tools.Declaration, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

var _ ToolHost = (*mcp.Session)(nil)

// Session holds the collaborators of one connection.
// It is created by the caller and passed to every query.
type Session struct {
	LLM   llms.Model
	Tools ToolHost
}

// NewSession returns a session.
func NewSession(llm llms.Model, host ToolHost) *Session {
	return &Session{LLM: llm, Tools: host}
}
