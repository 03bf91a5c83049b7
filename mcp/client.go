package mcp

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolagent/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
	"github.com/mark3labs/mcp-go/client"
	mcpsdk "github.com/mark3labs/mcp-go/mcp"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolagent", "mcp")

// DefaultClientName is the client name sent in the handshake.
const DefaultClientName = "toolagent"

// ClientOption configures a Session.
type ClientOption func(*clientOptions)

type clientOptions struct {
	name    string
	version string
}

// WithClientInfo sets the client name and version sent in the handshake.
func WithClientInfo(name, version string) ClientOption {
	return func(o *clientOptions) {
		o.name = name
		o.version = version
	}
}

// Session is an initialized MCP client session with a tool host.
// A Session is created per connection and is not shared between hosts.
type Session struct {
	c      *client.Client
	server mcpsdk.Implementation
}

// Connect opens an SSE session with the tool host at url,
// for example `http://localhost:8000/sse`.
// The context must outlive the session, as it drives the event stream.
func Connect(ctx context.Context, url string, opts ...ClientOption) (*Session, error) {
	c, err := client.NewSSEMCPClient(url)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "unable to create client for %s", url), ErrTransport)
	}
	return NewSession(ctx, c, opts...)
}

// NewSession starts the client and performs the capability handshake.
// The client is closed if the handshake fails.
func NewSession(ctx context.Context, c *client.Client, opts ...ClientOption) (*Session, error) {
	o := clientOptions{
		name:    DefaultClientName,
		version: "1.0.0",
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, errors.Mark(errors.Wrap(err, "unable to start session"), ErrTransport)
	}

	req := mcpsdk.InitializeRequest{}
	req.Params.ProtocolVersion = mcpsdk.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcpsdk.Implementation{
		Name:    o.name,
		Version: o.version,
	}
	res, err := c.Initialize(ctx, req)
	if err != nil {
		_ = c.Close()
		return nil, errors.Mark(errors.Wrap(err, "unable to initialize session"), ErrTransport)
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "session_initialized",
		"server", res.ServerInfo.Name,
		"version", res.ServerInfo.Version,
		"protocol", res.ProtocolVersion,
	)

	return &Session{
		c:      c,
		server: res.ServerInfo,
	}, nil
}

// ServerInfo returns the name and version reported by the tool host.
func (s *Session) ServerInfo() mcpsdk.Implementation {
	return s.server
}

// ListTools returns all tools advertised by the tool host.
func (s *Session) ListTools(ctx context.Context) ([]tools.Declaration, error) {
	var list []mcpsdk.Tool
	req := mcpsdk.ListToolsRequest{}
	for {
		res, err := s.c.ListTools(ctx, req)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "unable to list tools"), ErrTransport)
		}
		list = append(list, res.Tools...)
		if res.NextCursor == "" {
			break
		}
		req.Params.Cursor = res.NextCursor
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "tools_listed",
		"count", len(list),
	)
	return tools.FromMCP(list), nil
}

// CallTool invokes the named tool and returns its first text content.
// All failures, including error results reported by the tool, are marked
// with ErrToolInvocation.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	req := mcpsdk.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := s.c.CallTool(ctx, req)
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "tool %q", name), ErrToolInvocation)
	}

	text, ok := firstText(res.Content)
	if res.IsError {
		return "", errors.Wrapf(ErrToolInvocation, "tool %q returned error: %s", name, slices.StringUpto(text, 256))
	}
	if !ok {
		return "", errors.Wrapf(ErrToolInvocation, "tool %q returned no text content", name)
	}
	return text, nil
}

// Close terminates the session.
func (s *Session) Close() error {
	return errors.WithStack(s.c.Close())
}

func firstText(content []mcpsdk.Content) (string, bool) {
	for _, c := range content {
		switch tc := c.(type) {
		case mcpsdk.TextContent:
			return tc.Text, true
		case *mcpsdk.TextContent:
			return tc.Text, true
		}
	}
	return "", false
}
