package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolagent/pkg/schema"
	"github.com/effective-security/toolagent/pkg/toolargs"
	"github.com/effective-security/xlog"
	mcpsdk "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server is a tool host serving registered tools over MCP.
type Server struct {
	srv   *server.MCPServer
	names []string
}

// NewServer returns a tool host with the given implementation name and version.
func NewServer(name, version string) *Server {
	return &Server{
		srv: server.NewMCPServer(name, version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}
}

// ToolFunc implements a tool with typed arguments.
type ToolFunc[I any] func(ctx context.Context, in *I) (string, error)

// AddTool registers a tool. The parameter schema is reflected from I,
// and the arguments of each call are validated against it before run is
// called. Errors returned by run are reported to the client as error results.
func AddTool[I any](s *Server, name, description string, run ToolFunc[I]) error {
	sc, err := schema.For[I]()
	if err != nil {
		return errors.WithMessagef(err, "tool %q", name)
	}
	raw, err := sc.RawParameters()
	if err != nil {
		return errors.WithMessagef(err, "tool %q", name)
	}
	props := map[string]any{}
	if m, err := sc.Map(); err == nil {
		if p, ok := m["properties"].(map[string]any); ok {
			props = p
		}
	}
	required := sc.Parameters.Required

	handler := func(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		started := time.Now()

		js, err := json.Marshal(req.Params.Arguments)
		if err != nil {
			return mcpsdk.NewToolResultError("invalid arguments: " + err.Error()), nil
		}
		if string(js) == "null" {
			js = []byte("{}")
		}
		args, err := toolargs.ParseObject(string(js))
		if err == nil {
			err = toolargs.Validate(args, props, required)
		}
		if err != nil {
			logger.ContextKV(ctx, xlog.DEBUG,
				"status", "invalid_arguments",
				"tool", name,
				"err", err.Error(),
			)
			return mcpsdk.NewToolResultError(err.Error()), nil
		}

		in := new(I)
		if err = json.Unmarshal(js, in); err != nil {
			return mcpsdk.NewToolResultError("invalid arguments: " + err.Error()), nil
		}

		res, err := run(ctx, in)
		if err != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"status", "tool_failed",
				"tool", name,
				"err", err.Error(),
			)
			return mcpsdk.NewToolResultError(err.Error()), nil
		}

		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "tool_called",
			"tool", name,
			"args", args.FormatPairs(),
			"elapsed", time.Since(started).String(),
		)
		return mcpsdk.NewToolResultText(res), nil
	}

	s.srv.AddTool(mcpsdk.NewToolWithRawSchema(name, description, raw), handler)
	s.names = append(s.names, name)
	return nil
}

// ToolNames returns the names of registered tools, in registration order.
func (s *Server) ToolNames() []string {
	return s.names
}

// MCPServer returns the underlying MCP server,
// for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.srv
}

// SSEHandler returns the HTTP handler serving the `/sse` and `/message`
// endpoints. baseURL is the externally visible URL of the handler,
// advertised to clients as the message endpoint.
func (s *Server) SSEHandler(baseURL string) *server.SSEServer {
	return server.NewSSEServer(s.srv, server.WithBaseURL(baseURL))
}

// ListenAndServe serves SSE on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr, baseURL string) error {
	sse := s.SSEHandler(baseURL)

	errCh := make(chan error, 1)
	go func() {
		errCh <- sse.Start(addr)
	}()

	logger.KV(xlog.NOTICE,
		"status", "serving",
		"addr", addr,
		"base_url", baseURL,
		"tools", s.names,
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrapf(err, "unable to serve on %s", addr)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sse.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "unable to shutdown")
	}
	logger.KV(xlog.NOTICE, "status", "stopped", "addr", addr)
	return nil
}
