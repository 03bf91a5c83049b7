package mcp

import "github.com/cockroachdb/errors"

var (
	// ErrTransport is returned when the tool host can not be reached,
	// or the session handshake fails.
	ErrTransport = errors.New("mcp transport failed")
	// ErrToolInvocation is returned when a tool call fails.
	ErrToolInvocation = errors.New("tool invocation failed")
)
