// Package mcp connects to tool hosts over the Model Context Protocol,
// and serves tools to MCP clients over SSE.
package mcp
