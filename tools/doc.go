// Package tools describes the tools advertised by a tool host, and adapts
// them to the function declarations understood by chat models.
package tools
