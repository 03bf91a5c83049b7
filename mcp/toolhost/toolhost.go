// Package toolhost provides the example tools served by `toolagent serve`.
package toolhost

import (
	"context"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolagent/mcp"
)

// DefaultTemperature is returned for locations missing from the table.
const DefaultTemperature = 25.0

var temperatures = map[string]float64{
	"hanoi":    30,
	"new york": 18,
	"london":   12,
	"tokyo":    22,
}

// AddArgs are the arguments of `add` and `subtract`.
type AddArgs struct {
	A int `json:"a" jsonschema:"description=First number"`
	B int `json:"b" jsonschema:"description=Second number"`
}

// LocationArgs are the arguments of `get_temperature`.
type LocationArgs struct {
	Location string `json:"location" jsonschema:"description=City name"`
}

// NoArgs is used by tools without parameters.
type NoArgs struct{}

// Temperature returns the current temperature at the location.
// The lookup is case-insensitive.
func Temperature(location string) float64 {
	if t, ok := temperatures[strings.ToLower(strings.TrimSpace(location))]; ok {
		return t
	}
	return DefaultTemperature
}

// Register adds the tools to the server.
func Register(s *mcp.Server) error {
	err := mcp.AddTool(s, "add", "Add two numbers.",
		func(_ context.Context, in *AddArgs) (string, error) {
			return strconv.Itoa(in.A + in.B), nil
		})
	if err != nil {
		return err
	}

	err = mcp.AddTool(s, "subtract", "Subtract two numbers.",
		func(_ context.Context, in *AddArgs) (string, error) {
			return strconv.Itoa(in.A - in.B), nil
		})
	if err != nil {
		return err
	}

	err = mcp.AddTool(s, "get_temperature", "Get the current temperature from the location.",
		func(_ context.Context, in *LocationArgs) (string, error) {
			if strings.TrimSpace(in.Location) == "" {
				return "", errors.New("location is required")
			}
			return strconv.FormatFloat(Temperature(in.Location), 'f', -1, 64), nil
		})
	if err != nil {
		return err
	}

	return mcp.AddTool(s, "noop", "Does nothing. Use when no other tool applies.",
		func(_ context.Context, _ *NoArgs) (string, error) {
			return "ok", nil
		})
}

// NewServer returns a tool host with all tools registered.
func NewServer(name, version string) (*mcp.Server, error) {
	s := mcp.NewServer(name, version)
	if err := Register(s); err != nil {
		return nil, err
	}
	return s, nil
}
