package assistants

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolagent/mcp"
)

var (
	// ErrToolInvocation is returned when a tool call fails.
	ErrToolInvocation = mcp.ErrToolInvocation
	// ErrArgumentParse is returned when the arguments requested by the model
	// can not be parsed or do not match the tool declaration.
	// Such errors also match ErrToolInvocation.
	ErrArgumentParse = errors.New("failed to parse tool arguments")
	// ErrCompletion is returned when the model endpoint fails during the loop.
	ErrCompletion = errors.New("completion failed")
)

func argumentError(err error, format string, args ...any) error {
	if err == nil {
		err = ErrArgumentParse
	} else {
		err = errors.Mark(err, ErrArgumentParse)
	}
	return errors.Mark(errors.Wrapf(err, format, args...), ErrToolInvocation)
}
