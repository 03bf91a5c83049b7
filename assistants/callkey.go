package assistants

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/effective-security/toolagent/pkg/toolargs"
)

// CallKey identifies a tool call by the tool name and the canonical encoding
// of its arguments. Calls that differ only in object key order have equal keys.
type CallKey struct {
	Name string
	Args string
}

// NewCallKey returns the key of the call.
func NewCallKey(name string, args toolargs.Value) CallKey {
	return CallKey{Name: name, Args: args.Canonical()}
}

func (k CallKey) String() string {
	return k.Name + k.Args
}

// Digest returns a short hash of the key, for logs.
func (k CallKey) Digest() string {
	return strconv.FormatUint(xxhash.Sum64String(k.String()), 16)
}

// seenCalls is the set of keys executed during one query.
type seenCalls map[CallKey]struct{}

// add returns false if the key was already present.
func (s seenCalls) add(k CallKey) bool {
	if _, ok := s[k]; ok {
		return false
	}
	s[k] = struct{}{}
	return true
}
