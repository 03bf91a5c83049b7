package toolargs

import (
	"github.com/cockroachdb/errors"
)

// ErrInvalid is returned when arguments do not satisfy a tool's declared schema.
var ErrInvalid = errors.New("invalid arguments")

// Validate checks an argument object against the `properties` and `required`
// sections of a declared JSON schema.
// Only required-ness and the JSON `type` of declared properties are checked;
// undeclared arguments are passed through.
func Validate(args Value, properties map[string]any, required []string) error {
	if args.Kind() != KindObject {
		return errors.Wrapf(ErrInvalid, "expected an object, got %s", args.Kind())
	}
	for _, name := range required {
		if _, ok := args.Get(name); !ok {
			return errors.Wrapf(ErrInvalid, "missing required argument %q", name)
		}
	}
	for _, name := range args.Keys() {
		prop, ok := properties[name].(map[string]any)
		if !ok {
			continue
		}
		types := declaredTypes(prop["type"])
		if len(types) == 0 {
			continue
		}
		val, _ := args.Get(name)
		if !matchesAny(val, types) {
			return errors.Wrapf(ErrInvalid, "argument %q must be %v, got %s", name, types, val.Kind())
		}
	}
	return nil
}

func declaredTypes(t any) []string {
	switch typ := t.(type) {
	case string:
		return []string{typ}
	case []string:
		return typ
	case []any:
		var list []string
		for _, item := range typ {
			if s, ok := item.(string); ok {
				list = append(list, s)
			}
		}
		return list
	}
	return nil
}

func matchesAny(v Value, types []string) bool {
	for _, t := range types {
		if matches(v, t) {
			return true
		}
	}
	return false
}

func matches(v Value, typ string) bool {
	switch typ {
	case "string":
		return v.Kind() == KindString
	case "number":
		return v.Kind() == KindNumber
	case "integer":
		return v.IsInteger()
	case "boolean":
		return v.Kind() == KindBool
	case "array":
		return v.Kind() == KindArray
	case "object":
		return v.Kind() == KindObject
	case "null":
		return v.Kind() == KindNull
	}
	// unknown type keywords are not enforced
	return true
}
