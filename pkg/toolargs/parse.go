package toolargs

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
)

// ErrMalformed is returned when an argument payload is not well-formed JSON,
// or is not a JSON object.
var ErrMalformed = errors.New("malformed arguments")

// Parse decodes a JSON document into a Value, keeping object key order.
func Parse(js string) (Value, error) {
	if !gjson.Valid(js) {
		return Value{}, errors.Wrapf(ErrMalformed, "invalid JSON: %q", truncate(js, 64))
	}
	return fromResult(gjson.Parse(js)), nil
}

// ParseObject decodes a tool argument payload.
// A blank payload is an empty object, as some endpoints send "" for
// functions without parameters.
func ParseObject(js string) (Value, error) {
	if strings.TrimSpace(js) == "" {
		return Object(), nil
	}
	v, err := Parse(js)
	if err != nil {
		return Value{}, err
	}
	if v.Kind() != KindObject {
		return Value{}, errors.Wrapf(ErrMalformed, "expected a JSON object, got %s", v.Kind())
	}
	return v, nil
}

func fromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.False:
		return Bool(false)
	case gjson.True:
		return Bool(true)
	case gjson.Number:
		return Value{kind: KindNumber, num: r.Num, lit: r.Raw}
	case gjson.String:
		return String(r.Str)
	case gjson.JSON:
		if r.IsArray() {
			var items []Value
			r.ForEach(func(_, item gjson.Result) bool {
				items = append(items, fromResult(item))
				return true
			})
			return Array(items...)
		}
		var pairs []Pair
		r.ForEach(func(key, item gjson.Result) bool {
			pairs = append(pairs, Pair{Key: key.String(), Value: fromResult(item)})
			return true
		})
		return Object(pairs...)
	}
	return Null()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
