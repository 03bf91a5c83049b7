package toolargs

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind is the type tag of a Value.
type Kind int

const (
	// KindNull is JSON null, and the zero Value.
	KindNull Kind = iota
	// KindBool is a JSON boolean.
	KindBool
	// KindNumber is a JSON number.
	KindNumber
	// KindString is a JSON string.
	KindString
	// KindArray is an ordered sequence of values.
	KindArray
	// KindObject is a mapping from names to values, in insertion order.
	KindObject
)

var kindNames = map[Kind]string{
	KindNull:   "null",
	KindBool:   "boolean",
	KindNumber: "number",
	KindString: "string",
	KindArray:  "array",
	KindObject: "object",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a tagged tool argument value.
// Objects keep the order in which keys were produced by the model.
type Value struct {
	kind Kind
	b    bool
	num  float64
	lit  string // number literal as parsed, empty for built values
	str  string
	arr  []Value
	obj  *orderedmap.OrderedMap[string, Value]
}

// Pair is a single object member, used to build objects.
type Pair struct {
	Key   string
	Value Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Array returns an array value.
func Array(items ...Value) Value {
	return Value{kind: KindArray, arr: items}
}

// Object returns an object value with members in the given order.
// A repeated key keeps its first position and takes the last value.
func Object(pairs ...Pair) Value {
	m := orderedmap.New[string, Value]()
	for _, p := range pairs {
		m.Set(p.Key, p.Value)
	}
	return Value{kind: KindObject, obj: m}
}

// Kind returns the type tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean, or false for other kinds.
func (v Value) AsBool() bool { return v.kind == KindBool && v.b }

// AsFloat returns the number, or 0 for other kinds.
func (v Value) AsFloat() float64 {
	if v.kind != KindNumber {
		return 0
	}
	return v.num
}

// IsInteger reports whether v is a number without a fractional part.
func (v Value) IsInteger() bool {
	return v.kind == KindNumber && !math.IsInf(v.num, 0) && v.num == math.Trunc(v.num)
}

// AsString returns the string, or "" for other kinds.
func (v Value) AsString() string {
	if v.kind != KindString {
		return ""
	}
	return v.str
}

// Len returns the number of array items or object members.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		if v.obj == nil {
			return 0
		}
		return v.obj.Len()
	}
	return 0
}

// Items returns the array items.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

// Get returns the object member with the given key.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject || v.obj == nil {
		return Value{}, false
	}
	return v.obj.Get(key)
}

// Keys returns object keys in insertion order.
func (v Value) Keys() []string {
	if v.kind != KindObject || v.obj == nil {
		return nil
	}
	keys := make([]string, 0, v.obj.Len())
	for pair := v.obj.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Any converts v into plain Go values:
// nil, bool, float64, string, []any and map[string]any.
// Integers that float64 cannot hold exactly are returned as json.Number.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		if text := v.numberText(); isIntegerLiteral(v.lit) && text != formatNumber(v.num) {
			return json.Number(text)
		}
		return v.num
	case KindString:
		return v.str
	case KindArray:
		list := make([]any, len(v.arr))
		for i, item := range v.arr {
			list[i] = item.Any()
		}
		return list
	case KindObject:
		return v.Map()
	}
	return nil
}

// Map returns object members as map[string]any.
// It returns an empty map for non-object values.
func (v Value) Map() map[string]any {
	res := make(map[string]any, v.Len())
	if v.kind != KindObject || v.obj == nil {
		return res
	}
	for pair := v.obj.Oldest(); pair != nil; pair = pair.Next() {
		res[pair.Key] = pair.Value.Any()
	}
	return res
}

// Canonical returns a deterministic JSON encoding of v:
// object keys are sorted at every level, integers keep their digits and
// other numbers use the shortest decimal form, so values equal up to key
// order encode identically.
func (v Value) Canonical() string {
	var buf bytes.Buffer
	v.encode(&buf, true)
	return buf.String()
}

// MarshalJSON encodes v keeping object key order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	v.encode(&buf, false)
	return buf.Bytes(), nil
}

func (v Value) String() string {
	js, _ := v.MarshalJSON()
	return string(js)
}

// FormatPairs renders object members as `k=v, k2=v2` in insertion order.
// Strings are written without quotes; nested values are written as JSON.
func (v Value) FormatPairs() string {
	if v.kind != KindObject || v.obj == nil {
		return ""
	}
	parts := make([]string, 0, v.obj.Len())
	for pair := v.obj.Oldest(); pair != nil; pair = pair.Next() {
		parts = append(parts, pair.Key+"="+pair.Value.plain())
	}
	return strings.Join(parts, ", ")
}

func (v Value) plain() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.numberText()
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	return v.String()
}

func (v Value) encode(buf *bytes.Buffer, sorted bool) {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		buf.WriteString(v.numberText())
	case KindString:
		writeString(buf, v.str)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			item.encode(buf, sorted)
		}
		buf.WriteByte(']')
	case KindObject:
		keys := v.Keys()
		if sorted {
			sort.Strings(keys)
		}
		buf.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, key)
			buf.WriteByte(':')
			item, _ := v.obj.Get(key)
			item.encode(buf, sorted)
		}
		buf.WriteByte('}')
	}
}

// numberText returns the integer literal as parsed,
// or the shortest decimal form of the number.
func (v Value) numberText() string {
	if isIntegerLiteral(v.lit) {
		if v.lit == "-0" {
			return "0"
		}
		return v.lit
	}
	return formatNumber(v.num)
}

// isIntegerLiteral reports whether s is a JSON number without fraction or exponent.
func isIntegerLiteral(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func formatNumber(f float64) string {
	if f == 0 {
		// -0 and 0 are the same argument
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func writeString(buf *bytes.Buffer, s string) {
	js, _ := json.Marshal(s)
	buf.Write(js)
}
