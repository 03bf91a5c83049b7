package llmutils

import "strings"

const backticks = "```"

// CleanJSON returns the JSON document embedded in a model reply,
// dropping a ```json fence and any text around the outermost
// object or array, as in `Here you go: {...}`.
// The text is returned unchanged when it holds no braces or brackets.
func CleanJSON(text string) string {
	s := TrimBackticks(text)

	start := firstIndex(s, '{', '[')
	if start == -1 {
		return s
	}
	s = s[start:]

	end := max(strings.LastIndexByte(s, '}'), strings.LastIndexByte(s, ']'))
	if end == -1 {
		return s
	}
	return s[:end+1]
}

// TrimBackticks returns the content of the first fenced block,
// or the text when there is no fence.
func TrimBackticks(text string) string {
	_, after, ok := strings.Cut(text, backticks)
	if !ok {
		return text
	}

	// skip the language tag
	if nl := strings.IndexByte(after, '\n'); nl != -1 && firstIndex(after[:nl], '{', '[') == -1 {
		after = after[nl+1:]
	}
	if end := strings.LastIndex(after, backticks); end != -1 {
		after = after[:end]
	}
	return strings.TrimSpace(after)
}

func firstIndex(s string, chars ...byte) int {
	idx := -1
	for _, c := range chars {
		if i := strings.IndexByte(s, c); i != -1 && (idx == -1 || i < idx) {
			idx = i
		}
	}
	return idx
}
