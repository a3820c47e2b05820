// Package sanitize cleans user-supplied text and JSON payloads before they
// reach business logic or storage.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxInputLength bounds every sanitized free-text field, in runes.
const MaxInputLength = 1000

var (
	scriptBlockRe = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	tagRe         = regexp.MustCompile(`<[^>]*>`)
)

// Input trims text, removes script blocks and any remaining markup tags, and
// truncates the result. Input(Input(s)) == Input(s).
func Input(text string) string {
	text = strings.TrimSpace(text)
	text = scriptBlockRe.ReplaceAllString(text, "")
	text = tagRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	return truncate(text, MaxInputLength)
}

func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:limit]))
}

var forbiddenKeys = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

// JSON walks a decoded JSON value and drops object keys that are used for
// prototype pollution downstream. A top-level object carrying such a key is
// replaced by an empty object. Non-object values pass through unchanged.
func JSON(value any) any {
	obj, ok := value.(map[string]any)
	if !ok {
		return value
	}
	for key := range obj {
		if _, bad := forbiddenKeys[key]; bad {
			return map[string]any{}
		}
	}
	return cleanValue(obj)
}

func cleanValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, child := range v {
			if _, bad := forbiddenKeys[key]; bad {
				continue
			}
			out[key] = cleanValue(child)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = cleanValue(child)
		}
		return out
	default:
		return value
	}
}
