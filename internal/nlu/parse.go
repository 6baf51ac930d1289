package nlu

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// firstJSONObject extracts the first balanced JSON object embedded in text.
// Models wrap their JSON in prose or code fences often enough that a plain
// Unmarshal of the whole completion is hopeless.
func firstJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// decodeFirstObject unmarshals the first balanced JSON object into v.
func decodeFirstObject(text string, v any) bool {
	obj, ok := firstJSONObject(text)
	if !ok {
		return false
	}
	return json.Unmarshal([]byte(obj), v) == nil
}

var noisePattern = regexp.MustCompile(`[^0-9A-Za-z가-힣]`)

// stripNoise removes everything but letters, digits, and hangul. Applied to
// slot values the model returns for free-form (non-reserved) slots, where
// punctuation and politeness particles leak in.
func stripNoise(s string) string {
	return noisePattern.ReplaceAllString(s, "")
}

// asString coerces a decoded JSON value to a trimmed string; numbers are
// rendered without an exponent, everything else collapses to "".
func asString(v any) string {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
			return ""
		}
		return s
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

// asInt coerces a decoded JSON value to an int, 0 when impossible.
func asInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return 0
}

// asStringSlice coerces a decoded JSON value to a string slice, accepting
// both arrays and a single scalar.
func asStringSlice(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s := asString(e); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	}
	return nil
}
