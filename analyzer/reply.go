package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoJSON is returned when a model reply contains no JSON object.
var ErrNoJSON = errors.New("analyzer: no JSON object in model reply")

var (
	thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)
	fencedCode = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
)

// stripThink removes reasoning blocks emitted by reasoning models.
func stripThink(s string) string {
	s = thinkBlock.ReplaceAllString(s, "")
	// An unterminated block swallows the rest of the reply.
	if i := strings.Index(s, "<think>"); i != -1 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// stripMarkdownCodeBlock removes markdown code block wrappers from text.
func stripMarkdownCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}

// extractJSONObject returns the first balanced, valid JSON object in s.
func extractJSONObject(s string) (string, error) {
	if m := fencedCode.FindStringSubmatch(s); m != nil {
		candidate := strings.TrimSpace(m[1])
		if strings.HasPrefix(candidate, "{") && json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}

	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		if end := matchingBrace(s, i); end != -1 {
			candidate := s[i : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
	}
	return "", ErrNoJSON
}

// matchingBrace returns the index of the brace closing the one at start, or
// -1. Braces inside string literals are ignored.
func matchingBrace(s string, start int) int {
	level := 0
	inString := false
	escaped := false
	for j := start; j < len(s); j++ {
		c := s[j]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case c == '{' && !inString:
			level++
		case c == '}' && !inString:
			level--
			if level == 0 {
				return j
			}
		}
	}
	return -1
}

// parseObject cleans a model reply and decodes the JSON object in it.
func parseObject(reply string) (map[string]any, error) {
	text := stripMarkdownCodeBlock(stripThink(reply))

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil && obj != nil {
		return obj, nil
	}

	candidate, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, fmt.Errorf("decoding model JSON: %w", err)
	}
	return obj, nil
}

// asString renders any decoded JSON value as text. Non-string values are
// re-encoded as JSON.
func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// asFloat reports v as a number when it is one, or a numeric string.
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// asStrings accepts a list or a single scalar and returns its items as text.
func asStrings(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, asString(item))
		}
		return out
	default:
		return []string{asString(t)}
	}
}
