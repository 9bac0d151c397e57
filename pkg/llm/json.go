package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Reasoning models may prefix their answer with a <think> block.
var thinkTagPattern = regexp.MustCompile(`(?s)^\s*<think>.*?</think>\s*`)

// ExtractJSON pulls the first JSON object or array out of a model response,
// tolerating think tags, markdown fences and surrounding prose.
func ExtractJSON(response string) (string, error) {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")

	// Whichever bracket appears first decides whether we look for an
	// object or an array.
	candidates := []struct{ open, close byte }{{'{', '}'}, {'[', ']'}}
	objAt := strings.IndexByte(cleaned, '{')
	arrAt := strings.IndexByte(cleaned, '[')
	if arrAt >= 0 && (objAt < 0 || arrAt < objAt) {
		candidates[0], candidates[1] = candidates[1], candidates[0]
	}

	for _, c := range candidates {
		if body, ok := balancedSpan(cleaned, c.open, c.close); ok && json.Valid([]byte(body)) {
			return body, nil
		}
	}

	if trimmed := strings.TrimSpace(cleaned); json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}
	return "", fmt.Errorf("no valid JSON found in response")
}

// balancedSpan returns the first substring running from open to its matching
// close bracket, respecting string literals and escapes.
func balancedSpan(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		switch c := s[i]; {
		case inString && c == '\\':
			i++ // skip the escaped byte
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// ParseJSONResponse extracts JSON from a model response and unmarshals it
// into T.
func ParseJSONResponse[T any](response string) (T, error) {
	var result T

	body, err := ExtractJSON(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return result, fmt.Errorf("unmarshal JSON: %w", err)
	}
	return result, nil
}
