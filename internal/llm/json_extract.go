package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON locates the first JSON array or object in a completion reply.
// Models frequently wrap JSON in fences or surround it with prose; this
// strips both.
func ExtractJSON(content string) (json.RawMessage, error) {
	text := strings.TrimSpace(content)

	// Prefer a fenced block if one exists.
	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			// Skip a language tag like ```json
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			text = strings.TrimSpace(rest[:end])
		}
	}

	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return nil, fmt.Errorf("no JSON value found in completion output")
	}
	text = text[start:]

	// Walk to the matching close bracket so trailing prose is dropped.
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				candidate := text[:i+1]
				if !json.Valid([]byte(candidate)) {
					return nil, fmt.Errorf("completion output contains malformed JSON")
				}
				return json.RawMessage(candidate), nil
			}
		}
	}

	return nil, fmt.Errorf("completion output contains unterminated JSON")
}
