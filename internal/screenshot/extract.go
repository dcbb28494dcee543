package screenshot

import (
	"encoding/json"
	"fmt"
)

// ExtractJSON returns the first balanced JSON object or array found in raw
// model text. It tolerates pure JSON, JSON inside markdown code fences,
// and JSON surrounded by prose; fences and prose are skipped because the
// scan starts at the first brace. Returns ErrUnparseable when no valid
// JSON region exists.
func ExtractJSON(text string) ([]byte, error) {
	for i := 0; i < len(text); i++ {
		open := text[i]
		if open != '{' && open != '[' {
			continue
		}
		if end, ok := balancedEnd(text, i); ok {
			candidate := []byte(text[i : end+1])
			if json.Valid(candidate) {
				return candidate, nil
			}
		}
		// Unbalanced or invalid region; keep scanning past this opener.
	}
	return nil, fmt.Errorf("%w: %d bytes of text", ErrUnparseable, len(text))
}

// balancedEnd scans from the opener at start and returns the index of the
// matching closer, honoring JSON string literals and escapes.
func balancedEnd(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
