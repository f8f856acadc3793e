package generator

import "strings"

// ExtractJSON strips Markdown code fences and leading/trailing prose that
// chat models sometimes wrap a JSON reply in, returning the outermost
// balanced {...} or [...] span that starts at the first opening bracket. Callers still run full json.Unmarshal validation on
// the result; this only removes formatting noise.
func ExtractJSON(raw string) string {
	return extractJSON(raw)
}

func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}

	open, closer := s[start], byte('}')
	if open == '[' {
		closer = ']'
	}

	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}

	return s[start:]
}
