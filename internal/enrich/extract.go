package enrich

import "strings"

// extractObject returns the first brace-balanced JSON object in text, or ""
// when there is none. Braces inside string literals are ignored.
func extractObject(text string) string {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		if end := matchBrace(text, start); end > 0 {
			return text[start : end+1]
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			return ""
		}
		start += next + 1
	}
	return ""
}

// matchBrace returns the index of the brace closing text[open], or -1.
func matchBrace(text string, open int) int {
	depth := 0
	inString, escaped := false, false
	for i := open; i < len(text); i++ {
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
				return i
			}
		}
	}
	return -1
}
