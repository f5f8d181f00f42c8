// Package extract recovers a structured record from the free-text final
// answer of a language model. Models are asked for a bare JSON object but
// routinely wrap it in prose or markdown fences, or emit Python-style
// literals; this package tolerates all of that and never returns an error.
package extract

import (
	"encoding/json"
	"strings"
)

// Extract locates the outermost brace-delimited span in text and parses it
// into a record. The second return is false when no span is found or
// neither the strict nor the lenient parse succeeds; the returned map is
// always non-nil.
func Extract(text string) (map[string]any, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return map[string]any{}, false
	}
	span := text[start : end+1]

	var record map[string]any
	if err := json.Unmarshal([]byte(span), &record); err == nil {
		return record, true
	}

	if err := json.Unmarshal([]byte(relax(span)), &record); err == nil {
		return record, true
	}

	return map[string]any{}, false
}

// relax rewrites common non-JSON deviations into strict JSON: single-quoted
// strings become double-quoted (escaping any embedded double quotes), and
// the bare literals True/False/None become their JSON equivalents.
func relax(span string) string {
	var out strings.Builder
	out.Grow(len(span))

	runes := []rune(span)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch r {
		case '"':
			// Copy a strict string verbatim, honoring escapes.
			out.WriteRune(r)
			i++
			for i < len(runes) {
				out.WriteRune(runes[i])
				if runes[i] == '\\' && i+1 < len(runes) {
					i++
					out.WriteRune(runes[i])
				} else if runes[i] == '"' {
					i++
					break
				}
				i++
			}
		case '\'':
			// Convert a single-quoted string to double quotes.
			out.WriteRune('"')
			i++
			for i < len(runes) {
				c := runes[i]
				if c == '\\' && i+1 < len(runes) {
					out.WriteRune(c)
					i++
					out.WriteRune(runes[i])
					i++
					continue
				}
				if c == '\'' {
					i++
					break
				}
				if c == '"' {
					out.WriteString(`\"`)
					i++
					continue
				}
				out.WriteRune(c)
				i++
			}
			out.WriteRune('"')
		default:
			if replaced, n := relaxLiteral(runes[i:]); n > 0 {
				out.WriteString(replaced)
				i += n
				continue
			}
			out.WriteRune(r)
			i++
		}
	}
	return out.String()
}

var pythonLiterals = []struct {
	from string
	to   string
}{
	{"True", "true"},
	{"False", "false"},
	{"None", "null"},
}

func relaxLiteral(rest []rune) (string, int) {
	for _, lit := range pythonLiterals {
		if !hasRunePrefix(rest, lit.from) {
			continue
		}
		// Only replace standalone words.
		if len(rest) > len(lit.from) && isWordRune(rest[len(lit.from)]) {
			continue
		}
		return lit.to, len(lit.from)
	}
	return "", 0
}

func hasRunePrefix(rs []rune, prefix string) bool {
	if len(rs) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if rs[i] != p {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
