// Package render turns provider message bodies into displayable content
// and plain display text.
package render

import "strings"

const (
	scriptOpen  = "<script"
	scriptClose = "</script>"
)

// Sanitize removes every <script ...>...</script> block from html,
// matching tag names case-insensitively. A block runs from the opening tag
// to the first closing tag after it; an opening tag with no closing tag is
// left untouched. Attribute handlers and other injection vectors are not
// removed, so the result is not safe to hand to a browser.
func Sanitize(html string) string {
	lower := asciiLower(html)

	var b strings.Builder
	pos := 0
	for pos < len(html) {
		start := indexScriptOpen(lower, pos)
		if start < 0 {
			break
		}
		end := strings.Index(lower[start:], scriptClose)
		if end < 0 {
			break
		}
		end += start + len(scriptClose)

		b.WriteString(html[pos:start])
		pos = end
	}
	if pos == 0 {
		return html
	}
	b.WriteString(html[pos:])
	return b.String()
}

// indexScriptOpen finds the next "<script" at or after from that is not
// the prefix of a longer tag name such as <scripts>.
func indexScriptOpen(lower string, from int) int {
	for from < len(lower) {
		i := strings.Index(lower[from:], scriptOpen)
		if i < 0 {
			return -1
		}
		i += from
		next := i + len(scriptOpen)
		if next == len(lower) || !isWordByte(lower[next]) {
			return i
		}
		from = next
	}
	return -1
}

// asciiLower folds A-Z only, so byte offsets match the input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func isWordByte(c byte) bool {
	return c == '_' ||
		('0' <= c && c <= '9') ||
		('a' <= c && c <= 'z') ||
		('A' <= c && c <= 'Z')
}
