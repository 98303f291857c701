package render

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipped elements contribute no display text.
var skipped = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Title:    true,
	atom.Template: true,
}

// block elements start a new line in the display text.
var block = map[atom.Atom]bool{
	atom.Address:    true,
	atom.Article:    true,
	atom.Blockquote: true,
	atom.Br:         true,
	atom.Dd:         true,
	atom.Div:        true,
	atom.Dl:         true,
	atom.Dt:         true,
	atom.Footer:     true,
	atom.Form:       true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Header:     true,
	atom.Hr:         true,
	atom.Li:         true,
	atom.Ol:         true,
	atom.P:          true,
	atom.Pre:        true,
	atom.Section:    true,
	atom.Table:      true,
	atom.Td:         true,
	atom.Th:         true,
	atom.Tr:         true,
	atom.Ul:         true,
}

// DisplayText returns what a reader sees: the text itself for
// preformatted bodies, and for HTML the text nodes with entities decoded,
// one line per block element, runs of spaces collapsed.
func DisplayText(b Body) string {
	if b.Preformatted {
		return b.Content
	}
	return htmlText(b.Content)
}

func htmlText(src string) string {
	z := html.NewTokenizer(strings.NewReader(src))

	var lines []string
	var line strings.Builder
	depth := 0

	flush := func() {
		s := strings.Join(strings.Fields(line.String()), " ")
		if s != "" {
			lines = append(lines, s)
		}
		line.Reset()
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				// The tokenizer only fails on the reader, which cannot
				// fail for a string.
				return ""
			}
			flush()
			return strings.Join(lines, "\n")

		case html.TextToken:
			if depth == 0 {
				line.Write(z.Text())
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if a == atom.Body {
				// An unclosed <head> must not hide the body.
				depth = 0
			}
			if skipped[a] && tt == html.StartTagToken {
				depth++
				continue
			}
			if block[a] {
				flush()
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skipped[a] {
				if depth > 0 {
					depth--
				}
				continue
			}
			if block[a] {
				flush()
			}
		}
	}
}
