// Package snippet renders short highlighted excerpts around a match.
package snippet

import (
	"html"
	"strings"
	"unicode/utf8"
)

const (
	Ellipsis  = "..."
	MarkOpen  = `<mark class="ure-highlight">`
	MarkClose = `</mark>`
)

// Window returns the byte range shown around a match. The edges are moved
// outward onto rune boundaries so multi-byte characters are never split.
func Window(content string, position, matchLength, contextSize int) (start, end int) {
	start = max(0, position-contextSize)
	end = min(len(content), position+matchLength+contextSize)
	for start > 0 && !utf8.RuneStart(content[start]) {
		start--
	}
	for end < len(content) && !utf8.RuneStart(content[end]) {
		end++
	}
	return start, end
}

// Build returns the HTML-escaped window around content[position:position+matchLength]
// with the match wrapped in a highlight mark and ellipses on truncated sides.
func Build(content string, position, matchLength, contextSize int) string {
	position = min(max(0, position), len(content))
	matchLength = min(max(0, matchLength), len(content)-position)

	start, end := Window(content, position, matchLength, contextSize)
	return Render(
		content[start:position],
		content[position:position+matchLength],
		content[position+matchLength:end],
		start > 0,
		end < len(content),
	)
}

// Render assembles a snippet from its three segments. The highlight is placed
// between the segments, so the leading ellipsis cannot shift it.
func Render(before, match, after string, truncatedStart, truncatedEnd bool) string {
	var b strings.Builder
	if truncatedStart {
		b.WriteString(Ellipsis)
	}
	b.WriteString(html.EscapeString(before))
	b.WriteString(MarkOpen)
	b.WriteString(html.EscapeString(match))
	b.WriteString(MarkClose)
	b.WriteString(html.EscapeString(after))
	if truncatedEnd {
		b.WriteString(Ellipsis)
	}
	return b.String()
}

// Plain strips the highlight marks and unescapes the snippet for terminal output
func Plain(s string) string {
	s = strings.ReplaceAll(s, MarkOpen, "")
	s = strings.ReplaceAll(s, MarkClose, "")
	return html.UnescapeString(s)
}

// Split returns the unescaped before, match and after parts of a rendered snippet
func Split(s string) (before, match, after string) {
	i := strings.Index(s, MarkOpen)
	j := strings.Index(s, MarkClose)
	if i < 0 || j < i {
		return html.UnescapeString(s), "", ""
	}
	return html.UnescapeString(s[:i]),
		html.UnescapeString(s[i+len(MarkOpen) : j]),
		html.UnescapeString(s[j+len(MarkClose):])
}
