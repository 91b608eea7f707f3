// Package match finds and replaces occurrences of a literal or regular
// expression search term.
package match

import (
	"regexp"
	"strings"

	"gitlab.com/tozd/go/errors"
)

var (
	ErrEmptyTerm        = errors.Base("search term is empty")
	ErrInvalidPattern   = errors.Base("invalid regular expression")
	ErrSubjectTooLarge  = errors.Base("value exceeds regular expression input limit")
	ErrUnsupportedFlags = errors.Base("unsupported regular expression flag")
)

// Match is one occurrence of the search term
type Match struct {
	Position int
	Text     string

	groups []int
}

// Pattern is a compiled search term
type Pattern struct {
	term          string
	folded        string
	caseSensitive bool
	re            *regexp.Regexp

	// MaxInput bounds the size of values evaluated in regex mode. Zero means no limit.
	MaxInput int
}

// Compile prepares a search term. In regex mode a term framed by a delimiter
// such as /.../i is used as written, with trailing flags translated; any other
// term is the pattern body and matches case-insensitively unless caseSensitive.
func Compile(term string, caseSensitive, useRegex bool) (*Pattern, error) {
	if term == "" {
		return nil, errors.WithStack(ErrEmptyTerm)
	}

	p := &Pattern{term: term, caseSensitive: caseSensitive}
	if !useRegex {
		if !caseSensitive {
			p.folded = asciiLower(term)
		}
		return p, nil
	}

	expr, err := prepareRegex(term, caseSensitive)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, errors.Errorf("%w: %s", ErrInvalidPattern, err.Error())
	}
	p.re = re
	return p, nil
}

// IsRegex reports whether the pattern is a regular expression
func (p *Pattern) IsRegex() bool {
	return p.re != nil
}

func (p *Pattern) checkInput(subject string) error {
	if p.re != nil && p.MaxInput > 0 && len(subject) > p.MaxInput {
		return errors.Errorf("%w: %d bytes", ErrSubjectTooLarge, len(subject))
	}
	return nil
}

// Find returns all matches in ascending byte position. Literal matching resumes
// one byte after each match start, so overlapping occurrences are all reported.
func (p *Pattern) Find(content string) ([]Match, error) {
	if err := p.checkInput(content); err != nil {
		return nil, err
	}

	if p.re != nil {
		var out []Match
		for _, loc := range p.re.FindAllStringSubmatchIndex(content, -1) {
			out = append(out, Match{Position: loc[0], Text: content[loc[0]:loc[1]], groups: loc})
		}
		return out, nil
	}

	hay, needle := content, p.term
	if !p.caseSensitive {
		hay, needle = asciiLower(content), p.folded
	}

	var out []Match
	for off := 0; off+len(needle) <= len(hay); {
		i := strings.Index(hay[off:], needle)
		if i < 0 {
			break
		}
		pos := off + i
		out = append(out, Match{Position: pos, Text: content[pos : pos+len(needle)]})
		off = pos + 1
	}
	return out, nil
}

// Replace substitutes every occurrence of the pattern in subject. Regex
// replacements may reference groups as \1, $1 or ${1}.
func (p *Pattern) Replace(subject, replacement string) (string, error) {
	if err := p.checkInput(subject); err != nil {
		return subject, err
	}

	if p.re != nil {
		return p.re.ReplaceAllString(subject, translateTemplate(replacement)), nil
	}
	if p.caseSensitive {
		return strings.ReplaceAll(subject, p.term, replacement), nil
	}

	lower := asciiLower(subject)
	var b strings.Builder
	last := 0
	for {
		i := strings.Index(lower[last:], p.folded)
		if i < 0 {
			break
		}
		pos := last + i
		b.WriteString(subject[last:pos])
		b.WriteString(replacement)
		last = pos + len(p.folded)
	}
	if last == 0 {
		return subject, nil
	}
	b.WriteString(subject[last:])
	return b.String(), nil
}

// Expand returns the text a single match is replaced with
func (p *Pattern) Expand(content string, m Match, replacement string) string {
	if p.re == nil || m.groups == nil {
		return replacement
	}
	return string(p.re.ExpandString(nil, translateTemplate(replacement), content, m.groups))
}

// asciiLower folds A-Z only, so byte offsets in the result line up with the input
func asciiLower(s string) string {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'A' && c <= 'Z' {
			b := []byte(s)
			for j := i; j < len(b); j++ {
				if b[j] >= 'A' && b[j] <= 'Z' {
					b[j] += 'a' - 'A'
				}
			}
			return string(b)
		}
	}
	return s
}
