package match

import (
	"strings"

	"gitlab.com/tozd/go/errors"
)

const delimiters = "/#~@!%`"

// splitDelimited recognizes a term of the form <d>body<d>flags
func splitDelimited(term string) (body, flags string, ok bool) {
	if len(term) < 2 || strings.IndexByte(delimiters, term[0]) < 0 {
		return "", "", false
	}
	last := strings.LastIndexByte(term, term[0])
	if last <= 0 {
		return "", "", false
	}
	flags = term[last+1:]
	for i := 0; i < len(flags); i++ {
		if !isLetter(flags[i]) {
			return "", "", false
		}
	}
	return term[1:last], flags, true
}

func prepareRegex(term string, caseSensitive bool) (string, error) {
	body, flags, ok := splitDelimited(term)
	if !ok {
		if caseSensitive {
			return term, nil
		}
		return "(?i)" + term, nil
	}

	var inline strings.Builder
	for i := 0; i < len(flags); i++ {
		switch f := flags[i]; f {
		case 'i', 'm', 's', 'U':
			if strings.IndexByte(inline.String(), f) < 0 {
				inline.WriteByte(f)
			}
		case 'u':
			// patterns are always UTF-8
		default:
			return "", errors.Errorf("%w: %q", ErrUnsupportedFlags, string(f))
		}
	}
	if inline.Len() == 0 {
		return body, nil
	}
	return "(?" + inline.String() + ")" + body, nil
}

// translateTemplate converts \N, $N and ${N} back-references into Go's ${N}
// form and escapes any other dollar sign.
func translateTemplate(repl string) string {
	if !strings.ContainsAny(repl, `\$`) {
		return repl
	}

	var b strings.Builder
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		switch {
		case (c == '\\' || c == '$') && i+1 < len(repl) && isDigit(repl[i+1]):
			j := i + 1
			for j < len(repl) && j < i+3 && isDigit(repl[j]) {
				j++
			}
			b.WriteString("${" + repl[i+1:j] + "}")
			i = j - 1
		case c == '$' && strings.HasPrefix(repl[i:], "${"):
			end := strings.IndexByte(repl[i:], '}')
			if end > 2 && allDigits(repl[i+2:i+end]) {
				b.WriteString(repl[i : i+end+1])
				i += end
				continue
			}
			b.WriteString("$$")
		case c == '$':
			b.WriteString("$$")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return s != ""
}
