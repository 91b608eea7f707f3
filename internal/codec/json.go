package codec

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// jsonStyle captures escaping choices of the encoder that produced a document
type jsonStyle struct {
	escapeSlash   bool
	escapeUnicode bool
}

func detectJSONStyle(raw string) jsonStyle {
	ascii := true
	for i := 0; i < len(raw); i++ {
		if raw[i] >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	return jsonStyle{
		escapeSlash:   strings.Contains(raw, `\/`),
		escapeUnicode: ascii && strings.Contains(raw, `\u`),
	}
}

func decodeJSON(r gjson.Result) *Node {
	switch r.Type {
	case gjson.Null:
		return &Node{Kind: KindNull, Str: "null"}
	case gjson.True, gjson.False:
		return &Node{Kind: KindBool, Str: r.Raw}
	case gjson.Number:
		if strings.ContainsAny(r.Raw, ".eE") {
			return &Node{Kind: KindFloat, Str: r.Raw}
		}
		return &Node{Kind: KindInt, Str: r.Raw}
	case gjson.String:
		return &Node{Kind: KindString, Str: r.Str}
	}

	if r.IsArray() {
		n := &Node{Kind: KindArray}
		i := 0
		r.ForEach(func(_, v gjson.Result) bool {
			n.Members = append(n.Members, Member{Key: Key{Str: strconv.Itoa(i), Int: true}, Value: decodeJSON(v)})
			i++
			return true
		})
		return n
	}

	n := &Node{Kind: KindObject}
	r.ForEach(func(k, v gjson.Result) bool {
		n.Members = append(n.Members, Member{Key: Key{Str: k.Str}, Value: decodeJSON(v)})
		return true
	})
	return n
}

func encodeJSON(b *strings.Builder, n *Node, style jsonStyle) {
	switch n.Kind {
	case KindString:
		writeJSONString(b, n.Str, style)
	case KindNull:
		b.WriteString("null")
	case KindInt, KindFloat, KindBool, KindRaw:
		b.WriteString(n.Str)
	case KindArray:
		b.WriteByte('[')
		for i, m := range n.Members {
			if i > 0 {
				b.WriteByte(',')
			}
			encodeJSON(b, m.Value, style)
		}
		b.WriteByte(']')
	case KindObject:
		b.WriteByte('{')
		for i, m := range n.Members {
			if i > 0 {
				b.WriteByte(',')
			}
			writeJSONString(b, m.Key.Str, style)
			b.WriteByte(':')
			encodeJSON(b, m.Value, style)
		}
		b.WriteByte('}')
	}
}

const hexDigits = "0123456789abcdef"

func writeUnicodeEscape(b *strings.Builder, r rune) {
	b.WriteString(`\u`)
	b.WriteByte(hexDigits[r>>12&0xf])
	b.WriteByte(hexDigits[r>>8&0xf])
	b.WriteByte(hexDigits[r>>4&0xf])
	b.WriteByte(hexDigits[r&0xf])
}

func writeJSONString(b *strings.Builder, s string, style jsonStyle) {
	b.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			// invalid bytes are copied through as they were read
			b.WriteByte(s[i])
			i++
			continue
		}
		i += size
		switch {
		case r == '"':
			b.WriteString(`\"`)
		case r == '\\':
			b.WriteString(`\\`)
		case r == '/' && style.escapeSlash:
			b.WriteString(`\/`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\b':
			b.WriteString(`\b`)
		case r == '\f':
			b.WriteString(`\f`)
		case r < 0x20:
			writeUnicodeEscape(b, r)
		case r >= utf8.RuneSelf && style.escapeUnicode:
			if r > 0xffff {
				r -= 0x10000
				writeUnicodeEscape(b, 0xd800+(r>>10&0x3ff))
				writeUnicodeEscape(b, 0xdc00+(r&0x3ff))
			} else {
				writeUnicodeEscape(b, r)
			}
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
}
