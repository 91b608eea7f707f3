package codec

import (
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"
)

var (
	ErrMalformed   = errors.Base("malformed serialized value")
	ErrInvalidJSON = errors.Base("invalid JSON value")
)

type decoder struct {
	data string
	pos  int
}

func decodeSerialized(raw string) (*Node, error) {
	d := &decoder{data: raw}
	n, err := d.value()
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.data) {
		return nil, errors.Errorf("%w: %d trailing bytes", ErrMalformed, len(d.data)-d.pos)
	}
	return n, nil
}

func (d *decoder) fail(what string) error {
	return errors.Errorf("%w: %s at offset %d", ErrMalformed, what, d.pos)
}

func (d *decoder) expect(c byte) error {
	if d.pos >= len(d.data) || d.data[d.pos] != c {
		return d.fail("expected " + strconv.QuoteRune(rune(c)))
	}
	d.pos++
	return nil
}

// until reads up to (not including) the terminator and consumes it
func (d *decoder) until(term byte) (string, error) {
	i := strings.IndexByte(d.data[d.pos:], term)
	if i < 0 {
		return "", d.fail("unterminated token")
	}
	s := d.data[d.pos : d.pos+i]
	d.pos += i + 1
	return s, nil
}

func (d *decoder) length() (int, error) {
	s, err := d.until(':')
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, d.fail("bad length")
	}
	return n, nil
}

// quoted reads `"<n bytes>"`
func (d *decoder) quoted(n int) (string, error) {
	if err := d.expect('"'); err != nil {
		return "", err
	}
	if n > len(d.data)-d.pos {
		return "", d.fail("string overruns input")
	}
	s := d.data[d.pos : d.pos+n]
	d.pos += n
	if err := d.expect('"'); err != nil {
		return "", err
	}
	return s, nil
}

func (d *decoder) value() (*Node, error) {
	if d.pos+1 >= len(d.data) {
		return nil, d.fail("unexpected end")
	}
	start := d.pos
	tag := d.data[d.pos]
	d.pos++

	if tag == 'N' {
		if err := d.expect(';'); err != nil {
			return nil, err
		}
		return &Node{Kind: KindNull}, nil
	}
	if err := d.expect(':'); err != nil {
		return nil, err
	}

	switch tag {
	case 's':
		n, err := d.length()
		if err != nil {
			return nil, err
		}
		s, err := d.quoted(n)
		if err != nil {
			return nil, err
		}
		if err := d.expect(';'); err != nil {
			return nil, err
		}
		return &Node{Kind: KindString, Str: s}, nil

	case 'i':
		s, err := d.until(';')
		if err != nil {
			return nil, err
		}
		if _, err := strconv.ParseInt(s, 10, 64); err != nil {
			return nil, d.fail("bad integer")
		}
		return &Node{Kind: KindInt, Str: s}, nil

	case 'd':
		s, err := d.until(';')
		if err != nil {
			return nil, err
		}
		switch s {
		case "INF", "-INF", "NAN":
		default:
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				return nil, d.fail("bad float")
			}
		}
		return &Node{Kind: KindFloat, Str: s}, nil

	case 'b':
		s, err := d.until(';')
		if err != nil {
			return nil, err
		}
		if s != "0" && s != "1" {
			return nil, d.fail("bad boolean")
		}
		return &Node{Kind: KindBool, Str: s}, nil

	case 'a':
		return d.members(&Node{Kind: KindArray})

	case 'O':
		n, err := d.length()
		if err != nil {
			return nil, err
		}
		class, err := d.quoted(n)
		if err != nil {
			return nil, err
		}
		if err := d.expect(':'); err != nil {
			return nil, err
		}
		return d.members(&Node{Kind: KindObject, Class: class})

	case 'C':
		n, err := d.length()
		if err != nil {
			return nil, err
		}
		if _, err := d.quoted(n); err != nil {
			return nil, err
		}
		if err := d.expect(':'); err != nil {
			return nil, err
		}
		size, err := d.length()
		if err != nil {
			return nil, err
		}
		if err := d.expect('{'); err != nil {
			return nil, err
		}
		if d.pos+size > len(d.data) {
			return nil, d.fail("payload overruns input")
		}
		d.pos += size
		if err := d.expect('}'); err != nil {
			return nil, err
		}
		return &Node{Kind: KindRaw, Str: d.data[start:d.pos]}, nil

	case 'r', 'R':
		s, err := d.until(';')
		if err != nil {
			return nil, err
		}
		if _, err := strconv.Atoi(s); err != nil {
			return nil, d.fail("bad reference")
		}
		return &Node{Kind: KindRaw, Str: d.data[start:d.pos]}, nil

	case 'E':
		n, err := d.length()
		if err != nil {
			return nil, err
		}
		if _, err := d.quoted(n); err != nil {
			return nil, err
		}
		if err := d.expect(';'); err != nil {
			return nil, err
		}
		return &Node{Kind: KindRaw, Str: d.data[start:d.pos]}, nil
	}

	d.pos = start
	return nil, d.fail("unknown type tag")
}

// members reads `<count>:{key value ...}` into n
func (d *decoder) members(n *Node) (*Node, error) {
	count, err := d.length()
	if err != nil {
		return nil, err
	}
	if err := d.expect('{'); err != nil {
		return nil, err
	}
	// every member takes at least four bytes, so a count beyond that cannot decode
	if count > (len(d.data)-d.pos)/4 {
		return nil, d.fail("member count overruns input")
	}
	n.Members = make([]Member, 0, count)
	for i := 0; i < count; i++ {
		k, err := d.value()
		if err != nil {
			return nil, err
		}
		var key Key
		switch k.Kind {
		case KindInt:
			key = Key{Str: k.Str, Int: true}
		case KindString:
			key = Key{Str: k.Str}
		default:
			return nil, d.fail("invalid key type")
		}
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		n.Members = append(n.Members, Member{Key: key, Value: v})
	}
	if err := d.expect('}'); err != nil {
		return nil, err
	}
	return n, nil
}

func writeSerializedString(b *strings.Builder, s string) {
	b.WriteString("s:")
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteString(`:"`)
	b.WriteString(s)
	b.WriteString(`";`)
}

func encodeSerialized(b *strings.Builder, n *Node) {
	switch n.Kind {
	case KindString:
		writeSerializedString(b, n.Str)
	case KindInt:
		b.WriteString("i:" + n.Str + ";")
	case KindFloat:
		b.WriteString("d:" + n.Str + ";")
	case KindBool:
		b.WriteString("b:" + n.Str + ";")
	case KindNull:
		b.WriteString("N;")
	case KindRaw:
		b.WriteString(n.Str)
	case KindArray, KindObject:
		if n.Kind == KindObject {
			b.WriteString("O:")
			b.WriteString(strconv.Itoa(len(n.Class)))
			b.WriteString(`:"`)
			b.WriteString(n.Class)
			b.WriteString(`":`)
		} else {
			b.WriteString("a:")
		}
		b.WriteString(strconv.Itoa(len(n.Members)))
		b.WriteString(":{")
		for _, m := range n.Members {
			if m.Key.Int {
				b.WriteString("i:" + m.Key.Str + ";")
			} else {
				writeSerializedString(b, m.Key.Str)
			}
			encodeSerialized(b, m.Value)
		}
		b.WriteString("}")
	}
}
