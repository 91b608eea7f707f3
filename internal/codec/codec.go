// Package codec detects how a raw field value is encoded and rewrites its
// string leaves without disturbing the surrounding structure.
package codec

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Encoding is the detected format of a raw value
type Encoding int

const (
	EncodingPlain Encoding = iota
	EncodingSerialized
	EncodingJSON
)

func (e Encoding) String() string {
	switch e {
	case EncodingSerialized:
		return "serialized"
	case EncodingJSON:
		return "json"
	}
	return "plain"
}

var serializedHeader = regexp.MustCompile(`^(a|O|s|b|i|d):[0-9]+:`)

// Value is a raw string together with its detected encoding and decoded tree.
// The encoding is resolved once by Detect and reused for every later call.
type Value struct {
	Raw      string
	Encoding Encoding
	Root     *Node

	style jsonStyle
}

// Detect resolves the encoding of raw. Serialized data must carry a serialized
// header and decode completely; otherwise non-empty valid JSON is JSON, and
// everything else is plain text.
func Detect(raw string) *Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return &Value{Raw: raw, Encoding: EncodingPlain}
	}

	if serializedHeader.MatchString(trimmed) {
		if root, err := decodeSerialized(raw); err == nil {
			return &Value{Raw: raw, Encoding: EncodingSerialized, Root: root}
		}
	}

	if gjson.Valid(trimmed) {
		return &Value{
			Raw:      raw,
			Encoding: EncodingJSON,
			Root:     decodeJSON(gjson.Parse(trimmed)),
			style:    detectJSONStyle(trimmed),
		}
	}

	return &Value{Raw: raw, Encoding: EncodingPlain}
}

// Leaves returns the string leaves in document order. A plain value has a single
// leaf with an empty path.
func (v *Value) Leaves() []Leaf {
	if v.Encoding == EncodingPlain {
		return []Leaf{{Text: v.Raw}}
	}
	return walkLeaves(v.Root, nil, nil)
}

// Replace rewrites the string leaves with fn and re-encodes the result in the
// original encoding. When nothing changes the original raw value is returned.
// An error from fn leaves the value untouched.
func (v *Value) Replace(fn LeafFunc) (string, bool, error) {
	if v.Encoding == EncodingPlain {
		out, err := fn(v.Raw)
		if err != nil {
			return v.Raw, false, err
		}
		return out, out != v.Raw, nil
	}

	root, changed, err := Transform(v.Root, fn)
	if err != nil {
		return v.Raw, false, err
	}
	if !changed {
		return v.Raw, false, nil
	}
	return v.Encode(root), true, nil
}

// Encode serializes a tree in the value's encoding
func (v *Value) Encode(n *Node) string {
	var b strings.Builder
	switch v.Encoding {
	case EncodingSerialized:
		encodeSerialized(&b, n)
	case EncodingJSON:
		encodeJSON(&b, n, v.style)
	default:
		return n.Str
	}
	return b.String()
}

// Decode returns the tree for raw using a fixed encoding. It is used to
// compare structures independently of detection.
func Decode(raw string, enc Encoding) (*Node, error) {
	switch enc {
	case EncodingSerialized:
		return decodeSerialized(raw)
	case EncodingJSON:
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || !gjson.Valid(trimmed) {
			return nil, ErrInvalidJSON
		}
		return decodeJSON(gjson.Parse(trimmed)), nil
	}
	return &Node{Kind: KindString, Str: raw}, nil
}
