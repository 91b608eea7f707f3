package codec

import "strings"

// Kind is the variant tag of a Node
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindNull
	KindArray
	KindObject
	KindRaw
)

// Key is an array or object key. Serialized arrays distinguish integer
// keys from string keys; JSON keys are always strings.
type Key struct {
	Str string
	Int bool
}

// Member is one ordered entry of an array or object
type Member struct {
	Key   Key
	Value *Node
}

// Node is a decoded structured value. Scalars keep their literal text in Str
// so re-encoding does not reformat them. Raw nodes are opaque fragments that
// are written back verbatim.
type Node struct {
	Kind    Kind
	Str     string
	Class   string // class name of serialized objects
	Members []Member
}

// LeafFunc rewrites one string leaf
type LeafFunc func(string) (string, error)

// Transform applies fn to every string leaf of n and returns the resulting tree.
// Keys and non-string scalars are never passed to fn. The input tree is not
// modified; unchanged subtrees are shared with the result.
func Transform(n *Node, fn LeafFunc) (*Node, bool, error) {
	switch n.Kind {
	case KindString:
		s, err := fn(n.Str)
		if err != nil {
			return n, false, err
		}
		if s == n.Str {
			return n, false, nil
		}
		return &Node{Kind: KindString, Str: s}, true, nil

	case KindArray, KindObject:
		var out []Member
		for i, m := range n.Members {
			v, changed, err := Transform(m.Value, fn)
			if err != nil {
				return n, false, err
			}
			if changed && out == nil {
				out = make([]Member, len(n.Members))
				copy(out, n.Members)
			}
			if out != nil {
				out[i] = Member{Key: m.Key, Value: v}
			}
		}
		if out == nil {
			return n, false, nil
		}
		return &Node{Kind: n.Kind, Class: n.Class, Members: out}, true, nil
	}
	return n, false, nil
}

// Leaf is a string leaf and its dotted path inside the tree
type Leaf struct {
	Path string
	Text string
}

func walkLeaves(n *Node, path []string, out []Leaf) []Leaf {
	switch n.Kind {
	case KindString:
		out = append(out, Leaf{Path: strings.Join(path, "."), Text: n.Str})
	case KindArray, KindObject:
		for _, m := range n.Members {
			out = walkLeaves(m.Value, append(path, m.Key.Str), out)
		}
	}
	return out
}

// Equal reports structural equality of two trees
func Equal(a, b *Node) bool {
	if a.Kind != b.Kind || a.Str != b.Str || a.Class != b.Class || len(a.Members) != len(b.Members) {
		return false
	}
	for i := range a.Members {
		if a.Members[i].Key != b.Members[i].Key || !Equal(a.Members[i].Value, b.Members[i].Value) {
			return false
		}
	}
	return true
}
