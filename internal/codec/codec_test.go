package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

func replacer(old, new string) LeafFunc {
	return func(s string) (string, error) {
		return strings.ReplaceAll(s, old, new), nil
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Encoding
	}{
		{"plain text", "hello world", EncodingPlain},
		{"empty", "", EncodingPlain},
		{"whitespace", "   ", EncodingPlain},
		{"serialized string", `s:5:"hello";`, EncodingSerialized},
		{"serialized array", `a:1:{i:0;s:3:"foo";}`, EncodingSerialized},
		{"serialized object", `O:8:"stdClass":1:{s:3:"foo";s:3:"bar";}`, EncodingSerialized},
		{"bad serialized length falls through", `s:9:"hello";`, EncodingPlain},
		{"trailing garbage", `s:5:"hello";xyz`, EncodingPlain},
		{"json object", `{"a":"b"}`, EncodingJSON},
		{"json array", `[1,2,"x"]`, EncodingJSON},
		{"json null literal", "null", EncodingJSON},
		{"json string scalar", `"quoted"`, EncodingJSON},
		{"broken json", `{"a":`, EncodingPlain},
		{"huge array count", "a:99999999999999:{}", EncodingPlain},
		{"huge count unterminated", "a:9999999999999999:{x", EncodingPlain},
		{"large count short input", "a:200000000:{", EncodingPlain},
		{"huge string length", `s:9223372036854775807:"x";`, EncodingPlain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.raw).Encoding)
		})
	}
}

func TestReplace_Plain(t *testing.T) {
	v := Detect("Foo and foo")
	out, changed, err := v.Replace(replacer("foo", "bar"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Foo and bar", out)
}

func TestReplace_SerializedRecomputesLengths(t *testing.T) {
	raw := `a:2:{s:3:"url";s:18:"http://old.example";s:5:"count";i:3;}`
	v := Detect(raw)
	require.Equal(t, EncodingSerialized, v.Encoding)

	out, changed, err := v.Replace(replacer("http://old.example", "https://new.example.org"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, `a:2:{s:3:"url";s:23:"https://new.example.org";s:5:"count";i:3;}`, out)

	// The output must decode again
	_, err = Decode(out, EncodingSerialized)
	require.NoError(t, err)
}

func TestReplace_SerializedMultibyteLength(t *testing.T) {
	v := Detect(`s:3:"abc";`)
	out, _, err := v.Replace(replacer("b", "é"))
	require.NoError(t, err)
	assert.Equal(t, `s:4:"aéc";`, out)
}

func TestReplace_NestedSerializedObject(t *testing.T) {
	raw := `O:8:"stdClass":2:{s:4:"name";s:3:"foo";s:4:"list";a:2:{i:0;s:3:"foo";i:1;b:1;}}`
	v := Detect(raw)
	out, changed, err := v.Replace(replacer("foo", "quux"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, `O:8:"stdClass":2:{s:4:"name";s:4:"quux";s:4:"list";a:2:{i:0;s:4:"quux";i:1;b:1;}}`, out)
}

func TestReplace_KeysNeverChange(t *testing.T) {
	tests := []string{
		`a:1:{s:3:"foo";s:3:"bar";}`,
		`{"foo":"bar","nested":{"foo":1}}`,
	}
	for _, raw := range tests {
		v := Detect(raw)
		out, changed, err := v.Replace(replacer("foo", "zzz"))
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, raw, out)
	}
}

func TestReplace_NoChangeIsByteIdentical(t *testing.T) {
	tests := []string{
		`a:3:{i:0;d:1.50;i:1;N;i:2;C:3:"Foo":4:{abcd}}`,
		`{ "a" : [1.0, true, null],  "b": "x\/y" }`,
		`O:3:"Foo":1:{s:1:"r";r:1;}`,
	}
	for _, raw := range tests {
		v := Detect(raw)
		require.NotEqual(t, EncodingPlain, v.Encoding, raw)
		out, changed, err := v.Replace(replacer("absent", "x"))
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, raw, out)
	}
}

func TestReencodeRoundTrip(t *testing.T) {
	tests := []string{
		`a:2:{i:0;s:3:"foo";s:1:"k";a:1:{i:5;d:0.1;}}`,
		`a:1:{i:0;E:11:"Suit:Hearts";}`,
		`{"a":[1,2.5e3,"x"],"b":{"c":null,"d":false}}`,
	}
	for _, raw := range tests {
		v := Detect(raw)
		require.NotEqual(t, EncodingPlain, v.Encoding, raw)
		again, err := Decode(v.Encode(v.Root), v.Encoding)
		require.NoError(t, err)
		assert.True(t, Equal(v.Root, again), raw)
	}
}

func TestReplace_JSONPreservesOrderAndStyle(t *testing.T) {
	raw := `{"z":"http:\/\/old.test","a":[{"title":"old"},7]}`
	v := Detect(raw)
	out, changed, err := v.Replace(replacer("old", "new"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, `{"z":"http:\/\/new.test","a":[{"title":"new"},7]}`, out)
}

func TestReplace_JSONUnicodeEscapes(t *testing.T) {
	raw := `{"t":"café old"}`
	v := Detect(raw)
	out, _, err := v.Replace(replacer("old", "new"))
	require.NoError(t, err)
	assert.Equal(t, `{"t":"café new"}`, out)
}

func TestWriteJSONString_InvalidUTF8CopiedThrough(t *testing.T) {
	// Setup
	var b strings.Builder

	// Act
	writeJSONString(&b, "x\xffy\"", jsonStyle{})

	// Assert
	assert.Equal(t, "\"x\xffy\\\"\"", b.String())
}

func TestReplace_JSONScalarsUntouched(t *testing.T) {
	v := Detect(`[123,true,null]`)
	out, changed, err := v.Replace(replacer("1", "9"))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, `[123,true,null]`, out)
}

func TestReplace_ErrorLeavesValue(t *testing.T) {
	boom := errors.Base("boom")
	v := Detect(`{"a":"b"}`)
	out, changed, err := v.Replace(func(string) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, changed)
	assert.Equal(t, `{"a":"b"}`, out)
}

func TestLeaves(t *testing.T) {
	v := Detect(`{"a":[{"title":"x"},2],"b":"y"}`)
	assert.Equal(t, []Leaf{{Path: "a.0.title", Text: "x"}, {Path: "b", Text: "y"}}, v.Leaves())

	p := Detect("plain")
	assert.Equal(t, []Leaf{{Text: "plain"}}, p.Leaves())
}

func TestTransform_SharesUnchangedSubtrees(t *testing.T) {
	untouched := &Node{Kind: KindArray, Members: []Member{{Key: Key{Str: "0", Int: true}, Value: &Node{Kind: KindString, Str: "keep"}}}}
	root := &Node{Kind: KindObject, Members: []Member{
		{Key: Key{Str: "a"}, Value: untouched},
		{Key: Key{Str: "b"}, Value: &Node{Kind: KindString, Str: "swap"}},
	}}

	out, changed, err := Transform(root, replacer("swap", "done"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Same(t, untouched, out.Members[0].Value)
	assert.Equal(t, "done", out.Members[1].Value.Str)
	assert.Equal(t, "swap", root.Members[1].Value.Str)
}
