package typebin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintText(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{int32(5), "5"},
		{int64(-9), "-9"},
		{true, "true"},
		{uint8('x'), "'x'"},
		{uint8(0), "'%00'"},
		{1.0, "1.0"},
		{2.5, "2.5"},
		{"hi", `"hi"`},
		{"50%", `"50%25"`},
		{"a\nb", `"a%0ab"`},
		{[]int32{1, 2}, "[1;2]"},
		{[]string{}, "[]"},
		{map[string]int32{"a": 1}, `{"a":1}`},
		{struct{ A, B int32 }{1, 2}, "(1;2)"},
		{(*int32)(nil), "null"},
		{OK(int32(7)), "7"},
		{Dyn{Type: "i", Data: []byte{0, 0, 0, 3}}, "<i>3"},
	}
	for _, c := range cases {
		v := mustValue(t, c.in)
		assert.Equal(t, c.want, v.String(), "value %#v", c.in)
	}
}

func TestPrintVoid(t *testing.T) {
	v, err := DefaultValue("")
	require.Nil(t, err)
	assert.Equal(t, "()", v.String())
}

func TestPrintErrorRecord(t *testing.T) {
	rec := ErrorRecord{
		Category: "io",
		Message:  "lost",
		Payload:  Dyn{Type: "i", Data: []byte{0, 0, 0, 4}},
	}
	v := mustValue(t, rec)
	assert.Equal(t, `!("io";"lost";<i>4)`, v.String())

	f := mustValue(t, FailedAs("i", rec))
	assert.Equal(t, `!("io";"lost";<i>4)`, f.String())
}

func TestPrintJSON(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{int32(5), "5"},
		{uint8(200), "200"},
		{"hi", `"hi"`},
		{true, "true"},
		{(*int32)(nil), "null"},
		{[]int32{1, 2}, "[1,2]"},
		{struct{ A, B int32 }{1, 2}, "[1,2]"},
		{map[string]int32{"a": 1}, `{"a":1}`},
		{map[int32]string{7: "x"}, `{"7":"x"}`},
		{Dyn{Type: "i", Data: []byte{0, 0, 0, 3}}, "3"},
	}
	for _, c := range cases {
		v := mustValue(t, c.in)
		b, err := v.MarshalJSON()
		require.NoError(t, err, "value %#v", c.in)
		assert.Equal(t, c.want, string(b), "value %#v", c.in)
	}
}

func TestPrintJSONErrorIsMessage(t *testing.T) {
	v := mustValue(t, Failed(ErrorRecord{Category: "io", Message: "lost"}))
	b, err := v.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"lost"`, string(b))
}

func TestPrintInfinities(t *testing.T) {
	v, err := ParseAs("d", "inf")
	require.Nil(t, err)
	assert.Equal(t, "inf", v.String())
	b, jerr := v.MarshalJSON()
	require.NoError(t, jerr)
	assert.Equal(t, `"inf"`, string(b))

	n, err := ParseAs("d", "nan")
	require.Nil(t, err)
	assert.Equal(t, "nan", n.String())
}

func TestParseInference(t *testing.T) {
	cases := []struct {
		text string
		ts   string
	}{
		{"5", "i"},
		{"-12", "i"},
		{"3000000000", "I"},
		{"2.5", "d"},
		{"1e3", "d"},
		{`"hi"`, "s"},
		{"'x'", "c"},
		{"true", "b"},
		{"null", ""},
		{"()", ""},
		{"(1;2)", "t2ii"},
		{`(1;"a")`, "t2is"},
		{"(1;();2)", "t2ii"},
		{"[1;2;3]", "li"},
		{"[1;true]", "la"},
		{`{"a":1;"b":2}`, "msi"},
		{`{"a"=1}`, "msi"},
		{"<I>7", "a"},
		{`!("io";"lost";<i>4)`, "e"},
		{"-inf", "d"},
	}
	for _, c := range cases {
		v, err := Parse(c.text)
		require.Nil(t, err, "text %q", c.text)
		assert.Equal(t, c.ts, v.Type(), "text %q", c.text)
	}
}

func TestParseInferredBytes(t *testing.T) {
	v, err := Parse("(1;2)")
	require.Nil(t, err)
	assert.Equal(t, []byte{0, 0, 0, 1, 0, 0, 0, 2}, v.Bytes())

	w, err := Parse("<I>7")
	require.Nil(t, err)
	inner, uerr := w.Unwrap()
	require.Nil(t, uerr)
	assert.Equal(t, "I", inner.Type())
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 7}, inner.Bytes())
}

func TestParseErrors(t *testing.T) {
	for _, text := range []string{
		"", "[]", "{}", `"unterminated`, "(1;", "5x", "[1;2", "{1:2;}",
		"12345678901234567890", "'xy'", "<zz>1",
	} {
		_, err := Parse(text)
		assert.NotNil(t, err, "text %q", text)
	}
}

func TestParseAs(t *testing.T) {
	cases := []struct {
		ts   string
		text string
		data []byte
	}{
		{"i", "5", []byte{0, 0, 0, 5}},
		{"I", "5", []byte{0, 0, 0, 0, 0, 0, 0, 5}},
		{"d", "5", floatBytes(5)},
		{"c", "'x'", []byte{'x'}},
		{"c", "120", []byte{120}},
		{"lc", `"ab"`, []byte{0, 0, 0, 2, 'a', 'b'}},
		{"lc", "['a';'b']", []byte{0, 0, 0, 2, 'a', 'b'}},
		{"li", "[]", []byte{0, 0, 0, 0}},
		{"oi", "null", []byte{0}},
		{"oi", "3", []byte{1, 0, 0, 0, 3}},
		{"xi", "3", []byte{1, 0, 0, 0, 3}},
		{"X", "()", []byte{1}},
		{"t2is", `(1;"a")`, []byte{0, 0, 0, 1, 0, 0, 0, 1, 'a'}},
		{"mii", "{1:2}", []byte{0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 2}},
		{"", "()", nil},
		{"", "null", nil},
	}
	for _, c := range cases {
		v, err := ParseAs(c.ts, c.text)
		require.Nil(t, err, "%q as %q", c.text, c.ts)
		assert.Equal(t, c.ts, v.Type())
		assert.Equal(t, c.data, v.Bytes(), "%q as %q", c.text, c.ts)
	}
}

func TestParseAsErrors(t *testing.T) {
	cases := []struct {
		ts   string
		text string
	}{
		{"i", "2.5"},
		{"i", "3000000000"},
		{"c", "256"},
		{"b", "maybe"},
		{"i", "5 apples"},
		{"t2ii", "(1)"},
		{"t1i", "(1)"},
	}
	for _, c := range cases {
		_, err := ParseAs(c.ts, c.text)
		assert.NotNil(t, err, "%q as %q", c.text, c.ts)
	}
}

func TestParseAsErrorArm(t *testing.T) {
	v, err := ParseAs("xi", `!("io";"lost";<i>4)`)
	require.Nil(t, err)
	f, gerr := GetAs[FallibleValue](v, None)
	require.Nil(t, gerr)
	require.False(t, f.Ok())
	assert.Equal(t, "lost", f.Err().Message)
}

func TestPrintParseRoundTrip(t *testing.T) {
	// Typed text is the bit-exact round trip: printing with a type prefix
	// and reparsing recovers the value wrapped in a dynamic box.
	values := []any{
		int32(-3),
		int64(1) << 40,
		"fifty%",
		[]int32{1, 2, 3},
		map[string]int32{"a": 1, "b": 2},
		struct {
			A int32
			B string
		}{7, "x"},
		OK(int32(9)),
		Failed(ErrorRecord{Category: "c", Message: "m"}),
		Dyn{Type: "s", Data: []byte{0, 0, 0, 1, 'q'}},
	}
	for _, in := range values {
		v := mustValue(t, in)
		text, perr := PrintChecked(v.View(), Options{WithType: true})
		require.Nil(t, perr, "value %#v", in)
		parsed, err := Parse(text)
		require.Nil(t, err, "text %q", text)
		assert.True(t, v.Wrap().Equal(parsed), "text %q reparsed as %q", text, parsed.Type())
	}
}
