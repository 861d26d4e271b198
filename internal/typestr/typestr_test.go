package typestr

import (
	"strings"
	"testing"
)

func TestCheckValid(t *testing.T) {
	valid := []string{
		"", "b", "c", "i", "I", "d", "s",
		"lc", "ls", "lli",
		"mis", "msli",
		"oi", "ooi",
		"xi", "X", "xX",
		"t2ic", "t3iii", "t2t2iis",
		"a", "e", "la", "xe",
	}
	for _, ts := range valid {
		if err := Check(ts); err != nil {
			t.Errorf("Check(%q) = %v, want nil", ts, err)
		}
	}
}

func TestCheckInvalid(t *testing.T) {
	cases := []struct {
		ts     string
		msg    string
		offset int
	}{
		{"z", "Invalid character in typestring", 0},
		{"l", "Unexpected end of typestring", 1},
		{"m", "Unexpected end of typestring", 1},
		{"mi", "Unexpected end of typestring", 2},
		{"o", "Unexpected end of typestring", 1},
		{"x", "Unexpected end of typestring", 1},
		{"t", "Unexpected end of typestring", 1},
		{"t2i", "Unexpected end of typestring", 3},
		{"t1i", "Tuple arity must be at least 2", 1},
		{"t0", "Tuple arity must be at least 2", 1},
		{"t9999999ii", "Tuple arity out of range", 1},
		{"ii", "Extra characters after typestring", 1},
		{"t2ccc", "Extra characters after typestring", 4},
		{"t2lcci", "Extra characters after typestring", 5},
	}
	for _, c := range cases {
		err := Check(c.ts)
		if err == nil {
			t.Errorf("Check(%q) succeeded, want error", c.ts)
			continue
		}
		if err.Msg != c.msg {
			t.Errorf("Check(%q) msg = %q, want %q", c.ts, err.Msg, c.msg)
		}
		if err.SrcOff != c.offset {
			t.Errorf("Check(%q) offset = %d, want %d", c.ts, err.SrcOff, c.offset)
		}
	}
}

func TestParseConsumesOneType(t *testing.T) {
	n, err := Parse("it2ic")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != 1 {
		t.Fatalf("Parse consumed %d bytes, want 1", n)
	}
}

func TestTupleCollapse(t *testing.T) {
	cases := []struct {
		members []string
		want    string
	}{
		{nil, ""},
		{[]string{"", "", ""}, ""},
		{[]string{"", "i", ""}, "i"},
		{[]string{"i", "s"}, "t2is"},
		{[]string{"", "i", "s", ""}, "t2is"},
		{[]string{"lc", "oi", "X"}, "t3lcoiX"},
	}
	for _, c := range cases {
		if got := Tuple(c.members); got != c.want {
			t.Errorf("Tuple(%v) = %q, want %q", c.members, got, c.want)
		}
	}
}

func TestTupleMembers(t *testing.T) {
	got := TupleMembers("t3lcois")
	want := []string{"lc", "oi", "s"}
	if len(got) != len(want) {
		t.Fatalf("TupleMembers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("TupleMembers = %v, want %v", got, want)
		}
	}
}

func TestMapKV(t *testing.T) {
	k, v := MapKV("mt2icls")
	if k != "t2ic" || v != "ls" {
		t.Fatalf("MapKV = %q, %q", k, v)
	}
}

func TestArityBound(t *testing.T) {
	huge := "t1048577" + strings.Repeat("i", 3)
	err := Check(huge)
	if err == nil || err.Msg != "Tuple arity out of range" {
		t.Fatalf("Check(huge arity) = %v", err)
	}
}
