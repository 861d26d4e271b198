package convert

import (
	"testing"

	"github.com/typebin/typebin-go/internal/wire"
)

func TestPredicateTypeOnly(t *testing.T) {
	possible := []struct {
		src, dst string
		pol      Policy
	}{
		{"i", "i", None},
		{"i", "I", Ints},
		{"I", "i", IntsNarrowing},
		{"i", "d", Double},
		{"s", "lc", Aux},
		{"", "oi", Aux},
		{"i", "a", Dynamic},
		{"a", "t2is", Dynamic}, // content unknown, assumed convertible
		{"oi", "", Aux},        // may be absent at runtime
		{"xi", "i", Fallible},
		{"t2Xi", "i", Fallible},
		{"t3iii", "li", TupleList},
		{"li", "t3iii", TupleList}, // length unknown
		{"xi", "e", Fallible},      // may hold an error
		{"mis", "mIs", Ints},
	}
	for _, c := range possible {
		if err := CannotConvert(c.src, c.dst, c.pol, nil); err != nil {
			t.Errorf("CannotConvert(%q -> %q, %v) = %v, want nil", c.src, c.dst, c.pol, err)
		}
	}

	impossible := []struct {
		src, dst string
		pol      Policy
		flag     string
	}{
		{"d", "b", All, ""},
		{"i", "I", None, "ints"},
		{"I", "i", Ints, "ints-narrowing"},
		{"s", "i", All, ""},
		{"i", "a", None, "dynamic"},
		{"xi", "i", None, "fallible"},
		{"t3iii", "li", None, "tuple-list"},
		{"s", "lc", None, "aux"},
		{"t2is", "t2Ii", All, ""}, // s never lands on i
	}
	for _, c := range impossible {
		err := CannotConvert(c.src, c.dst, c.pol, nil)
		if err == nil {
			t.Errorf("CannotConvert(%q -> %q, %v) = nil, want error", c.src, c.dst, c.pol)
			continue
		}
		if err.Flag != c.flag {
			t.Errorf("CannotConvert(%q -> %q) flag = %q, want %q", c.src, c.dst, err.Flag, c.flag)
		}
	}
}

func TestPredicateWithBytesIsExact(t *testing.T) {
	// Type-only the conversion looks possible; the actual value refuses.
	occupied := append([]byte{1}, i32(3)...)
	if err := CannotConvert("oi", "", Aux, nil); err != nil {
		t.Fatalf("type-only: %v", err)
	}
	if err := CannotConvert("oi", "", Aux, occupied); err == nil {
		t.Fatal("occupied optional should not convert to void")
	}
	if err := CannotConvert("oi", "", Aux, []byte{0}); err != nil {
		t.Fatalf("absent optional: %v", err)
	}
}

func TestPredicateAgreesWithConvert(t *testing.T) {
	// Wherever the type-only predicate says "possible" with content-free
	// types, Convert must succeed on default bytes.
	cases := []struct {
		src, dst string
		pol      Policy
	}{
		{"t2is", "t2Is", Ints},
		{"li", "lI", Ints},
		{"xi", "xI", Ints},
		{"t2Xi", "i", Fallible},
		{"mis", "mIs", Ints},
		{"oi", "oI", Ints},
	}
	for _, c := range cases {
		if err := CannotConvert(c.src, c.dst, c.pol, nil); err != nil {
			t.Errorf("predicate refuses %q -> %q: %v", c.src, c.dst, err)
			continue
		}
		// Default bytes exercise the same path Convert takes.
		if err := CannotConvert(c.src, c.dst, c.pol, defaultOf(c.src)); err != nil {
			t.Errorf("Convert refuses %q -> %q on defaults: %v", c.src, c.dst, err)
		}
	}
}

func defaultOf(ts string) []byte {
	return wire.DefaultBytes(ts)
}
