package errs

import (
	"strings"
	"testing"
)

func TestMark(t *testing.T) {
	cases := []struct {
		ts   string
		off  int
		want string
	}{
		{"t2ccc", 4, "t2cc*c"},
		{"i", 0, "*i"},
		{"i", 1, "i*"},
		{"i", -3, "*i"},
		{"i", 99, "i*"},
		{"", 0, "*"},
	}
	for _, c := range cases {
		if got := Mark(c.ts, c.off); got != c.want {
			t.Errorf("Mark(%q, %d) = %q, want %q", c.ts, c.off, got, c.want)
		}
	}
}

func TestRenderSingleType(t *testing.T) {
	err := New(BadTypestring, "Extra characters after typestring", "t2ccc", 4)
	msg := err.Error()
	for _, want := range []string{"bad typestring", "Extra characters after typestring", `"t2cc*c"`} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestRenderPair(t *testing.T) {
	err := Mismatch("Cannot convert between these numeric types", "I", 0, "i", 0, "ints-narrowing")
	msg := err.Error()
	for _, want := range []string{"type mismatch", `source "*I"`, `target "*i"`, "[missing policy flag ints-narrowing]"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestRenderMismatchWithoutTarget(t *testing.T) {
	err := New(TypeMismatch, "Unexpected tag", "li", 1)
	msg := err.Error()
	if !strings.Contains(msg, `(type "l*i")`) {
		t.Errorf("message %q missing single-type marker", msg)
	}
	if strings.Contains(msg, "target") {
		t.Errorf("message %q renders a target that was never supplied", msg)
	}
}

func TestRenderPairWithVoidTarget(t *testing.T) {
	err := NewPair(TypeMismatch, "Cannot discard this value", "i", 0, "", 0)
	msg := err.Error()
	for _, want := range []string{`source "*i"`, `target "*"`} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestRetarget(t *testing.T) {
	err := New(ValueMismatch, "Truncated value", "i", 0)
	err.Retarget("xi", 1)
	if err.Dst != "xi" || err.DstOff != 1 {
		t.Fatalf("Dst = %q off %d", err.Dst, err.DstOff)
	}
	if !strings.Contains(err.Error(), `target "x*i"`) {
		t.Fatalf("message %q missing retargeted side", err.Error())
	}
	err.Retarget("s", 0)
	if err.Dst != "xi" {
		t.Fatalf("Retarget overwrote a real target: %q", err.Dst)
	}
}

func TestNestSource(t *testing.T) {
	err := New(ValueMismatch, "Truncated value", "i", 0)
	err.NestSource("la", 1)
	if err.Src != "la(i)" {
		t.Fatalf("Src = %q, want %q", err.Src, "la(i)")
	}
	if err.SrcOff != 3 {
		t.Fatalf("SrcOff = %d, want 3", err.SrcOff)
	}
	if got := Mark(err.Src, err.SrcOff); got != "la(*i)" {
		t.Fatalf("marked = %q", got)
	}
}

func TestNestSourceTwice(t *testing.T) {
	err := New(ValueMismatch, "Truncated value", "s", 0)
	err.NestSource("a", 0)
	err.NestSource("la", 1)
	if err.Src != "la(a(s))" {
		t.Fatalf("Src = %q", err.Src)
	}
}

func TestKindNames(t *testing.T) {
	kinds := map[Kind]string{
		BadTypestring:   "bad typestring",
		ValueMismatch:   "value does not match typestring",
		TypeMismatch:    "type mismatch",
		UnplacedErrors:  "unplaceable fallible errors",
		NotSerializable: "not serializable",
	}
	for k, want := range kinds {
		if k.String() != want {
			t.Errorf("%d.String() = %q, want %q", k, k.String(), want)
		}
	}
}
