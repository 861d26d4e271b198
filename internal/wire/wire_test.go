package wire

import (
	"bytes"
	"testing"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteBool(true)
	w.WriteUint8(0xAB)
	w.WriteInt32(-123456)
	w.WriteInt64(1 << 40)
	w.WriteFloat64(-6.25)
	w.WriteString("hello")
	w.WriteFlag(false)
	if err := w.Error(); err != nil {
		t.Fatalf("write: %v", err)
	}

	r := NewReader(buf.Bytes())
	if v := r.ReadBool(); v != true {
		t.Errorf("bool = %v", v)
	}
	if v := r.ReadUint8(); v != 0xAB {
		t.Errorf("byte = %#x", v)
	}
	if v := r.ReadInt32(); v != -123456 {
		t.Errorf("int32 = %d", v)
	}
	if v := r.ReadInt64(); v != 1<<40 {
		t.Errorf("int64 = %d", v)
	}
	if v := r.ReadFloat64(); v != -6.25 {
		t.Errorf("float = %v", v)
	}
	if v := r.ReadString(); v != "hello" {
		t.Errorf("string = %q", v)
	}
	if v := r.ReadFlag(); v {
		t.Errorf("flag = %v", v)
	}
	if err := r.Error(); err != nil {
		t.Fatalf("read: %v", err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("remaining = %d", r.Remaining())
	}
}

func TestBigEndianLayout(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteInt32(1)
	if got := buf.Bytes(); !bytes.Equal(got, []byte{0, 0, 0, 1}) {
		t.Fatalf("int32(1) = %v", got)
	}
	buf.Reset()
	w = NewWriter(&buf)
	w.WriteFloat64(1.0)
	if got := buf.Bytes(); got[0] != 0x3f || got[1] != 0xf0 {
		t.Fatalf("float64(1.0) = %v", got)
	}
}

func TestReaderLatchesTruncation(t *testing.T) {
	r := NewReader([]byte{1, 2})
	_ = r.ReadInt32()
	if r.Error() != ErrTruncated {
		t.Fatalf("err = %v, want ErrTruncated", r.Error())
	}
	// Later reads stay no-ops.
	if v := r.ReadInt64(); v != 0 {
		t.Fatalf("read after error = %d", v)
	}
}

func TestReadCountRejectsOversized(t *testing.T) {
	r := NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF, 1})
	_ = r.ReadCount()
	if r.Error() != ErrTruncated {
		t.Fatalf("err = %v, want ErrTruncated", r.Error())
	}
}

func TestValidate(t *testing.T) {
	ok := []struct {
		ts   string
		data []byte
	}{
		{"", nil},
		{"b", []byte{1}},
		{"c", []byte{200}},
		{"i", []byte{0, 0, 0, 5}},
		{"s", []byte{0, 0, 0, 2, 'h', 'i'}},
		{"lc", []byte{0, 0, 0, 3, 1, 2, 3}},
		{"oi", []byte{0}},
		{"oi", []byte{1, 0, 0, 0, 7}},
		{"X", []byte{1}},
		{"t2ic", []byte{0, 0, 0, 1, 9}},
		{"a", []byte{0, 0, 0, 5, 'i', 0, 0, 0, 3}},
		{"e", []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
	}
	for _, c := range ok {
		if err := Validate(c.ts, c.data); err != nil {
			t.Errorf("Validate(%q, %v) = %v", c.ts, c.data, err)
		}
	}

	bad := []struct {
		ts   string
		data []byte
		msg  string
	}{
		{"i", []byte{0, 0}, "Truncated value"},
		{"b", []byte{2}, "Boolean byte is neither 0 nor 1"},
		{"oi", []byte{2}, "Presence flag is neither 0 nor 1"},
		{"i", []byte{0, 0, 0, 5, 9}, "Extra bytes after value"},
		{"", []byte{1}, "Extra bytes after value"},
		{"s", []byte{0, 0, 0, 9, 'h'}, "Truncated value"},
		{"li", []byte{0, 0, 0, 2, 0, 0, 0, 1}, "Truncated value"},
		{"e", []byte{0, 0, 0, 0}, "Truncated error record"},
		{"a", []byte{0, 0, 0, 1, 'z'}, "Invalid character in typestring"},
	}
	for _, c := range bad {
		err := Validate(c.ts, c.data)
		if err == nil {
			t.Errorf("Validate(%q, %v) succeeded, want %q", c.ts, c.data, c.msg)
			continue
		}
		if err.Msg != c.msg {
			t.Errorf("Validate(%q, %v) msg = %q, want %q", c.ts, c.data, err.Msg, c.msg)
		}
	}
}

func TestMeasureOffsets(t *testing.T) {
	// t2is: i then s.
	data := []byte{0, 0, 0, 1, 0, 0, 0, 2, 'o', 'k'}
	tEnd, dEnd, err := Measure("t2is", 0, data, 0)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if tEnd != 4 || dEnd != len(data) {
		t.Fatalf("tEnd=%d dEnd=%d", tEnd, dEnd)
	}
}

func TestMeasureNestedDynError(t *testing.T) {
	// A dynamic value holding a truncated i.
	data := []byte{0, 0, 0, 3, 'i', 0, 0}
	err := Validate("a", data)
	if err == nil {
		t.Fatal("want error")
	}
	if err.Src != "a(i)" {
		t.Fatalf("Src = %q, want a(i)", err.Src)
	}
}

func TestInnerDyn(t *testing.T) {
	ts, body, err := InnerDyn([]byte{'l', 'c', 0, 0, 0, 1, 7})
	if err != nil {
		t.Fatalf("InnerDyn: %v", err)
	}
	if ts != "lc" || !bytes.Equal(body, []byte{0, 0, 0, 1, 7}) {
		t.Fatalf("ts=%q body=%v", ts, body)
	}
}

func TestDefaultBytes(t *testing.T) {
	cases := []string{"", "b", "c", "i", "I", "d", "s", "lc", "mis", "oi", "xi", "X", "t3ics", "a", "e", "t2xie"}
	for _, ts := range cases {
		data := DefaultBytes(ts)
		if err := Validate(ts, data); err != nil {
			t.Errorf("DefaultBytes(%q) = %v does not validate: %v", ts, data, err)
		}
	}
	// Map int -> string defaults to the empty map.
	if got := DefaultBytes("mis"); !bytes.Equal(got, []byte{0, 0, 0, 0}) {
		t.Fatalf("DefaultBytes(mis) = %v", got)
	}
	// Fallible defaults hold their success arm.
	if got := DefaultBytes("xd"); got[0] != 1 || len(got) != 9 {
		t.Fatalf("DefaultBytes(xd) = %v", got)
	}
}
