package typebin

import (
	"bytes"
	"encoding/binary"
	"reflect"

	"github.com/cespare/xxhash/v2"

	"github.com/typebin/typebin-go/internal/bind"
	"github.com/typebin/typebin-go/internal/convert"
	"github.com/typebin/typebin-go/internal/errs"
	"github.com/typebin/typebin-go/internal/typestr"
	"github.com/typebin/typebin-go/internal/wire"
)

// Value is an owning dynamic value: a typestring paired with its own copy
// of one encoded value of that type. A Value built by this package is
// always internally consistent.
type Value struct {
	ts   string
	data []byte
}

// View is a borrowing dynamic value: it aliases a caller-owned byte slice
// instead of copying it, and stays valid only as long as that slice does.
// Unlike a Value it may be built unchecked; call Validate before trusting
// foreign bytes.
type View struct {
	ts   string
	data []byte
}

// ValueOf serializes a Go value into an owning dynamic value.
func ValueOf(v any) (*Value, *Error) {
	return ValueOfTagged(v)
}

// ValueOfTagged is ValueOf with accessor context tags.
func ValueOfTagged(v any, tags ...string) (*Value, *Error) {
	ts, data, err := bind.MarshalTagged(v, tags...)
	if err != nil {
		return nil, err
	}
	return &Value{ts: ts, data: data}, nil
}

// FromRaw builds an owning dynamic value from a typestring and encoded
// bytes, validating both and copying the bytes.
func FromRaw(ts string, data []byte) (*Value, *Error) {
	if err := typestr.Check(ts); err != nil {
		return nil, err
	}
	if err := wire.Validate(ts, data); err != nil {
		return nil, err
	}
	return &Value{ts: ts, data: append([]byte(nil), data...)}, nil
}

// FromRawUnchecked is FromRaw without validation, for bytes this package
// produced itself. It still copies.
func FromRawUnchecked(ts string, data []byte) *Value {
	return &Value{ts: ts, data: append([]byte(nil), data...)}
}

// DefaultValue builds the canonical default value of a typestring: zero
// numbers, empty containers, absent optionals, fallibles holding their
// default success arm.
func DefaultValue(ts string) (*Value, *Error) {
	if err := typestr.Check(ts); err != nil {
		return nil, err
	}
	return &Value{ts: ts, data: wire.DefaultBytes(ts)}, nil
}

// Type returns the typestring.
func (v *Value) Type() string { return v.ts }

// Bytes returns the encoded bytes. The slice is owned by the Value; do not
// modify it.
func (v *Value) Bytes() []byte { return v.data }

// IsVoid reports whether the value is the void value.
func (v *Value) IsVoid() bool { return typestr.IsVoid(v.ts) }

// View returns a borrowing view over the value's own storage.
func (v *Value) View() View { return View{ts: v.ts, data: v.data} }

// Get decodes the value into out, a non-nil pointer, converting under pol
// first when the value's type does not already match out's shape.
func (v *Value) Get(out any, pol Policy) *Error {
	return v.GetTagged(out, pol)
}

// GetTagged is Get with accessor context tags.
func (v *Value) GetTagged(out any, pol Policy, tags ...string) *Error {
	err := bind.UnmarshalTagged(v.ts, v.data, out, tags...)
	if err == nil || err.Kind != errs.TypeMismatch {
		return err
	}
	// Shape disagreement: derive the target's own typestring and convert.
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return err
	}
	dstTS, terr := bind.TypeFor(rv.Type().Elem())
	if terr != nil || dstTS == v.ts {
		return err
	}
	data, cerr := convert.Convert(v.ts, v.data, dstTS, pol, nil)
	if cerr != nil {
		return cerr
	}
	return bind.UnmarshalTagged(dstTS, data, out, tags...)
}

// GetAs decodes the value into a fresh T, converting under pol as needed.
func GetAs[T any](v *Value, pol Policy) (T, *Error) {
	var out T
	err := v.Get(&out, pol)
	return out, err
}

// ConvertTo converts the value to the target typestring under pol. Fallible
// members holding errors that the target cannot represent abort the
// conversion; use ConvertCollect to gather them instead.
func (v *Value) ConvertTo(ts string, pol Policy) (*Value, *Error) {
	data, err := convert.Convert(v.ts, v.data, ts, pol, nil)
	if err != nil {
		return nil, err
	}
	return &Value{ts: ts, data: data}, nil
}

// ConvertCollect is ConvertTo in error-collection mode: fallible errors
// with no place in the target are dropped from the result and returned as
// records instead of aborting.
func (v *Value) ConvertCollect(ts string, pol Policy) (*Value, []ErrorRecord, *Error) {
	var sink convert.Sink
	data, err := convert.Convert(v.ts, v.data, ts, pol, &sink)
	if err != nil {
		return nil, nil, err
	}
	recs := make([]ErrorRecord, 0, sink.Len())
	for _, raw := range sink.Records {
		var rec ErrorRecord
		if uerr := bind.Unmarshal("e", raw, &rec); uerr != nil {
			return nil, nil, uerr
		}
		recs = append(recs, rec)
	}
	return &Value{ts: ts, data: data}, recs, nil
}

// CanConvertTo reports whether a conversion to ts under pol would succeed,
// returning nil when it would and the refusal otherwise.
func (v *Value) CanConvertTo(ts string, pol Policy) *Error {
	return convert.CannotConvert(v.ts, ts, pol, v.data)
}

// Wrap boxes the value inside a dynamic-value wrapper, giving type "a".
func (v *Value) Wrap() *Value {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	w.WriteCount(len(v.ts) + len(v.data))
	w.WriteRaw([]byte(v.ts))
	w.WriteRaw(v.data)
	return &Value{ts: "a", data: buf.Bytes()}
}

// Unwrap unboxes one dynamic-value wrapper, recovering the inner value.
func (v *Value) Unwrap() (*Value, *Error) {
	if v.ts != "a" {
		return nil, errs.New(errs.TypeMismatch, "Only a dynamic value can be unwrapped", v.ts, 0)
	}
	if len(v.data) < 4 {
		return nil, errs.New(errs.ValueMismatch, "Truncated value", v.ts, 0)
	}
	inner, body, err := wire.InnerDyn(v.data[4:])
	if err != nil {
		return nil, err
	}
	return &Value{ts: inner, data: append([]byte(nil), body...)}, nil
}

// Equal reports whether two values have identical typestrings and bytes.
func (v *Value) Equal(o *Value) bool {
	return v.ts == o.ts && bytes.Equal(v.data, o.data)
}

// Fingerprint returns a 64-bit hash over the typestring and the bytes,
// stable across processes.
func (v *Value) Fingerprint() uint64 {
	h := xxhash.New()
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(v.ts)))
	_, _ = h.Write(n[:])
	_, _ = h.WriteString(v.ts)
	_, _ = h.Write(v.data)
	return h.Sum64()
}

// String renders the value in the text format.
func (v *Value) String() string {
	return Print(v.View(), Options{})
}

// MarshalJSON renders the value in the JSON-like mode.
func (v *Value) MarshalJSON() ([]byte, error) {
	s, err := PrintChecked(v.View(), Options{JSON: true})
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// ViewOf builds an unchecked borrowing view. The bytes are aliased, not
// copied.
func ViewOf(ts string, data []byte) View {
	return View{ts: ts, data: data}
}

// Validate checks that the view's typestring is well formed and its bytes
// are exactly one value of that type.
func (vw View) Validate() *Error {
	if err := typestr.Check(vw.ts); err != nil {
		return err
	}
	return wire.Validate(vw.ts, vw.data)
}

// Type returns the typestring.
func (vw View) Type() string { return vw.ts }

// Bytes returns the borrowed bytes.
func (vw View) Bytes() []byte { return vw.data }

// Materialize copies the view into an owning Value.
func (vw View) Materialize() *Value {
	return FromRawUnchecked(vw.ts, vw.data)
}

// Get decodes the view into out, converting under pol as needed.
func (vw View) Get(out any, pol Policy) *Error {
	return vw.Materialize().Get(out, pol)
}

// Wrap boxes the viewed value inside a dynamic-value wrapper. The result
// owns its bytes, so it outlives the view's storage.
func (vw View) Wrap() *Value {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	w.WriteCount(len(vw.ts) + len(vw.data))
	w.WriteRaw([]byte(vw.ts))
	w.WriteRaw(vw.data)
	return &Value{ts: "a", data: buf.Bytes()}
}

// Unwrap unboxes one dynamic-value wrapper without copying the inner
// bytes; the result borrows from the same storage.
func (vw View) Unwrap() (View, *Error) {
	if vw.ts != "a" {
		return View{}, errs.New(errs.TypeMismatch, "Only a dynamic value can be unwrapped", vw.ts, 0)
	}
	if len(vw.data) < 4 {
		return View{}, errs.New(errs.ValueMismatch, "Truncated value", vw.ts, 0)
	}
	inner, body, err := wire.InnerDyn(vw.data[4:])
	if err != nil {
		return View{}, err
	}
	return View{ts: inner, data: body}, nil
}
