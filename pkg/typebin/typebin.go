// Package typebin is the public face of the codec: schema-free binary
// serialization of Go values against self-describing typestrings, policy
// driven conversion between typestrings, and a textual print/parse layer.
//
// A typestring is a compact prefix-code description of a value's shape
// ("i" an int32, "ls" a list of strings, "t2iod" a pair of an int32 and an
// optional double). Encoded values carry no framing of their own; the
// typestring is the only schema.
package typebin

import (
	"reflect"

	"github.com/typebin/typebin-go/internal/bind"
	"github.com/typebin/typebin-go/internal/convert"
	"github.com/typebin/typebin-go/internal/errs"
	"github.com/typebin/typebin-go/internal/typestr"
)

// Error is the structured error type every operation returns. It carries
// the error category, the offending typestring(s) and a byte offset that
// renders as a '*' position marker.
type Error = errs.Error

// Kind discriminates the error categories.
type Kind = errs.Kind

// Error categories.
const (
	BadTypestring   = errs.BadTypestring
	ValueMismatch   = errs.ValueMismatch
	TypeMismatch    = errs.TypeMismatch
	UnplacedErrors  = errs.UnplacedErrors
	NotSerializable = errs.NotSerializable
)

// Policy is the conversion-policy bitmask; combine flags with bitwise OR.
type Policy = convert.Policy

// Conversion-policy flags.
const (
	Ints          = convert.Ints
	IntsNarrowing = convert.IntsNarrowing
	Double        = convert.Double
	Bool          = convert.Bool
	Fallible      = convert.Fallible
	Dynamic       = convert.Dynamic
	Aux           = convert.Aux
	TupleList     = convert.TupleList
	None          = convert.None
	All           = convert.All
)

// Native representations of the wire-only shapes.
type (
	// Dyn pairs a typestring with one encoded value of that type.
	Dyn = bind.Dyn
	// ErrorRecord is a category, a message and a dynamic payload.
	ErrorRecord = bind.ErrorRecord
	// FallibleValue holds either a success value or an ErrorRecord.
	FallibleValue = bind.Fallible
	// Tuple is the generic native form of a fixed tuple.
	Tuple = bind.Tuple
)

// OK builds a fallible holding a success value.
func OK(v any) FallibleValue { return bind.OK(v) }

// Failed builds a fallible-void holding an error record.
func Failed(rec ErrorRecord) FallibleValue { return bind.Failed(rec) }

// FailedAs builds a fallible of type x<innerType> holding an error record.
func FailedAs(innerType string, rec ErrorRecord) FallibleValue {
	return bind.FailedAs(innerType, rec)
}

// CheckType validates a typestring.
func CheckType(ts string) *Error { return typestr.Check(ts) }

// TypeOf derives the typestring a Go value serializes as.
func TypeOf(v any) (string, *Error) { return bind.TypeOf(v) }

// TypeFor derives the typestring for a Go type with no value in hand.
func TypeFor(t reflect.Type) (string, *Error) { return bind.TypeFor(t) }

// Marshal encodes a Go value, returning its typestring and bytes.
func Marshal(v any) (string, []byte, *Error) { return bind.Marshal(v) }

// MarshalTagged is Marshal with accessor context tags.
func MarshalTagged(v any, tags ...string) (string, []byte, *Error) {
	return bind.MarshalTagged(v, tags...)
}

// Unmarshal decodes one value of type ts into out, a non-nil pointer,
// with no conversions applied.
func Unmarshal(ts string, data []byte, out any) *Error {
	return bind.Unmarshal(ts, data, out)
}

// UnmarshalTagged is Unmarshal with accessor context tags.
func UnmarshalTagged(ts string, data []byte, out any, tags ...string) *Error {
	return bind.UnmarshalTagged(ts, data, out, tags...)
}

// Register derives and caches the typestring of a record type, verifying
// the accessor contract up front.
func Register(v any) (*bind.TypeInfo, *Error) { return bind.Register(v) }
