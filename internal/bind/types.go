// Package bind maps native Go values onto typestrings and their binary
// encodings. It owns the descriptor-accessor contract through which record
// types opt into serialization, the reflection-based default derivation for
// plain structs, and the native representations of the wire-only shapes
// (dynamic values, error records, fallibles, generic tuples).
package bind

import "fmt"

// Dyn is the native form of a dynamic value: a typestring paired with the
// raw encoding of one value of that type.
type Dyn struct {
	Type string
	Data []byte
}

// ErrorRecord is the native form of the 'e' wire type: a category, a human
// message and a dynamic payload.
type ErrorRecord struct {
	Category string
	Message  string
	Payload  Dyn
}

func (e ErrorRecord) String() string {
	if e.Category == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Tuple is the generic native form of a fixed tuple. Member typestrings are
// derived from the element values, so a Tuple round-trips through the
// collapse rules exactly like a struct does.
type Tuple []any

// Fallible is the native form of the x/X wire types: a tagged union holding
// either a success value or an error record. Its zero value is invalid and
// serializing it reports a not-serializable error.
type Fallible struct {
	val   any
	rec   *ErrorRecord
	ok    bool
	valid bool
	inner string // success-arm typestring when it cannot be derived from val
}

// OK builds a fallible holding a success value. A nil value yields the
// fallible-void type X.
func OK(v any) Fallible {
	return Fallible{val: v, ok: true, valid: true}
}

// Failed builds a fallible-void holding an error record.
func Failed(rec ErrorRecord) Fallible {
	return Fallible{rec: &rec, valid: true}
}

// FailedAs builds a fallible of type x<innerType> holding an error record.
func FailedAs(innerType string, rec ErrorRecord) Fallible {
	return Fallible{rec: &rec, valid: true, inner: innerType}
}

// Ok reports whether the fallible holds a success value.
func (f Fallible) Ok() bool { return f.ok }

// Valid reports whether the fallible was properly constructed.
func (f Fallible) Valid() bool { return f.valid }

// Value returns the success value, nil for the error arm or fallible void.
func (f Fallible) Value() any { return f.val }

// Err returns the held error record, nil for the success arm.
func (f Fallible) Err() *ErrorRecord { return f.rec }
