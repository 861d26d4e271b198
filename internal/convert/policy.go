// Package convert implements the conversion engine: given a source
// (typestring, bytes) pair and a target typestring, it produces the target's
// byte encoding under a caller-supplied policy bitmask, or a positioned
// error. A companion predicate answers convertibility without materializing
// a result.
package convert

import "strings"

// Policy is an immutable bitmask of independent coercion capabilities,
// combined with bitwise OR and passed by value through the whole engine.
type Policy uint32

const (
	// Ints allows widening conversions among c, i and I.
	Ints Policy = 1 << iota
	// IntsNarrowing also allows narrowing among them, silently truncating
	// on overflow. It implies Ints.
	IntsNarrowing
	// Double allows conversions between i/I and d.
	Double
	// Bool allows conversions between c/i/I and b.
	Bool
	// Fallible allows x/X <-> T conversions and e <-> x.
	Fallible
	// Dynamic allows T <-> a conversions.
	Dynamic
	// Aux allows s <-> list-of-byte and void <-> optional conversions.
	Aux
	// TupleList allows fixed tuple <-> list conversions.
	TupleList
)

const (
	// None grants no coercions: only identical typestrings convert.
	None Policy = 0
	// All grants every coercion the engine knows.
	All Policy = Ints | IntsNarrowing | Double | Bool | Fallible | Dynamic | Aux | TupleList
)

// Has reports whether the policy grants flag. IntsNarrowing implies Ints.
func (p Policy) Has(flag Policy) bool {
	if flag == Ints {
		return p&(Ints|IntsNarrowing) != 0
	}
	return p&flag == flag
}

// FlagName returns the canonical name of a single policy flag, used in
// type-mismatch messages to say which capability was missing.
func FlagName(flag Policy) string {
	switch flag {
	case Ints:
		return "ints"
	case IntsNarrowing:
		return "ints-narrowing"
	case Double:
		return "double"
	case Bool:
		return "bool"
	case Fallible:
		return "fallible"
	case Dynamic:
		return "dynamic"
	case Aux:
		return "aux"
	case TupleList:
		return "tuple-list"
	}
	return "none"
}

// String renders the policy as a +-joined flag list.
func (p Policy) String() string {
	if p == None {
		return "none"
	}
	var parts []string
	for _, f := range []Policy{Ints, IntsNarrowing, Double, Bool, Fallible, Dynamic, Aux, TupleList} {
		if p&f != 0 {
			parts = append(parts, FlagName(f))
		}
	}
	return strings.Join(parts, "+")
}
