// Package typestr implements the typestring grammar: a prefix-free type
// descriptor language in which every valid typestring's extent can be found
// by a single left-to-right scan, with no external length information.
//
//	type      := primitive | 'l' type | 'm' type type | 'o' type | 'x' type
//	           | 'X' | 't' digits(>=2) type{count} | 'a' | 'e' | ''  (void)
//	primitive := 'b' | 'c' | 'i' | 'I' | 'd' | 's'
package typestr

import (
	"strconv"
	"strings"

	"github.com/typebin/typebin-go/internal/errs"
)

// Type tag characters.
const (
	TagBool         byte = 'b'
	TagByte         byte = 'c'
	TagInt32        byte = 'i'
	TagInt64        byte = 'I'
	TagDouble       byte = 'd'
	TagString       byte = 's'
	TagList         byte = 'l'
	TagMap          byte = 'm'
	TagOption       byte = 'o'
	TagFallible     byte = 'x'
	TagFallibleVoid byte = 'X'
	TagTuple        byte = 't'
	TagDyn          byte = 'a'
	TagError        byte = 'e'
)

// MaxArity bounds the declared arity of a tuple. Anything above it is
// rejected as malformed rather than risking pathological allocation.
const MaxArity = 1 << 20

// Parse consumes exactly one type's worth of characters from the front of s
// and returns how many bytes it consumed. It never looks past the first
// complete type, so a longer string's unconsumed tail is left to the caller.
// An empty string parses as void with zero consumed.
func Parse(s string) (int, *errs.Error) {
	return parseOne(s, 0)
}

// Check validates that s is exactly one complete type with nothing trailing.
func Check(s string) *errs.Error {
	n, err := parseOne(s, 0)
	if err != nil {
		return err
	}
	if n < len(s) {
		return errs.New(errs.BadTypestring, "Extra characters after typestring", s, n)
	}
	return nil
}

// parseOne parses the type starting at pos and returns the offset just past
// it. Error offsets are absolute within s.
func parseOne(s string, pos int) (int, *errs.Error) {
	if pos >= len(s) {
		return pos, nil // void
	}
	switch s[pos] {
	case TagBool, TagByte, TagInt32, TagInt64, TagDouble, TagString,
		TagFallibleVoid, TagDyn, TagError:
		return pos + 1, nil
	case TagList, TagOption, TagFallible:
		return parseInner(s, pos+1)
	case TagMap:
		next, err := parseInner(s, pos+1)
		if err != nil {
			return 0, err
		}
		return parseInner(s, next)
	case TagTuple:
		return parseTuple(s, pos)
	default:
		return 0, errs.New(errs.BadTypestring, "Invalid character in typestring", s, pos)
	}
}

// parseInner parses one nested type that, unlike void, must actually be
// present.
func parseInner(s string, pos int) (int, *errs.Error) {
	if pos >= len(s) {
		return 0, errs.New(errs.BadTypestring, "Unexpected end of typestring", s, len(s))
	}
	return parseOne(s, pos)
}

func parseTuple(s string, pos int) (int, *errs.Error) {
	digits := pos + 1
	end := digits
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		if end >= len(s) {
			return 0, errs.New(errs.BadTypestring, "Unexpected end of typestring", s, len(s))
		}
		return 0, errs.New(errs.BadTypestring, "Invalid character in typestring", s, end)
	}
	arity, convErr := strconv.Atoi(s[digits:end])
	if convErr != nil || arity > MaxArity {
		return 0, errs.New(errs.BadTypestring, "Tuple arity out of range", s, digits)
	}
	if arity < 2 {
		return 0, errs.New(errs.BadTypestring, "Tuple arity must be at least 2", s, digits)
	}
	next := end
	for i := 0; i < arity; i++ {
		var err *errs.Error
		next, err = parseInner(s, next)
		if err != nil {
			return 0, err
		}
	}
	return next, nil
}

// End returns the offset just past the type starting at pos. It panics on
// malformed input and is meant for typestrings already validated by Check.
func End(s string, pos int) int {
	n, err := parseOne(s, pos)
	if err != nil {
		panic(err)
	}
	return n
}

// IsVoid reports whether t is the void type. Every non-void type that the
// grammar can express occupies at least one byte on the wire, so void is
// also the only void-like (always zero length) type a well-formed typestring
// can contain.
func IsVoid(t string) bool { return t == "" }

// Inner returns the nested type of an 'l', 'o' or 'x' wrapper.
func Inner(t string) string { return t[1:] }

// MapKV splits a map typestring into its key and value types.
func MapKV(t string) (key, value string) {
	kEnd := End(t, 1)
	return t[1:kEnd], t[kEnd:]
}

// TupleArity returns the declared arity of a tuple typestring and the offset
// at which its first member begins.
func TupleArity(t string) (arity, body int) {
	i := 1
	for i < len(t) && t[i] >= '0' && t[i] <= '9' {
		i++
	}
	n, _ := strconv.Atoi(t[1:i])
	return n, i
}

// TupleMembers returns the member types of a tuple typestring in order.
func TupleMembers(t string) []string {
	arity, pos := TupleArity(t)
	members := make([]string, 0, arity)
	for i := 0; i < arity; i++ {
		end := End(t, pos)
		members = append(members, t[pos:end])
		pos = end
	}
	return members
}

// Tuple assembles a tuple typestring from member types, applying the void
// collapse rules: void members are dropped, a single survivor stands alone,
// and no survivors at all yield void.
func Tuple(members []string) string {
	kept := members[:0:0]
	for _, m := range members {
		if !IsVoid(m) {
			kept = append(kept, m)
		}
	}
	switch len(kept) {
	case 0:
		return ""
	case 1:
		return kept[0]
	}
	var b strings.Builder
	b.WriteByte(TagTuple)
	b.WriteString(strconv.Itoa(len(kept)))
	for _, m := range kept {
		b.WriteString(m)
	}
	return b.String()
}

// Name returns a human-readable name for a tag byte, for diagnostics.
func Name(tag byte) string {
	switch tag {
	case TagBool:
		return "boolean"
	case TagByte:
		return "byte"
	case TagInt32:
		return "int32"
	case TagInt64:
		return "int64"
	case TagDouble:
		return "double"
	case TagString:
		return "string"
	case TagList:
		return "list"
	case TagMap:
		return "map"
	case TagOption:
		return "optional"
	case TagFallible:
		return "fallible"
	case TagFallibleVoid:
		return "fallible void"
	case TagTuple:
		return "tuple"
	case TagDyn:
		return "dynamic value"
	case TagError:
		return "error record"
	default:
		return "unknown tag '" + string(rune(tag)) + "'"
	}
}
