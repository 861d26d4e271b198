// Package errs defines the structured error model shared by the typestring
// parser, the binary codec and the conversion engine.
//
// Every error carries the offending typestring(s) together with a byte offset
// marking the exact point of failure. Rendering inserts a '*' marker at that
// offset so messages show, for example, `t2cc*c` for a failure just after the
// second member of a pair.
package errs

import "strings"

// Kind discriminates the five error categories.
type Kind int

const (
	// BadTypestring reports a malformed or over-long typestring.
	BadTypestring Kind = iota + 1
	// ValueMismatch reports value bytes that do not scan against their
	// declared typestring (truncation, bad flags, trailing bytes).
	ValueMismatch
	// TypeMismatch reports a refused conversion; it carries both the source
	// and target typestring and, when relevant, the missing policy flag.
	TypeMismatch
	// UnplacedErrors reports fallible members holding errors that could not
	// be routed anywhere during a conversion.
	UnplacedErrors
	// NotSerializable reports a value that cannot be serialized, such as an
	// invalid fallible or a type violating the accessor contract.
	NotSerializable
)

// String returns the category name used in rendered messages.
func (k Kind) String() string {
	switch k {
	case BadTypestring:
		return "bad typestring"
	case ValueMismatch:
		return "value does not match typestring"
	case TypeMismatch:
		return "type mismatch"
	case UnplacedErrors:
		return "unplaceable fallible errors"
	case NotSerializable:
		return "not serializable"
	default:
		return "unknown error"
	}
}

// Error is the single concrete error type of the library. Src and Dst hold
// full typestrings; SrcOff and DstOff are byte offsets into them. Dst is
// empty for every kind except TypeMismatch and UnplacedErrors. Flag names
// the policy capability whose absence refused a conversion, if any.
type Error struct {
	Kind   Kind
	Msg    string
	Src    string
	SrcOff int
	Dst    string
	DstOff int
	Flag   string

	hasSrc bool
	hasDst bool
}

// New builds an error of the given kind positioned inside a single
// typestring.
func New(kind Kind, msg, ts string, off int) *Error {
	return &Error{Kind: kind, Msg: msg, Src: ts, SrcOff: off, hasSrc: true}
}

// Newf is a plain constructor for errors that carry no typestring at all,
// such as accessor contract violations.
func Newf(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// NewPair builds an error carrying both a source and a target typestring.
func NewPair(kind Kind, msg, src string, srcOff int, dst string, dstOff int) *Error {
	return &Error{
		Kind:   kind,
		Msg:    msg,
		Src:    src,
		SrcOff: srcOff,
		Dst:    dst,
		DstOff: dstOff,
		hasSrc: true,
		hasDst: true,
	}
}

// Mismatch builds a TypeMismatch carrying both sides. flag may be empty when
// the refusal is structural rather than policy-driven.
func Mismatch(msg, src string, srcOff int, dst string, dstOff int, flag string) *Error {
	e := NewPair(TypeMismatch, msg, src, srcOff, dst, dstOff)
	e.Flag = flag
	return e
}

// Mark renders ts with a '*' inserted at byte offset off. Offsets outside the
// string clamp to its ends.
func Mark(ts string, off int) string {
	if off < 0 {
		off = 0
	}
	if off > len(ts) {
		off = len(ts)
	}
	return ts[:off] + "*" + ts[off:]
}

// MarkSource renders the source typestring with its offset marker.
func (e *Error) MarkSource() string { return Mark(e.Src, e.SrcOff) }

// MarkTarget renders the target typestring with its offset marker.
func (e *Error) MarkTarget() string { return Mark(e.Dst, e.DstOff) }

// Retarget points the error at dst when its current target is empty or
// absent. Errors already carrying a real target are left alone.
func (e *Error) Retarget(dst string, off int) {
	if e.Dst != "" {
		return
	}
	e.Dst = dst
	e.DstOff = off
	e.hasDst = true
}

// Error renders the category, the message and the marked typestring(s).
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("typebin: ")
	b.WriteString(e.Kind.String())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.hasSrc {
		if e.hasDst {
			b.WriteString(` (source "`)
			b.WriteString(Mark(e.Src, e.SrcOff))
			b.WriteString(`", target "`)
			b.WriteString(Mark(e.Dst, e.DstOff))
			b.WriteString(`")`)
		} else {
			b.WriteString(` (type "`)
			b.WriteString(Mark(e.Src, e.SrcOff))
			b.WriteString(`")`)
		}
	}
	if e.Flag != "" {
		b.WriteString(" [missing policy flag ")
		b.WriteString(e.Flag)
		b.WriteString("]")
	}
	return b.String()
}

// NestSource rewrites the error's source typestring as a parenthesized
// insertion inside outer, at the position pos of the dynamic-value tag the
// failure occurred under. The offset moves with it, so the rendered message
// shows the full nested path rather than just the leaf.
func (e *Error) NestSource(outer string, pos int) {
	if !e.hasSrc {
		e.Src = outer
		e.SrcOff = pos
		e.hasSrc = true
		return
	}
	e.SrcOff += pos + 2 // past the tag and the opening parenthesis
	e.Src = outer[:pos+1] + "(" + e.Src + ")" + outer[pos+1:]
}

// NestTarget is the target-side counterpart of NestSource.
func (e *Error) NestTarget(outer string, pos int) {
	if !e.hasDst {
		e.Dst = outer
		e.DstOff = pos
		e.hasDst = true
		return
	}
	e.DstOff += pos + 2
	e.Dst = outer[:pos+1] + "(" + e.Dst + ")" + outer[pos+1:]
}
