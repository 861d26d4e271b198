package wire

import (
	"github.com/typebin/typebin-go/internal/errs"
	"github.com/typebin/typebin-go/internal/typestr"
)

// Measure walks the value bytes of the type starting at ts[tpos] and returns
// the offsets just past the type and just past its value. It never reads
// beyond data; truncation and malformed flags surface as ValueMismatch
// errors whose offset points at the failing node of ts.
func Measure(ts string, tpos int, data []byte, dpos int) (tEnd, dEnd int, err *errs.Error) {
	tEnd = typestr.End(ts, tpos)
	if tpos == tEnd {
		return tEnd, dpos, nil // void
	}
	fail := func(msg string) (int, int, *errs.Error) {
		return 0, 0, errs.New(errs.ValueMismatch, msg, ts, tpos)
	}
	need := func(n int) bool { return dpos+n <= len(data) }

	switch ts[tpos] {
	case typestr.TagBool, typestr.TagByte:
		if !need(1) {
			return fail("Truncated value")
		}
		if ts[tpos] == typestr.TagBool && data[dpos] > 1 {
			return fail("Boolean byte is neither 0 nor 1")
		}
		return tEnd, dpos + 1, nil
	case typestr.TagInt32:
		if !need(4) {
			return fail("Truncated value")
		}
		return tEnd, dpos + 4, nil
	case typestr.TagInt64, typestr.TagDouble:
		if !need(8) {
			return fail("Truncated value")
		}
		return tEnd, dpos + 8, nil
	case typestr.TagString:
		n, ok := readCountAt(data, dpos)
		if !ok || !need(4+n) {
			return fail("Truncated value")
		}
		return tEnd, dpos + 4 + n, nil
	case typestr.TagList:
		n, ok := readCountAt(data, dpos)
		if !ok {
			return fail("Truncated value")
		}
		dpos += 4
		for i := 0; i < n; i++ {
			_, dpos, err = Measure(ts, tpos+1, data, dpos)
			if err != nil {
				return 0, 0, err
			}
		}
		return tEnd, dpos, nil
	case typestr.TagMap:
		n, ok := readCountAt(data, dpos)
		if !ok {
			return fail("Truncated value")
		}
		dpos += 4
		kPos := tpos + 1
		vPos := typestr.End(ts, kPos)
		for i := 0; i < n; i++ {
			if _, dpos, err = Measure(ts, kPos, data, dpos); err != nil {
				return 0, 0, err
			}
			if _, dpos, err = Measure(ts, vPos, data, dpos); err != nil {
				return 0, 0, err
			}
		}
		return tEnd, dpos, nil
	case typestr.TagOption, typestr.TagFallible, typestr.TagFallibleVoid:
		if !need(1) {
			return fail("Truncated value")
		}
		flag := data[dpos]
		if flag > 1 {
			return fail("Presence flag is neither 0 nor 1")
		}
		dpos++
		switch {
		case ts[tpos] == typestr.TagOption && flag == 1:
			_, dpos, err = Measure(ts, tpos+1, data, dpos)
		case ts[tpos] == typestr.TagFallible && flag == 1:
			_, dpos, err = Measure(ts, tpos+1, data, dpos)
		case ts[tpos] != typestr.TagOption && flag == 0:
			// Error arm: an error record follows.
			dpos, err = measureErrorRecord(ts, tpos, data, dpos)
		}
		if err != nil {
			return 0, 0, err
		}
		return tEnd, dpos, nil
	case typestr.TagTuple:
		arity, body := typestr.TupleArity(ts[tpos:tEnd])
		mPos := tpos + body
		for i := 0; i < arity; i++ {
			mPos, dpos, err = Measure(ts, mPos, data, dpos)
			if err != nil {
				return 0, 0, err
			}
		}
		return tEnd, dpos, nil
	case typestr.TagDyn:
		n, ok := readCountAt(data, dpos)
		if !ok || !need(4+n) {
			return fail("Truncated value")
		}
		payload := data[dpos+4 : dpos+4+n]
		inner, perr := innerType(payload)
		if perr != nil {
			perr.NestSource(ts, tpos)
			return 0, 0, perr
		}
		if verr := Validate(inner, payload[len(inner):]); verr != nil {
			verr.NestSource(ts, tpos)
			return 0, 0, verr
		}
		return tEnd, dpos + 4 + n, nil
	case typestr.TagError:
		dpos, err = measureErrorRecord(ts, tpos, data, dpos)
		if err != nil {
			return 0, 0, err
		}
		return tEnd, dpos, nil
	}
	return fail("Unhandled type tag")
}

// measureErrorRecord scans the category string, message string and dynamic
// payload of an error record. tpos is only used for error positions.
func measureErrorRecord(ts string, tpos int, data []byte, dpos int) (int, *errs.Error) {
	for i := 0; i < 2; i++ {
		n, ok := readCountAt(data, dpos)
		if !ok || dpos+4+n > len(data) {
			return 0, errs.New(errs.ValueMismatch, "Truncated error record", ts, tpos)
		}
		dpos += 4 + n
	}
	_, dEnd, err := Measure("a", 0, data, dpos)
	if err != nil {
		return 0, errs.New(errs.ValueMismatch, "Truncated error record", ts, tpos)
	}
	return dEnd, nil
}

// innerType extracts the self-delimiting typestring from the front of a
// dynamic value payload.
func innerType(payload []byte) (string, *errs.Error) {
	s := string(payload)
	n, err := typestr.Parse(s)
	if err != nil {
		return "", err
	}
	return s[:n], nil
}

// InnerDyn splits a dynamic value payload (as framed after its count prefix)
// into the inner typestring and the inner value bytes.
func InnerDyn(payload []byte) (string, []byte, *errs.Error) {
	inner, err := innerType(payload)
	if err != nil {
		return "", nil, err
	}
	return inner, payload[len(inner):], nil
}

func readCountAt(data []byte, pos int) (int, bool) {
	if pos+4 > len(data) {
		return 0, false
	}
	n := uint32(data[pos])<<24 | uint32(data[pos+1])<<16 | uint32(data[pos+2])<<8 | uint32(data[pos+3])
	return int(n), true
}

// Validate checks that data is exactly one value of type ts: it must scan
// cleanly and consume every byte present.
func Validate(ts string, data []byte) *errs.Error {
	_, dEnd, err := Measure(ts, 0, data, 0)
	if err != nil {
		return err
	}
	if dEnd != len(data) {
		return errs.New(errs.ValueMismatch, "Extra bytes after value", ts, len(ts))
	}
	return nil
}

// DefaultBytes synthesizes the canonical default value for a typestring:
// zero numbers, empty strings, empty containers, absent optionals and
// fallibles holding their default success arm. The result always passes
// Validate.
func DefaultBytes(ts string) []byte {
	var out []byte
	appendDefault(&out, ts, 0)
	return out
}

func appendDefault(out *[]byte, ts string, pos int) int {
	end := typestr.End(ts, pos)
	if pos == end {
		return end
	}
	switch ts[pos] {
	case typestr.TagBool, typestr.TagByte:
		*out = append(*out, 0)
	case typestr.TagInt32:
		*out = append(*out, 0, 0, 0, 0)
	case typestr.TagInt64, typestr.TagDouble:
		*out = append(*out, 0, 0, 0, 0, 0, 0, 0, 0)
	case typestr.TagString, typestr.TagList, typestr.TagMap, typestr.TagDyn:
		*out = append(*out, 0, 0, 0, 0)
	case typestr.TagOption:
		*out = append(*out, 0)
	case typestr.TagFallible:
		*out = append(*out, 1)
		appendDefault(out, ts, pos+1)
	case typestr.TagFallibleVoid:
		*out = append(*out, 1)
	case typestr.TagTuple:
		arity, body := typestr.TupleArity(ts[pos:end])
		mPos := pos + body
		for i := 0; i < arity; i++ {
			mPos = appendDefault(out, ts, mPos)
		}
	case typestr.TagError:
		// Empty category, empty message, void payload.
		*out = append(*out, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	}
	return end
}
