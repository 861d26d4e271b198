package convert

import (
	"encoding/binary"
	"math"

	"github.com/typebin/typebin-go/internal/errs"
	"github.com/typebin/typebin-go/internal/typestr"
	"github.com/typebin/typebin-go/internal/wire"
)

// src is a cursor over the source typestring and value bytes. tpos points at
// the node being converted, dpos at its first value byte. Copying the struct
// snapshots the position, which is what the backtracking search relies on.
type src struct {
	ts   string
	tpos int
	data []byte
	dpos int
}

func (s *src) node() string {
	return s.ts[s.tpos:typestr.End(s.ts, s.tpos)]
}

// raw consumes the current node and returns its value bytes verbatim. The
// source was validated up front, so a scan failure here is a bug.
func (s *src) raw() []byte {
	tEnd, dEnd, err := wire.Measure(s.ts, s.tpos, s.data, s.dpos)
	if err != nil {
		panic(err)
	}
	b := s.data[s.dpos:dEnd]
	s.tpos, s.dpos = tEnd, dEnd
	return b
}

type conv struct {
	pol  Policy
	sink *Sink
}

// scratch returns a sibling converter whose sink, when collection is on,
// buffers records until a speculative path commits. A nil caller sink stays
// nil so that speculative paths cannot route errors the caller never asked
// to collect.
func (c *conv) scratch() *conv {
	n := &conv{pol: c.pol}
	if c.sink != nil {
		n.sink = &Sink{}
	}
	return n
}

func (c *conv) commit(sub *conv) {
	if c.sink != nil {
		c.sink.merge(sub.sink)
	}
}

// Convert maps one value of type srcTS onto dstTS under pol and returns the
// target encoding. With a non-nil sink, fallible members holding errors that
// cannot be placed in the target are appended to the sink and their target
// slots take default values; with a nil sink the first such member aborts
// the conversion.
func Convert(srcTS string, data []byte, dstTS string, pol Policy, sink *Sink) ([]byte, *errs.Error) {
	if err := typestr.Check(srcTS); err != nil {
		return nil, err
	}
	if err := typestr.Check(dstTS); err != nil {
		return nil, err
	}
	if err := wire.Validate(srcTS, data); err != nil {
		return nil, err
	}
	c := &conv{pol: pol, sink: sink}
	s := &src{ts: srcTS, data: data}
	out, err := c.value(s, dstTS, 0)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []byte{}
	}
	return out, nil
}

// value converts the source node at the cursor into the target node starting
// at dTS[dpos], advancing the cursor past the source node.
func (c *conv) value(s *src, dTS string, dpos int) ([]byte, *errs.Error) {
	sNode := s.node()
	dEnd := typestr.End(dTS, dpos)
	dNode := dTS[dpos:dEnd]

	// Identical types copy verbatim.
	if sNode == dNode {
		return s.raw(), nil
	}

	// Wrapping into a dynamic value accepts any source as-is.
	if dNode != "" && dNode[0] == typestr.TagDyn {
		if !c.pol.Has(Dynamic) {
			return nil, errs.Mismatch("Cannot wrap into a dynamic value", s.ts, s.tpos, dTS, dpos, FlagName(Dynamic))
		}
		raw := s.raw()
		out := appendCount(nil, len(sNode)+len(raw))
		out = append(out, sNode...)
		return append(out, raw...), nil
	}

	// Void source: only void-accepting targets remain.
	if sNode == "" {
		return c.voidTo(s.ts, s.tpos, dTS, dpos)
	}
	sTag := sNode[0]
	var dTag byte
	if dNode != "" {
		dTag = dNode[0]
	}

	// Unwrapping a dynamic source. Failures inside the payload are reported
	// with the inner typestring spliced into the outer one.
	if sTag == typestr.TagDyn {
		if !c.pol.Has(Dynamic) {
			return nil, errs.Mismatch("Cannot unwrap a dynamic value", s.ts, s.tpos, dTS, dpos, FlagName(Dynamic))
		}
		aPos := s.tpos
		raw := s.raw()
		inner, innerData, perr := wire.InnerDyn(raw[4:])
		if perr != nil {
			perr.NestSource(s.ts, aPos)
			return nil, perr
		}
		is := &src{ts: inner, data: innerData}
		out, err := c.value(is, dTS, dpos)
		if err != nil {
			err.NestSource(s.ts, aPos)
			return nil, err
		}
		return out, nil
	}

	// Fallible source feeding a target that is neither fallible nor an
	// error record: unwrap the success arm or route the error arm.
	if (sTag == typestr.TagFallible || sTag == typestr.TagFallibleVoid) &&
		dTag != typestr.TagFallible && dTag != typestr.TagFallibleVoid && dTag != typestr.TagError {
		return c.fromFallible(s, dTS, dpos)
	}

	// A tuple source may collapse onto a narrower target through void decay.
	if sTag == typestr.TagTuple && dTag != typestr.TagTuple && dTag != typestr.TagList {
		var dms []int
		if dNode != "" {
			dms = []int{dpos}
		}
		return c.matchTuple(s, dTS, dpos, dms)
	}

	switch dTag {
	case 0: // void target
		if sTag == typestr.TagOption {
			if !c.pol.Has(Aux) {
				return nil, errs.Mismatch("Cannot convert optional to void", s.ts, s.tpos, dTS, dpos, FlagName(Aux))
			}
			oPos := s.tpos
			raw := s.raw()
			if raw[0] != 0 {
				return nil, errs.Mismatch("Occupied optional cannot convert to void", s.ts, oPos, dTS, dpos, "")
			}
			return nil, nil
		}
		return nil, c.refuse(s, dTS, dpos)
	case typestr.TagBool, typestr.TagByte, typestr.TagInt32, typestr.TagInt64, typestr.TagDouble:
		return c.numeric(s, dTS, dpos)
	case typestr.TagString:
		if sNode == "lc" {
			if !c.pol.Has(Aux) {
				return nil, errs.Mismatch("Cannot convert byte list to string", s.ts, s.tpos, dTS, dpos, FlagName(Aux))
			}
			return s.raw(), nil // same wire shape: count then bytes
		}
		return nil, c.refuse(s, dTS, dpos)
	case typestr.TagList:
		return c.toList(s, dTS, dpos)
	case typestr.TagMap:
		return c.toMap(s, dTS, dpos)
	case typestr.TagOption:
		return c.toOption(s, dTS, dpos)
	case typestr.TagFallible:
		return c.toFallible(s, dTS, dpos)
	case typestr.TagFallibleVoid:
		return c.toFallibleVoid(s, dTS, dpos)
	case typestr.TagTuple:
		return c.toTuple(s, dTS, dpos)
	case typestr.TagError:
		return c.toErrorRecord(s, dTS, dpos)
	}
	return nil, c.refuse(s, dTS, dpos)
}

func (c *conv) refuse(s *src, dTS string, dpos int) *errs.Error {
	return errs.Mismatch("Cannot convert between these types", s.ts, s.tpos, dTS, dpos, "")
}

// voidTo converts a (possibly decayed) void source into the target node.
func (c *conv) voidTo(sTS string, spos int, dTS string, dpos int) ([]byte, *errs.Error) {
	dEnd := typestr.End(dTS, dpos)
	dNode := dTS[dpos:dEnd]
	switch {
	case dNode == "":
		return nil, nil
	case dNode[0] == typestr.TagOption:
		if c.pol.Has(Aux) {
			return []byte{0}, nil
		}
		return nil, errs.Mismatch("Cannot convert void to optional", sTS, spos, dTS, dpos, FlagName(Aux))
	case dNode[0] == typestr.TagFallibleVoid:
		if c.pol.Has(Fallible) {
			return []byte{1}, nil
		}
		return nil, errs.Mismatch("Cannot convert void to fallible", sTS, spos, dTS, dpos, FlagName(Fallible))
	case dNode[0] == typestr.TagDyn:
		if c.pol.Has(Dynamic) {
			return []byte{0, 0, 0, 0}, nil
		}
		return nil, errs.Mismatch("Cannot wrap into a dynamic value", sTS, spos, dTS, dpos, FlagName(Dynamic))
	}
	return nil, errs.Mismatch("Cannot convert void to this type", sTS, spos, dTS, dpos, "")
}

// fromFallible unwraps the success arm of an x/X source or routes its error
// arm to the sink (slot takes the target's default) or to the caller.
func (c *conv) fromFallible(s *src, dTS string, dpos int) ([]byte, *errs.Error) {
	if !c.pol.Has(Fallible) {
		return nil, errs.Mismatch("Cannot unwrap a fallible value", s.ts, s.tpos, dTS, dpos, FlagName(Fallible))
	}
	xPos := s.tpos
	xEnd := typestr.End(s.ts, s.tpos)
	holdsValue := s.data[s.dpos] == 1
	s.dpos++
	if holdsValue {
		if s.ts[xPos] == typestr.TagFallibleVoid {
			s.tpos = xEnd
			return c.voidTo(s.ts, xPos, dTS, dpos)
		}
		s.tpos = xPos + 1
		return c.value(s, dTS, dpos)
	}
	rec := readRecord(s)
	if c.sink != nil {
		c.sink.add(rec)
		return wire.DefaultBytes(dTS[dpos:typestr.End(dTS, dpos)]), nil
	}
	return nil, errs.NewPair(errs.UnplacedErrors,
		"Fallible member holds an error with nowhere to go", s.ts, xPos, dTS, dpos)
}

// readRecord consumes the error record at the cursor, which must sit just
// past the presence flag of the fallible node at tpos, and returns its raw
// bytes. The cursor ends past the whole fallible node.
func readRecord(s *src) []byte {
	_, dEnd, err := wire.Measure("e", 0, s.data, s.dpos)
	if err != nil {
		panic(err)
	}
	rec := s.data[s.dpos:dEnd]
	s.dpos = dEnd
	s.tpos = typestr.End(s.ts, s.tpos)
	return rec
}

func (c *conv) numeric(s *src, dTS string, dpos int) ([]byte, *errs.Error) {
	sTag := s.ts[s.tpos]
	dTag := dTS[dpos]
	if !isNumericTag(sTag) {
		return nil, c.refuse(s, dTS, dpos)
	}
	ok, missing := numericRule(sTag, dTag, c.pol)
	if !ok {
		return nil, errs.Mismatch("Cannot convert between these numeric types", s.ts, s.tpos, dTS, dpos, missing)
	}
	raw := s.raw()
	var iv int64
	switch sTag {
	case typestr.TagBool, typestr.TagByte:
		iv = int64(raw[0])
	case typestr.TagInt32:
		iv = int64(int32(binary.BigEndian.Uint32(raw)))
	case typestr.TagInt64:
		iv = int64(binary.BigEndian.Uint64(raw))
	case typestr.TagDouble:
		fv := math.Float64frombits(binary.BigEndian.Uint64(raw))
		switch {
		case math.IsNaN(fv):
			iv = 0
		case fv >= math.MaxInt64:
			iv = math.MaxInt64
		case fv <= math.MinInt64:
			iv = math.MinInt64
		default:
			iv = int64(fv)
		}
	}
	switch dTag {
	case typestr.TagBool:
		if iv != 0 {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case typestr.TagByte:
		return []byte{byte(iv)}, nil
	case typestr.TagInt32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(int32(iv)))
		return b[:], nil
	case typestr.TagInt64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(iv))
		return b[:], nil
	default: // double, reachable only from i/I
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(float64(iv)))
		return b[:], nil
	}
}

func (c *conv) toList(s *src, dTS string, dpos int) ([]byte, *errs.Error) {
	sNode := s.node()
	dNode := dTS[dpos:typestr.End(dTS, dpos)]
	elemPos := dpos + 1
	switch sNode[0] {
	case typestr.TagString:
		if dNode != "lc" {
			return nil, c.refuse(s, dTS, dpos)
		}
		if !c.pol.Has(Aux) {
			return nil, errs.Mismatch("Cannot convert string to byte list", s.ts, s.tpos, dTS, dpos, FlagName(Aux))
		}
		return s.raw(), nil // same wire shape: count then bytes
	case typestr.TagList:
		lEnd := typestr.End(s.ts, s.tpos)
		elemT := s.tpos + 1
		n := readCountAt(s.data, s.dpos)
		s.dpos += 4
		out := appendCount(nil, n)
		for i := 0; i < n; i++ {
			s.tpos = elemT
			b, err := c.value(s, dTS, elemPos)
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
		s.tpos = lEnd
		return out, nil
	case typestr.TagTuple:
		if !c.pol.Has(TupleList) {
			return nil, errs.Mismatch("Cannot convert tuple to list", s.ts, s.tpos, dTS, dpos, FlagName(TupleList))
		}
		tEnd := typestr.End(s.ts, s.tpos)
		arity, body := typestr.TupleArity(sNode)
		mPos := s.tpos + body
		var elems []byte
		count := 0
		for i := 0; i < arity; i++ {
			s.tpos = mPos
			trial := *s
			sub := c.scratch()
			if b, err := sub.value(&trial, dTS, elemPos); err == nil {
				*s = trial
				c.commit(sub)
				elems = append(elems, b...)
				count++
			} else {
				// Retry with the member treated as vanished.
				decayed := *s
				dsub := c.scratch()
				if _, derr := dsub.value(&decayed, "", 0); derr != nil {
					return nil, err
				}
				*s = decayed
				c.commit(dsub)
			}
			mPos = typestr.End(s.ts, mPos)
		}
		s.tpos = tEnd
		return append(appendCount(nil, count), elems...), nil
	}
	return nil, c.refuse(s, dTS, dpos)
}

func (c *conv) toMap(s *src, dTS string, dpos int) ([]byte, *errs.Error) {
	if s.ts[s.tpos] != typestr.TagMap {
		return nil, c.refuse(s, dTS, dpos)
	}
	mEnd := typestr.End(s.ts, s.tpos)
	kT := s.tpos + 1
	vT := typestr.End(s.ts, kT)
	dk := dpos + 1
	dv := typestr.End(dTS, dk)
	n := readCountAt(s.data, s.dpos)
	s.dpos += 4
	out := appendCount(nil, n)
	for i := 0; i < n; i++ {
		s.tpos = kT
		kb, err := c.value(s, dTS, dk)
		if err != nil {
			return nil, err
		}
		s.tpos = vT
		vb, err := c.value(s, dTS, dv)
		if err != nil {
			return nil, err
		}
		out = append(out, kb...)
		out = append(out, vb...)
	}
	s.tpos = mEnd
	return out, nil
}

func (c *conv) toOption(s *src, dTS string, dpos int) ([]byte, *errs.Error) {
	if s.ts[s.tpos] != typestr.TagOption {
		return nil, c.refuse(s, dTS, dpos)
	}
	oEnd := typestr.End(s.ts, s.tpos)
	present := s.data[s.dpos] == 1
	s.dpos++
	if !present {
		s.tpos = oEnd
		return []byte{0}, nil
	}
	s.tpos++
	b, err := c.value(s, dTS, dpos+1)
	if err != nil {
		return nil, err
	}
	return append([]byte{1}, b...), nil
}

func (c *conv) toFallible(s *src, dTS string, dpos int) ([]byte, *errs.Error) {
	uPos := dpos + 1
	xPos := s.tpos
	xEnd := typestr.End(s.ts, s.tpos)
	switch s.ts[s.tpos] {
	case typestr.TagFallible: // x T -> x U, arms preserved
		holdsValue := s.data[s.dpos] == 1
		s.dpos++
		if holdsValue {
			s.tpos = xPos + 1
			b, err := c.value(s, dTS, uPos)
			if err != nil {
				return nil, err
			}
			return append([]byte{1}, b...), nil
		}
		return append([]byte{0}, readRecord(s)...), nil
	case typestr.TagFallibleVoid: // X -> x U
		holdsValue := s.data[s.dpos] == 1
		s.dpos++
		if holdsValue {
			s.tpos = xEnd
			b, err := c.voidTo(s.ts, xPos, dTS, uPos)
			if err != nil {
				return nil, err
			}
			return append([]byte{1}, b...), nil
		}
		return append([]byte{0}, readRecord(s)...), nil
	case typestr.TagError: // e -> error arm of x U
		if !c.pol.Has(Fallible) {
			return nil, errs.Mismatch("Cannot wrap error record into fallible", s.ts, s.tpos, dTS, dpos, FlagName(Fallible))
		}
		return append([]byte{0}, s.raw()...), nil
	default: // plain T -> success arm of x U
		if !c.pol.Has(Fallible) {
			return nil, errs.Mismatch("Cannot wrap into a fallible value", s.ts, s.tpos, dTS, dpos, FlagName(Fallible))
		}
		b, err := c.value(s, dTS, uPos)
		if err != nil {
			return nil, err
		}
		return append([]byte{1}, b...), nil
	}
}

func (c *conv) toFallibleVoid(s *src, dTS string, dpos int) ([]byte, *errs.Error) {
	xPos := s.tpos
	switch s.ts[s.tpos] {
	case typestr.TagFallible: // x T -> X
		holdsValue := s.data[s.dpos] == 1
		s.dpos++
		if holdsValue {
			s.tpos = xPos + 1
			if err := c.intoVoid(s, dTS, dpos); err != nil {
				return nil, err
			}
			return []byte{1}, nil
		}
		return append([]byte{0}, readRecord(s)...), nil
	case typestr.TagError:
		if !c.pol.Has(Fallible) {
			return nil, errs.Mismatch("Cannot wrap error record into fallible", s.ts, s.tpos, dTS, dpos, FlagName(Fallible))
		}
		return append([]byte{0}, s.raw()...), nil
	default: // plain T -> X: the value must decay to void
		if !c.pol.Has(Fallible) {
			return nil, errs.Mismatch("Cannot wrap into a fallible value", s.ts, s.tpos, dTS, dpos, FlagName(Fallible))
		}
		if err := c.intoVoid(s, dTS, dpos); err != nil {
			return nil, err
		}
		return []byte{1}, nil
	}
}

// intoVoid consumes the current source node, requiring it to convert to
// void. Errors point at the real target node rather than the synthetic void.
func (c *conv) intoVoid(s *src, dTS string, dpos int) *errs.Error {
	_, err := c.value(s, "", 0)
	if err != nil {
		err.Retarget(dTS, dpos)
	}
	return err
}

func (c *conv) toTuple(s *src, dTS string, dpos int) ([]byte, *errs.Error) {
	dNode := dTS[dpos:typestr.End(dTS, dpos)]
	dArity, dBody := typestr.TupleArity(dNode)
	dms := make([]int, dArity)
	p := dpos + dBody
	for j := range dms {
		dms[j] = p
		p = typestr.End(dTS, p)
	}
	switch s.ts[s.tpos] {
	case typestr.TagTuple:
		return c.matchTuple(s, dTS, dpos, dms)
	case typestr.TagList:
		if !c.pol.Has(TupleList) {
			return nil, errs.Mismatch("Cannot convert list to tuple", s.ts, s.tpos, dTS, dpos, FlagName(TupleList))
		}
		lEnd := typestr.End(s.ts, s.tpos)
		elemT := s.tpos + 1
		n := readCountAt(s.data, s.dpos)
		if n != dArity {
			return nil, errs.Mismatch("List length must equal tuple arity", s.ts, s.tpos, dTS, dpos, "")
		}
		s.dpos += 4
		var out []byte
		for j := 0; j < dArity; j++ {
			s.tpos = elemT
			b, err := c.value(s, dTS, dms[j])
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
		s.tpos = lEnd
		return out, nil
	}
	return nil, c.refuse(s, dTS, dpos)
}

func (c *conv) toErrorRecord(s *src, dTS string, dpos int) ([]byte, *errs.Error) {
	switch s.ts[s.tpos] {
	case typestr.TagFallible, typestr.TagFallibleVoid:
		if !c.pol.Has(Fallible) {
			return nil, errs.Mismatch("Cannot unwrap a fallible value", s.ts, s.tpos, dTS, dpos, FlagName(Fallible))
		}
		xPos := s.tpos
		holdsValue := s.data[s.dpos] == 1
		s.dpos++
		if holdsValue {
			return nil, errs.Mismatch("Fallible holds a value, not an error", s.ts, xPos, dTS, dpos, "")
		}
		return readRecord(s), nil
	}
	return nil, c.refuse(s, dTS, dpos)
}

// matchTuple resolves a tuple source against target member slots. Because a
// member may either convert into the next slot or vanish through void decay,
// the match is a backtracking search: try the direct conversion first, and
// on failure of the remainder retry with the member treated as vanished. The
// first concrete error seen along any failed path is surfaced when no path
// succeeds.
func (c *conv) matchTuple(s *src, dTS string, dpos int, dms []int) ([]byte, *errs.Error) {
	tPos := s.tpos
	tEnd := typestr.End(s.ts, s.tpos)
	arity, body := typestr.TupleArity(s.ts[tPos:tEnd])
	sms := make([]int, arity)
	p := tPos + body
	for i := range sms {
		sms[i] = p
		p = typestr.End(s.ts, p)
	}

	var first *errs.Error
	note := func(e *errs.Error) {
		if first == nil {
			first = e
		}
	}

	type result struct {
		bytes []byte
		end   src
		sink  *Sink
	}
	var match func(cur src, i, j int) (result, bool)
	match = func(cur src, i, j int) (result, bool) {
		if i == arity {
			if j == len(dms) {
				return result{end: cur}, true
			}
			note(errs.Mismatch("Not enough tuple members for target", s.ts, tPos, dTS, dms[j], ""))
			return result{}, false
		}
		if j < len(dms) {
			trial := cur
			trial.tpos = sms[i]
			sub := c.scratch()
			if b, err := sub.value(&trial, dTS, dms[j]); err == nil {
				if rest, ok := match(trial, i+1, j+1); ok {
					merged := sub.sink
					if merged == nil {
						merged = rest.sink
					} else {
						merged.merge(rest.sink)
					}
					return result{bytes: append(b, rest.bytes...), end: rest.end, sink: merged}, true
				}
			} else {
				note(err)
			}
		}
		trial := cur
		trial.tpos = sms[i]
		sub := c.scratch()
		if _, err := sub.value(&trial, "", 0); err == nil {
			if rest, ok := match(trial, i+1, j); ok {
				merged := sub.sink
				if merged == nil {
					merged = rest.sink
				} else {
					merged.merge(rest.sink)
				}
				return result{bytes: rest.bytes, end: rest.end, sink: merged}, true
			}
		} else if j >= len(dms) {
			note(err)
		}
		return result{}, false
	}

	res, ok := match(*s, 0, 0)
	if !ok {
		if first == nil {
			first = c.refuse(s, dTS, dpos)
		}
		return nil, first
	}
	*s = res.end
	s.tpos = tEnd
	if c.sink != nil {
		c.sink.merge(res.sink)
	}
	return res.bytes, nil
}

func appendCount(out []byte, n int) []byte {
	return append(out, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
}

func readCountAt(data []byte, pos int) int {
	return int(binary.BigEndian.Uint32(data[pos : pos+4]))
}
