package typebin

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/typebin/typebin-go/internal/errs"
	"github.com/typebin/typebin-go/internal/typestr"
	"github.com/typebin/typebin-go/internal/wire"
)

// Parse reads one value in the text format, inferring the most specific
// type: plain integers become i (or I when they overflow it), numbers with
// a decimal point become d, a list whose elements disagree on type becomes
// a list of dynamic values. A leading <typestring> switches that position
// to type-directed parsing and wraps the result in a dynamic value.
func Parse(text string) (*Value, *Error) {
	p := &parser{s: text}
	ts, data, err := p.infer()
	if err != nil {
		return nil, err
	}
	if err := p.end(); err != nil {
		return nil, err
	}
	return &Value{ts: ts, data: data}, nil
}

// ParseAs reads one value of a known type in the text format.
func ParseAs(ts, text string) (*Value, *Error) {
	if err := typestr.Check(ts); err != nil {
		return nil, err
	}
	p := &parser{s: text}
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	if err := p.typed(ts, 0, w); err != nil {
		return nil, err
	}
	if err := p.end(); err != nil {
		return nil, err
	}
	return &Value{ts: ts, data: buf.Bytes()}, nil
}

type parser struct {
	s string
	i int
}

func (p *parser) fail(msg string) *errs.Error {
	return errs.Newf(errs.ValueMismatch, msg+" at input byte "+strconv.Itoa(p.i))
}

func (p *parser) ws() {
	for p.i < len(p.s) {
		switch p.s[p.i] {
		case ' ', '\t', '\n', '\r':
			p.i++
		default:
			return
		}
	}
}

func (p *parser) peek() byte {
	p.ws()
	if p.i >= len(p.s) {
		return 0
	}
	return p.s[p.i]
}

func (p *parser) eat(c byte) bool {
	if p.peek() == c {
		p.i++
		return true
	}
	return false
}

func (p *parser) expect(c byte) *errs.Error {
	if !p.eat(c) {
		return p.fail("Expected '" + string(rune(c)) + "'")
	}
	return nil
}

func (p *parser) end() *errs.Error {
	p.ws()
	if p.i < len(p.s) {
		return p.fail("Trailing characters after value")
	}
	return nil
}

// word consumes a run of letters and lowercases it.
func (p *parser) word() string {
	p.ws()
	start := p.i
	for p.i < len(p.s) {
		c := p.s[p.i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			p.i++
		} else {
			break
		}
	}
	return strings.ToLower(p.s[start:p.i])
}

// typestring consumes a <...> type prefix.
func (p *parser) typestring() (string, *Error) {
	if err := p.expect('<'); err != nil {
		return "", err
	}
	start := p.i
	for p.i < len(p.s) && p.s[p.i] != '>' {
		p.i++
	}
	if p.i >= len(p.s) {
		return "", p.fail("Unterminated type prefix")
	}
	ts := p.s[start:p.i]
	p.i++
	if err := typestr.Check(ts); err != nil {
		return "", err
	}
	return ts, nil
}

func (p *parser) quoted() (string, *Error) {
	if err := p.expect('"'); err != nil {
		return "", err
	}
	var b strings.Builder
	for {
		if p.i >= len(p.s) {
			return "", p.fail("Unterminated string")
		}
		c := p.s[p.i]
		p.i++
		switch c {
		case '"':
			return b.String(), nil
		case '%':
			v, err := p.hexByte()
			if err != nil {
				return "", err
			}
			b.WriteByte(v)
		default:
			b.WriteByte(c)
		}
	}
}

func (p *parser) hexByte() (byte, *Error) {
	if p.i+2 > len(p.s) {
		return 0, p.fail("Truncated hex escape")
	}
	v, err := strconv.ParseUint(p.s[p.i:p.i+2], 16, 8)
	if err != nil {
		return 0, p.fail("Malformed hex escape")
	}
	p.i += 2
	return byte(v), nil
}

func (p *parser) char() (byte, *Error) {
	if err := p.expect('\''); err != nil {
		return 0, err
	}
	if p.i >= len(p.s) {
		return 0, p.fail("Unterminated character")
	}
	var v byte
	if p.s[p.i] == '%' {
		p.i++
		b, err := p.hexByte()
		if err != nil {
			return 0, err
		}
		v = b
	} else {
		v = p.s[p.i]
		p.i++
	}
	if err := p.expect('\''); err != nil {
		return 0, err
	}
	return v, nil
}

// number consumes a numeric literal and reports whether it carried a
// decimal point or exponent.
func (p *parser) number() (text string, isFloat bool, err *Error) {
	p.ws()
	start := p.i
	if p.i < len(p.s) && (p.s[p.i] == '-' || p.s[p.i] == '+') {
		p.i++
	}
	digits := 0
	for p.i < len(p.s) {
		c := p.s[p.i]
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			isFloat = true
		case c == 'e' || c == 'E':
			isFloat = true
			if p.i+1 < len(p.s) && (p.s[p.i+1] == '-' || p.s[p.i+1] == '+') {
				p.i++
			}
		default:
			if digits == 0 {
				return "", false, p.fail("Expected a number")
			}
			return p.s[start:p.i], isFloat, nil
		}
		p.i++
	}
	if digits == 0 {
		return "", false, p.fail("Expected a number")
	}
	return p.s[start:p.i], isFloat, nil
}

// infer parses one value, deciding its type from the text alone.
func (p *parser) infer() (string, []byte, *Error) {
	switch c := p.peek(); {
	case c == '<':
		frame, err := p.dynValue()
		if err != nil {
			return "", nil, err
		}
		return "a", frame, nil
	case c == '"':
		s, err := p.quoted()
		if err != nil {
			return "", nil, err
		}
		var buf bytes.Buffer
		w := wire.NewWriter(&buf)
		w.WriteString(s)
		return "s", buf.Bytes(), nil
	case c == '\'':
		v, err := p.char()
		if err != nil {
			return "", nil, err
		}
		return "c", []byte{v}, nil
	case c == '(':
		return p.inferTuple()
	case c == '[':
		return p.inferList()
	case c == '{':
		return p.inferMap()
	case c == '!':
		data, err := p.errorRecord()
		if err != nil {
			return "", nil, err
		}
		return "e", data, nil
	case c == '-' || c == '+' || (c >= '0' && c <= '9'):
		return p.inferNumber()
	default:
		switch w := p.word(); w {
		case "true":
			return "b", []byte{1}, nil
		case "false":
			return "b", []byte{0}, nil
		case "null":
			return "", nil, nil
		case "inf":
			return "d", floatBytes(math.Inf(1)), nil
		case "nan":
			return "d", floatBytes(math.NaN()), nil
		}
		return "", nil, p.fail("Expected a value")
	}
}

func (p *parser) inferNumber() (string, []byte, *Error) {
	p.ws()
	if strings.HasPrefix(p.s[p.i:], "-inf") {
		p.i += 4
		return "d", floatBytes(math.Inf(-1)), nil
	}
	text, isFloat, err := p.number()
	if err != nil {
		return "", nil, err
	}
	if isFloat {
		v, perr := strconv.ParseFloat(text, 64)
		if perr != nil {
			return "", nil, p.fail("Malformed number")
		}
		return "d", floatBytes(v), nil
	}
	v, perr := strconv.ParseInt(text, 10, 64)
	if perr != nil {
		return "", nil, p.fail("Integer out of range")
	}
	if v >= math.MinInt32 && v <= math.MaxInt32 {
		return "i", int32Bytes(int32(v)), nil
	}
	return "I", int64Bytes(v), nil
}

func (p *parser) inferTuple() (string, []byte, *Error) {
	if err := p.expect('('); err != nil {
		return "", nil, err
	}
	if p.eat(')') {
		return "", nil, nil // void
	}
	var tss []string
	var body bytes.Buffer
	for {
		ts, data, err := p.infer()
		if err != nil {
			return "", nil, err
		}
		tss = append(tss, ts)
		body.Write(data)
		if p.eat(')') {
			break
		}
		if err := p.expect(';'); err != nil {
			return "", nil, err
		}
	}
	return typestr.Tuple(tss), body.Bytes(), nil
}

func (p *parser) inferList() (string, []byte, *Error) {
	if err := p.expect('['); err != nil {
		return "", nil, err
	}
	if p.eat(']') {
		return "", nil, p.fail("Cannot infer the element type of an empty list")
	}
	var tss []string
	var elems [][]byte
	for {
		ts, data, err := p.infer()
		if err != nil {
			return "", nil, err
		}
		tss = append(tss, ts)
		elems = append(elems, data)
		if p.eat(']') {
			break
		}
		if err := p.expect(';'); err != nil {
			return "", nil, err
		}
	}
	elemTS, elems2 := unifyElems(tss, elems)
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	w.WriteCount(len(elems2))
	for _, e := range elems2 {
		w.WriteRaw(e)
	}
	return "l" + elemTS, buf.Bytes(), nil
}

func (p *parser) inferMap() (string, []byte, *Error) {
	if err := p.expect('{'); err != nil {
		return "", nil, err
	}
	if p.eat('}') {
		return "", nil, p.fail("Cannot infer the entry types of an empty map")
	}
	var kTss, vTss []string
	var keys, vals [][]byte
	for {
		kts, kb, err := p.infer()
		if err != nil {
			return "", nil, err
		}
		if !p.eat(':') && !p.eat('=') {
			return "", nil, p.fail("Expected ':' or '='")
		}
		vts, vb, err := p.infer()
		if err != nil {
			return "", nil, err
		}
		kTss = append(kTss, kts)
		keys = append(keys, kb)
		vTss = append(vTss, vts)
		vals = append(vals, vb)
		if p.eat('}') {
			break
		}
		if err := p.expect(';'); err != nil {
			return "", nil, err
		}
	}
	keyTS, keys2 := unifyElems(kTss, keys)
	valTS, vals2 := unifyElems(vTss, vals)
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	w.WriteCount(len(keys2))
	for i := range keys2 {
		w.WriteRaw(keys2[i])
		w.WriteRaw(vals2[i])
	}
	return "m" + keyTS + valTS, buf.Bytes(), nil
}

// unifyElems reconciles inferred element types: when they all agree that
// type stands, otherwise every element is boxed into a dynamic value.
func unifyElems(tss []string, elems [][]byte) (string, [][]byte) {
	uniform := true
	for _, ts := range tss[1:] {
		if ts != tss[0] {
			uniform = false
			break
		}
	}
	if uniform && !typestr.IsVoid(tss[0]) {
		return tss[0], elems
	}
	boxed := make([][]byte, len(elems))
	for i := range elems {
		boxed[i] = dynFrame(tss[i], elems[i])
	}
	return "a", boxed
}

// errorRecord parses !("category";"message";payload) and returns 'e' bytes.
// The payload position accepts any value and boxes it dynamically.
func (p *parser) errorRecord() ([]byte, *Error) {
	if err := p.expect('!'); err != nil {
		return nil, err
	}
	if err := p.expect('('); err != nil {
		return nil, err
	}
	cat, err := p.quoted()
	if err != nil {
		return nil, err
	}
	if err := p.expect(';'); err != nil {
		return nil, err
	}
	msg, err := p.quoted()
	if err != nil {
		return nil, err
	}
	if err := p.expect(';'); err != nil {
		return nil, err
	}
	frame, err := p.dynValue()
	if err != nil {
		return nil, err
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	w.WriteString(cat)
	w.WriteString(msg)
	w.WriteRaw(frame)
	return buf.Bytes(), nil
}

// dynValue parses a value destined for a dynamic-value position and returns
// its frame. An explicit <typestring> directs the parse; otherwise the
// type is inferred.
func (p *parser) dynValue() ([]byte, *Error) {
	if p.peek() == '<' {
		its, err := p.typestring()
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		iw := wire.NewWriter(&buf)
		if terr := p.typed(its, 0, iw); terr != nil {
			return nil, terr
		}
		return dynFrame(its, buf.Bytes()), nil
	}
	ts, data, err := p.infer()
	if err != nil {
		return nil, err
	}
	return dynFrame(ts, data), nil
}

// typed parses one value of the node at ts[pos], writing its bytes to w.
func (p *parser) typed(ts string, pos int, w *wire.Writer) *errs.Error {
	end := typestr.End(ts, pos)
	if pos == end {
		return p.voidLiteral()
	}
	switch ts[pos] {
	case typestr.TagBool:
		switch p.word() {
		case "true":
			w.WriteBool(true)
		case "false":
			w.WriteBool(false)
		default:
			return p.fail("Expected a boolean")
		}
	case typestr.TagByte:
		if p.peek() == '\'' {
			v, err := p.char()
			if err != nil {
				return err
			}
			w.WriteUint8(v)
			return nil
		}
		v, err := p.intLiteral(0, 255)
		if err != nil {
			return err
		}
		w.WriteUint8(byte(v))
	case typestr.TagInt32:
		v, err := p.intLiteral(math.MinInt32, math.MaxInt32)
		if err != nil {
			return err
		}
		w.WriteInt32(int32(v))
	case typestr.TagInt64:
		v, err := p.intLiteral(math.MinInt64, math.MaxInt64)
		if err != nil {
			return err
		}
		w.WriteInt64(v)
	case typestr.TagDouble:
		v, err := p.floatLiteral()
		if err != nil {
			return err
		}
		w.WriteFloat64(v)
	case typestr.TagString:
		s, err := p.quoted()
		if err != nil {
			return err
		}
		w.WriteString(s)
	case typestr.TagList:
		return p.typedList(ts, pos, w)
	case typestr.TagMap:
		return p.typedMap(ts, pos, w)
	case typestr.TagOption:
		if p.isNull() {
			w.WriteFlag(false)
			return nil
		}
		w.WriteFlag(true)
		return p.typed(ts, pos+1, w)
	case typestr.TagFallible:
		if p.peek() == '!' {
			w.WriteFlag(false)
			rec, err := p.errorRecord()
			if err != nil {
				return err
			}
			w.WriteRaw(rec)
			return nil
		}
		w.WriteFlag(true)
		return p.typed(ts, pos+1, w)
	case typestr.TagFallibleVoid:
		if p.peek() == '!' {
			w.WriteFlag(false)
			rec, err := p.errorRecord()
			if err != nil {
				return err
			}
			w.WriteRaw(rec)
			return nil
		}
		w.WriteFlag(true)
		return p.voidLiteral()
	case typestr.TagTuple:
		return p.typedTuple(ts, pos, end, w)
	case typestr.TagDyn:
		frame, err := p.dynValue()
		if err != nil {
			return err
		}
		w.WriteRaw(frame)
	case typestr.TagError:
		rec, err := p.errorRecord()
		if err != nil {
			return err
		}
		w.WriteRaw(rec)
	}
	return nil
}

func (p *parser) voidLiteral() *errs.Error {
	if p.eat('(') {
		return p.expect(')')
	}
	if p.word() == "null" {
		return nil
	}
	return p.fail("Expected '()' or null")
}

func (p *parser) isNull() bool {
	p.ws()
	rest := p.s[p.i:]
	if len(rest) >= 4 && strings.EqualFold(rest[:4], "null") {
		p.i += 4
		return true
	}
	return false
}

func (p *parser) intLiteral(min, max int64) (int64, *errs.Error) {
	text, isFloat, err := p.number()
	if err != nil {
		return 0, err
	}
	if isFloat {
		return 0, p.fail("Expected an integer")
	}
	v, perr := strconv.ParseInt(text, 10, 64)
	if perr != nil || v < min || v > max {
		return 0, p.fail("Integer out of range")
	}
	return v, nil
}

func (p *parser) floatLiteral() (float64, *errs.Error) {
	switch c := p.peek(); {
	case c == '-' || c == '+' || (c >= '0' && c <= '9'):
		p.ws()
		if strings.HasPrefix(p.s[p.i:], "-inf") {
			p.i += 4
			return math.Inf(-1), nil
		}
		text, _, err := p.number()
		if err != nil {
			return 0, err
		}
		v, perr := strconv.ParseFloat(text, 64)
		if perr != nil {
			return 0, p.fail("Malformed number")
		}
		return v, nil
	default:
		switch p.word() {
		case "inf":
			return math.Inf(1), nil
		case "nan":
			return math.NaN(), nil
		}
		return 0, p.fail("Expected a number")
	}
}

func (p *parser) typedList(ts string, pos int, w *wire.Writer) *errs.Error {
	// A list of bytes also accepts a string literal.
	if ts[pos+1] == typestr.TagByte && p.peek() == '"' {
		s, err := p.quoted()
		if err != nil {
			return err
		}
		w.WriteCount(len(s))
		w.WriteRaw([]byte(s))
		return nil
	}
	if err := p.expect('['); err != nil {
		return err
	}
	var elems [][]byte
	if !p.eat(']') {
		for {
			var buf bytes.Buffer
			ew := wire.NewWriter(&buf)
			if err := p.typed(ts, pos+1, ew); err != nil {
				return err
			}
			elems = append(elems, buf.Bytes())
			if p.eat(']') {
				break
			}
			if err := p.expect(';'); err != nil {
				return err
			}
		}
	}
	w.WriteCount(len(elems))
	for _, e := range elems {
		w.WriteRaw(e)
	}
	return nil
}

func (p *parser) typedMap(ts string, pos int, w *wire.Writer) *errs.Error {
	kPos := pos + 1
	vPos := typestr.End(ts, kPos)
	if err := p.expect('{'); err != nil {
		return err
	}
	var pairs [][]byte
	if !p.eat('}') {
		for {
			var buf bytes.Buffer
			ew := wire.NewWriter(&buf)
			if err := p.typed(ts, kPos, ew); err != nil {
				return err
			}
			if !p.eat(':') && !p.eat('=') {
				return p.fail("Expected ':' or '='")
			}
			if err := p.typed(ts, vPos, ew); err != nil {
				return err
			}
			pairs = append(pairs, buf.Bytes())
			if p.eat('}') {
				break
			}
			if err := p.expect(';'); err != nil {
				return err
			}
		}
	}
	w.WriteCount(len(pairs))
	for _, pr := range pairs {
		w.WriteRaw(pr)
	}
	return nil
}

func (p *parser) typedTuple(ts string, pos, end int, w *wire.Writer) *errs.Error {
	arity, body := typestr.TupleArity(ts[pos:end])
	if err := p.expect('('); err != nil {
		return err
	}
	mPos := pos + body
	for i := 0; i < arity; i++ {
		if i > 0 {
			if err := p.expect(';'); err != nil {
				return err
			}
		}
		if err := p.typed(ts, mPos, w); err != nil {
			return err
		}
		mPos = typestr.End(ts, mPos)
	}
	return p.expect(')')
}

func dynFrame(ts string, data []byte) []byte {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	w.WriteCount(len(ts) + len(data))
	w.WriteRaw([]byte(ts))
	w.WriteRaw(data)
	return buf.Bytes()
}

func int32Bytes(v int32) []byte {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	w.WriteInt32(v)
	return buf.Bytes()
}

func int64Bytes(v int64) []byte {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	w.WriteInt64(v)
	return buf.Bytes()
}

func floatBytes(v float64) []byte {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	w.WriteFloat64(v)
	return buf.Bytes()
}
