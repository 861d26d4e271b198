package typebin

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/typebin/typebin-go/internal/errs"
	"github.com/typebin/typebin-go/internal/typestr"
	"github.com/typebin/typebin-go/internal/wire"
)

// Options controls rendering.
type Options struct {
	// JSON selects the JSON-like mode: void and absent optionals render as
	// null, tuples as arrays, error records as their message string, and
	// dynamic-value wrappers disappear.
	JSON bool
	// WithType prefixes the text rendering with the value's <typestring>,
	// so parsing the output recovers the exact type. Ignored in JSON mode.
	WithType bool
}

// Print renders a view in the text format (or JSON-like mode). Invalid
// bytes render as the error's message.
func Print(vw View, opts Options) string {
	s, err := PrintChecked(vw, opts)
	if err != nil {
		return err.Error()
	}
	return s
}

// PrintChecked validates the view and renders it.
func PrintChecked(vw View, opts Options) (string, *errs.Error) {
	if err := vw.Validate(); err != nil {
		return "", err
	}
	p := &printer{ts: vw.ts, r: wire.NewReader(vw.data), json: opts.JSON}
	if opts.WithType && !opts.JSON {
		p.b.WriteByte('<')
		p.b.WriteString(vw.ts)
		p.b.WriteByte('>')
	}
	p.node(0)
	return p.b.String(), nil
}

// printer walks validated bytes under a validated typestring, so reads
// cannot fail mid-render.
type printer struct {
	ts   string
	r    *wire.Reader
	b    strings.Builder
	json bool
}

func (p *printer) node(pos int) {
	end := typestr.End(p.ts, pos)
	if pos == end {
		p.void()
		return
	}
	switch p.ts[pos] {
	case typestr.TagBool:
		if p.r.ReadBool() {
			p.b.WriteString("true")
		} else {
			p.b.WriteString("false")
		}
	case typestr.TagByte:
		p.char(p.r.ReadUint8())
	case typestr.TagInt32:
		p.b.WriteString(strconv.FormatInt(int64(p.r.ReadInt32()), 10))
	case typestr.TagInt64:
		p.b.WriteString(strconv.FormatInt(p.r.ReadInt64(), 10))
	case typestr.TagDouble:
		p.double(p.r.ReadFloat64())
	case typestr.TagString:
		p.str(p.r.ReadString())
	case typestr.TagList:
		p.list(pos)
	case typestr.TagMap:
		p.mapping(pos)
	case typestr.TagOption:
		if p.r.ReadFlag() {
			p.node(pos + 1)
		} else {
			p.b.WriteString("null")
		}
	case typestr.TagFallible:
		if p.r.ReadFlag() {
			p.node(pos + 1)
		} else {
			p.errorRecord()
		}
	case typestr.TagFallibleVoid:
		if p.r.ReadFlag() {
			p.void()
		} else {
			p.errorRecord()
		}
	case typestr.TagTuple:
		p.tuple(pos, end)
	case typestr.TagDyn:
		p.dyn()
	case typestr.TagError:
		p.errorRecord()
	}
}

func (p *printer) void() {
	if p.json {
		p.b.WriteString("null")
	} else {
		p.b.WriteString("()")
	}
}

func (p *printer) char(c byte) {
	if p.json {
		p.b.WriteString(strconv.Itoa(int(c)))
		return
	}
	p.b.WriteByte('\'')
	if c >= 0x20 && c < 0x7f && c != '\'' && c != '%' {
		p.b.WriteByte(c)
	} else {
		p.b.WriteString(hexEscape(c))
	}
	p.b.WriteByte('\'')
}

func (p *printer) double(v float64) {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	switch s {
	case "+Inf":
		s = "inf"
	case "-Inf":
		s = "-inf"
	case "NaN":
		s = "nan"
	default:
		// The text grammar tells a double from an integer by its decimal
		// point.
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
	}
	if p.json && (s == "inf" || s == "-inf" || s == "nan") {
		s = `"` + s + `"`
	}
	p.b.WriteString(s)
}

func (p *printer) str(s string) {
	if p.json {
		b, _ := json.Marshal(s)
		p.b.Write(b)
		return
	}
	p.b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c == 0x7f || c == '"' || c == '%' {
			p.b.WriteString(hexEscape(c))
		} else {
			p.b.WriteByte(c)
		}
	}
	p.b.WriteByte('"')
}

func hexEscape(c byte) string {
	const hex = "0123456789abcdef"
	return string([]byte{'%', hex[c>>4], hex[c&0xf]})
}

func (p *printer) list(pos int) {
	n := p.r.ReadCount()
	p.b.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			p.sep()
		}
		p.node(pos + 1)
	}
	p.b.WriteByte(']')
}

func (p *printer) mapping(pos int) {
	kPos := pos + 1
	vPos := typestr.End(p.ts, kPos)
	n := p.r.ReadCount()
	p.b.WriteByte('{')
	for i := 0; i < n; i++ {
		if i > 0 {
			p.sep()
		}
		p.mapKey(kPos)
		p.b.WriteByte(':')
		p.node(vPos)
	}
	p.b.WriteByte('}')
}

// mapKey renders a map key. JSON object keys must be strings, so non-string
// keys render into a nested quoted form.
func (p *printer) mapKey(kPos int) {
	if !p.json || p.ts[kPos] == typestr.TagString {
		p.node(kPos)
		return
	}
	sub := &printer{ts: p.ts, r: p.r, json: true}
	sub.node(kPos)
	b, _ := json.Marshal(sub.b.String())
	p.b.Write(b)
}

func (p *printer) tuple(pos, end int) {
	arity, body := typestr.TupleArity(p.ts[pos:end])
	open, shut := byte('('), byte(')')
	if p.json {
		open, shut = '[', ']'
	}
	p.b.WriteByte(open)
	mPos := pos + body
	for i := 0; i < arity; i++ {
		if i > 0 {
			p.sep()
		}
		p.node(mPos)
		mPos = typestr.End(p.ts, mPos)
	}
	p.b.WriteByte(shut)
}

func (p *printer) dyn() {
	n := p.r.ReadCount()
	payload := p.r.ReadRaw(n)
	inner, body, _ := wire.InnerDyn(payload)
	sub := &printer{ts: inner, r: wire.NewReader(body), json: p.json}
	sub.node(0)
	if !p.json {
		p.b.WriteByte('<')
		p.b.WriteString(inner)
		p.b.WriteByte('>')
	}
	p.b.WriteString(sub.b.String())
}

// errorRecord renders an error arm: !("category";"message";payload) in text,
// just the message string in JSON.
func (p *printer) errorRecord() {
	cat := p.r.ReadString()
	msg := p.r.ReadString()
	n := p.r.ReadCount()
	payload := p.r.ReadRaw(n)
	if p.json {
		b, _ := json.Marshal(msg)
		p.b.Write(b)
		return
	}
	p.b.WriteString("!(")
	p.str(cat)
	p.b.WriteByte(';')
	p.str(msg)
	p.b.WriteByte(';')
	inner, body, _ := wire.InnerDyn(payload)
	sub := &printer{ts: inner, r: wire.NewReader(body)}
	sub.node(0)
	p.b.WriteByte('<')
	p.b.WriteString(inner)
	p.b.WriteByte('>')
	p.b.WriteString(sub.b.String())
	p.b.WriteByte(')')
}

func (p *printer) sep() {
	if p.json {
		p.b.WriteByte(',')
	} else {
		p.b.WriteByte(';')
	}
}
