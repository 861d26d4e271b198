package bind

import (
	"reflect"

	"github.com/typebin/typebin-go/internal/errs"
	"github.com/typebin/typebin-go/internal/typestr"
	"github.com/typebin/typebin-go/internal/wire"
)

// Unmarshal decodes one value of type ts into out, which must be a non-nil
// pointer. The decode is strict: ts must describe the shape out expects, no
// conversions are applied.
func Unmarshal(ts string, data []byte, out any) *errs.Error {
	return UnmarshalTagged(ts, data, out)
}

// UnmarshalTagged is Unmarshal with context tags, resolved against tagged
// mutable accessors the same way MarshalTagged resolves read accessors.
func UnmarshalTagged(ts string, data []byte, out any, tags ...string) *errs.Error {
	if err := typestr.Check(ts); err != nil {
		return err
	}
	if err := wire.Validate(ts, data); err != nil {
		return err
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errs.Newf(errs.NotSerializable, "decode target must be a non-nil pointer")
	}
	d := &decoder{ts: ts, r: wire.NewReader(data), tags: tags}
	return d.value(0, rv.Elem())
}

type decoder struct {
	ts   string
	r    *wire.Reader
	tags []string
}

func (d *decoder) mismatch(pos int, what string) *errs.Error {
	return errs.New(errs.TypeMismatch, what, d.ts, pos)
}

// value decodes the node at ts[pos] into rv. The data was validated up
// front, so reads cannot fail structurally; every error here is a shape
// disagreement between the typestring and the Go target.
func (d *decoder) value(pos int, rv reflect.Value) *errs.Error {
	t := rv.Type()
	switch t {
	case dynType:
		return d.dyn(pos, rv)
	case errorRecordType:
		return d.errorRecord(pos, rv)
	case fallibleType:
		return d.fallible(pos, rv)
	case tupleType:
		return d.tuple(pos, rv)
	}
	if rv.Kind() == reflect.Struct {
		return d.record(pos, rv)
	}
	if rv.Kind() == reflect.Interface && rv.NumMethod() == 0 {
		return d.generic(pos, rv)
	}

	end := typestr.End(d.ts, pos)
	if pos == end {
		return d.mismatch(pos, "Go value of type "+t.String()+" cannot hold void")
	}
	switch d.ts[pos] {
	case typestr.TagBool:
		if rv.Kind() != reflect.Bool {
			return d.badTarget(pos, t)
		}
		rv.SetBool(d.r.ReadBool())
	case typestr.TagByte:
		switch rv.Kind() {
		case reflect.Uint8:
			rv.SetUint(uint64(d.r.ReadUint8()))
		case reflect.Int8:
			rv.SetInt(int64(int8(d.r.ReadUint8())))
		default:
			return d.badTarget(pos, t)
		}
	case typestr.TagInt32:
		v := d.r.ReadInt32()
		switch rv.Kind() {
		case reflect.Int16, reflect.Int32:
			rv.SetInt(int64(v))
		case reflect.Uint16:
			rv.SetUint(uint64(uint16(v)))
		default:
			return d.badTarget(pos, t)
		}
	case typestr.TagInt64:
		v := d.r.ReadInt64()
		switch rv.Kind() {
		case reflect.Int64, reflect.Int:
			rv.SetInt(v)
		case reflect.Uint32, reflect.Uint64, reflect.Uint:
			rv.SetUint(uint64(v))
		default:
			return d.badTarget(pos, t)
		}
	case typestr.TagDouble:
		if rv.Kind() != reflect.Float32 && rv.Kind() != reflect.Float64 {
			return d.badTarget(pos, t)
		}
		rv.SetFloat(d.r.ReadFloat64())
	case typestr.TagString:
		if rv.Kind() != reflect.String {
			return d.badTarget(pos, t)
		}
		rv.SetString(d.r.ReadString())
	case typestr.TagList:
		return d.list(pos, rv)
	case typestr.TagMap:
		return d.mapping(pos, rv)
	case typestr.TagOption:
		if rv.Kind() != reflect.Ptr {
			return d.badTarget(pos, t)
		}
		if !d.r.ReadFlag() {
			rv.Set(reflect.Zero(t))
			return nil
		}
		ev := reflect.New(t.Elem())
		if err := d.value(pos+1, ev.Elem()); err != nil {
			return err
		}
		rv.Set(ev)
	case typestr.TagFallible, typestr.TagFallibleVoid:
		return d.badTarget(pos, t)
	case typestr.TagDyn, typestr.TagError, typestr.TagTuple:
		return d.badTarget(pos, t)
	}
	return nil
}

func (d *decoder) badTarget(pos int, t reflect.Type) *errs.Error {
	return d.mismatch(pos, "Go value of type "+t.String()+" cannot hold a "+typestr.Name(d.ts[pos]))
}

func (d *decoder) list(pos int, rv reflect.Value) *errs.Error {
	n := d.r.ReadCount()
	switch rv.Kind() {
	case reflect.Slice:
		if rv.Type() == byteSliceType && d.ts[pos+1] == typestr.TagByte {
			raw := d.r.ReadRaw(n)
			rv.SetBytes(append([]byte(nil), raw...))
			return nil
		}
		sv := reflect.MakeSlice(rv.Type(), n, n)
		for i := 0; i < n; i++ {
			if err := d.value(pos+1, sv.Index(i)); err != nil {
				return err
			}
		}
		rv.Set(sv)
	case reflect.Array:
		if rv.Len() != n {
			return d.mismatch(pos, "List length does not match array length")
		}
		for i := 0; i < n; i++ {
			if err := d.value(pos+1, rv.Index(i)); err != nil {
				return err
			}
		}
	default:
		return d.badTarget(pos, rv.Type())
	}
	return nil
}

func (d *decoder) mapping(pos int, rv reflect.Value) *errs.Error {
	if rv.Kind() != reflect.Map {
		return d.badTarget(pos, rv.Type())
	}
	kPos := pos + 1
	vPos := typestr.End(d.ts, kPos)
	n := d.r.ReadCount()
	mv := reflect.MakeMapWithSize(rv.Type(), n)
	for i := 0; i < n; i++ {
		kv := reflect.New(rv.Type().Key()).Elem()
		if err := d.value(kPos, kv); err != nil {
			return err
		}
		vv := reflect.New(rv.Type().Elem()).Elem()
		if err := d.value(vPos, vv); err != nil {
			return err
		}
		mv.SetMapIndex(kv, vv)
	}
	rv.Set(mv)
	return nil
}

func (d *decoder) dyn(pos int, rv reflect.Value) *errs.Error {
	if pos >= len(d.ts) || d.ts[pos] != typestr.TagDyn {
		return d.mismatch(pos, "Go value of type Dyn can only hold a dynamic value")
	}
	n := d.r.ReadCount()
	payload := d.r.ReadRaw(n)
	inner, body, err := wire.InnerDyn(payload)
	if err != nil {
		return err
	}
	rv.Set(reflect.ValueOf(Dyn{Type: inner, Data: append([]byte(nil), body...)}))
	return nil
}

func (d *decoder) errorRecord(pos int, rv reflect.Value) *errs.Error {
	if pos >= len(d.ts) || d.ts[pos] != typestr.TagError {
		return d.mismatch(pos, "Go value of type ErrorRecord can only hold an error record")
	}
	rec, err := d.readErrorRecord()
	if err != nil {
		return err
	}
	rv.Set(reflect.ValueOf(rec))
	return nil
}

func (d *decoder) readErrorRecord() (ErrorRecord, *errs.Error) {
	var rec ErrorRecord
	rec.Category = d.r.ReadString()
	rec.Message = d.r.ReadString()
	n := d.r.ReadCount()
	payload := d.r.ReadRaw(n)
	inner, body, err := wire.InnerDyn(payload)
	if err != nil {
		return rec, err
	}
	rec.Payload = Dyn{Type: inner, Data: append([]byte(nil), body...)}
	return rec, nil
}

func (d *decoder) fallible(pos int, rv reflect.Value) *errs.Error {
	if pos >= len(d.ts) ||
		(d.ts[pos] != typestr.TagFallible && d.ts[pos] != typestr.TagFallibleVoid) {
		return d.mismatch(pos, "Go value of type Fallible can only hold a fallible")
	}
	inner := ""
	if d.ts[pos] == typestr.TagFallible {
		inner = d.ts[pos+1 : typestr.End(d.ts, pos)]
	}
	var f Fallible
	if d.r.ReadFlag() {
		f = OK(nil)
		if inner != "" {
			iv := reflect.New(reflect.TypeOf((*any)(nil)).Elem()).Elem()
			if err := d.generic(pos+1, iv); err != nil {
				return err
			}
			f = OK(iv.Interface())
		}
	} else {
		rec, err := d.readErrorRecord()
		if err != nil {
			return err
		}
		f = FailedAs(inner, rec)
		if inner == "" {
			f = Failed(rec)
		}
	}
	rv.Set(reflect.ValueOf(f))
	return nil
}

func (d *decoder) tuple(pos int, rv reflect.Value) *errs.Error {
	end := typestr.End(d.ts, pos)
	if pos == end {
		rv.Set(reflect.ValueOf(Tuple{}))
		return nil
	}
	var memberPos []int
	if d.ts[pos] == typestr.TagTuple {
		arity, body := typestr.TupleArity(d.ts[pos:end])
		p := pos + body
		for i := 0; i < arity; i++ {
			memberPos = append(memberPos, p)
			p = typestr.End(d.ts, p)
		}
	} else {
		memberPos = []int{pos}
	}
	out := make(Tuple, len(memberPos))
	for i, mp := range memberPos {
		iv := reflect.New(reflect.TypeOf((*any)(nil)).Elem()).Elem()
		if err := d.generic(mp, iv); err != nil {
			return err
		}
		out[i] = iv.Interface()
	}
	rv.Set(reflect.ValueOf(out))
	return nil
}

// generic decodes the node at pos into an empty interface by synthesizing
// the natural Go type for the node and decoding into that.
func (d *decoder) generic(pos int, rv reflect.Value) *errs.Error {
	end := typestr.End(d.ts, pos)
	if pos == end {
		rv.Set(reflect.Zero(rv.Type()))
		return nil
	}
	t, err := d.goType(pos)
	if err != nil {
		return err
	}
	nv := reflect.New(t).Elem()
	if err := d.value(pos, nv); err != nil {
		return err
	}
	rv.Set(nv)
	return nil
}

// goType maps the node at pos to the Go type a generic decode produces.
// The mapping is chosen so that re-deriving a typestring from the decoded
// value gives the node back unchanged.
func (d *decoder) goType(pos int) (reflect.Type, *errs.Error) {
	switch d.ts[pos] {
	case typestr.TagBool:
		return reflect.TypeOf(false), nil
	case typestr.TagByte:
		return reflect.TypeOf(byte(0)), nil
	case typestr.TagInt32:
		return reflect.TypeOf(int32(0)), nil
	case typestr.TagInt64:
		return reflect.TypeOf(int64(0)), nil
	case typestr.TagDouble:
		return reflect.TypeOf(float64(0)), nil
	case typestr.TagString:
		return reflect.TypeOf(""), nil
	case typestr.TagList:
		elem, err := d.goType(pos + 1)
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(elem), nil
	case typestr.TagMap:
		kt, err := d.goType(pos + 1)
		if err != nil {
			return nil, err
		}
		vt, err := d.goType(typestr.End(d.ts, pos+1))
		if err != nil {
			return nil, err
		}
		if !kt.Comparable() {
			return nil, d.mismatch(pos+1, "Map key type has no Go map representation")
		}
		return reflect.MapOf(kt, vt), nil
	case typestr.TagOption:
		elem, err := d.goType(pos + 1)
		if err != nil {
			return nil, err
		}
		return reflect.PtrTo(elem), nil
	case typestr.TagFallible, typestr.TagFallibleVoid:
		return fallibleType, nil
	case typestr.TagTuple:
		return tupleType, nil
	case typestr.TagDyn:
		return dynType, nil
	case typestr.TagError:
		return errorRecordType, nil
	}
	return nil, d.mismatch(pos, "Unhandled type tag")
}

// record decodes the node at pos into a struct via its mutable accessor, or
// by reflection over its serializable fields. Void-typed fields do not
// take part; the surviving fields must line up with the node under the
// tuple collapse rules.
func (d *decoder) record(pos int, rv reflect.Value) *errs.Error {
	if !rv.CanAddr() {
		return errs.Newf(errs.NotSerializable, "decode target struct is not addressable")
	}
	av := rv.Addr().Interface()
	if _, both := av.(AfterReader); both {
		if _, simple := av.(AfterReadSimple); simple {
			return errs.Newf(errs.NotSerializable,
				"type "+rv.Type().String()+" defines both AfterRead and AfterReadSimple")
		}
	}
	err := d.recordMembers(pos, rv, av)
	if err != nil {
		if are, ok := av.(AfterReadErrorer); ok {
			are.AfterReadError(err)
		}
		return err
	}
	if ar, ok := av.(AfterReader); ok {
		if herr := ar.AfterRead(); herr != nil {
			return errs.Newf(errs.ValueMismatch, herr.Error())
		}
	} else if ars, ok := av.(AfterReadSimple); ok {
		ars.AfterReadSimple()
	}
	return nil
}

func (d *decoder) recordMembers(pos int, rv reflect.Value, av any) *errs.Error {
	fields, used, err := d.mutFields(av)
	if err != nil {
		return err
	}
	var targets []reflect.Value
	if used {
		for _, f := range fields {
			fv := reflect.ValueOf(f)
			if fv.Kind() != reflect.Ptr || fv.IsNil() {
				return errs.Newf(errs.NotSerializable,
					"mutable accessor of "+rv.Type().String()+" returned a non-pointer member")
			}
			targets = append(targets, fv.Elem())
		}
	} else {
		for _, f := range serialStructFields(rv.Type()) {
			targets = append(targets, rv.FieldByIndex(f.Index))
		}
	}

	// Void-typed fields vanished from the encoding; skip them here too.
	live := targets[:0:0]
	for _, tv := range targets {
		ts, terr := typeFromReflect(tv.Type())
		if terr != nil {
			return terr
		}
		if !typestr.IsVoid(ts) {
			live = append(live, tv)
		}
	}

	end := typestr.End(d.ts, pos)
	switch len(live) {
	case 0:
		if pos != end {
			return d.mismatch(pos, "Go value of type "+rv.Type().String()+" has no members to decode into")
		}
		return nil
	case 1:
		return d.value(pos, live[0])
	}
	if pos == end || d.ts[pos] != typestr.TagTuple {
		return d.mismatch(pos, "Go value of type "+rv.Type().String()+" expects a tuple")
	}
	arity, body := typestr.TupleArity(d.ts[pos:end])
	if arity != len(live) {
		return d.mismatch(pos, "Tuple arity does not match the member count of "+rv.Type().String())
	}
	mPos := pos + body
	for _, tv := range live {
		if err := d.value(mPos, tv); err != nil {
			return err
		}
		mPos = typestr.End(d.ts, mPos)
	}
	return nil
}

func (d *decoder) mutFields(av any) ([]any, bool, *errs.Error) {
	if ta, ok := av.(TaggedMutableAccessor); ok {
		for _, tag := range d.tags {
			if fields, ok := ta.SerialFieldsMutTagged(tag); ok {
				return fields, true, nil
			}
		}
	}
	if a, ok := av.(MutableAccessor); ok {
		return a.SerialFieldsMut(), true, nil
	}
	return nil, false, nil
}
