package bind

import (
	"bytes"
	"reflect"
	"sort"

	"github.com/typebin/typebin-go/internal/errs"
	"github.com/typebin/typebin-go/internal/typestr"
	"github.com/typebin/typebin-go/internal/wire"
)

// Marshal derives v's typestring and encodes v against it in a single walk,
// so the two can never disagree.
func Marshal(v any) (string, []byte, *errs.Error) {
	return MarshalTagged(v)
}

// MarshalTagged is Marshal with context tags. Each record encountered during
// the walk is offered the tags in order and the first one it recognizes
// selects the member set; records that recognize none fall back to their
// untagged members.
func MarshalTagged(v any, tags ...string) (string, []byte, *errs.Error) {
	e := &encoder{tags: tags}
	return e.value(v)
}

type encoder struct {
	tags     []string
	typeOnly bool // skip write hooks, the bytes are discarded
}

func (e *encoder) value(v any) (string, []byte, *errs.Error) {
	if v == nil {
		return "", nil, nil
	}
	var w bytes.Buffer
	switch x := v.(type) {
	case bool:
		if x {
			return "b", []byte{1}, nil
		}
		return "b", []byte{0}, nil
	case uint8:
		return "c", []byte{x}, nil
	case int8:
		return "c", []byte{byte(x)}, nil
	case int16:
		return "i", be32(int32(x)), nil
	case uint16:
		return "i", be32(int32(x)), nil
	case int32:
		return "i", be32(x), nil
	case int64:
		return "I", be64(x), nil
	case int:
		return "I", be64(int64(x)), nil
	case uint32:
		return "I", be64(int64(x)), nil
	case uint64:
		return "I", be64(int64(x)), nil
	case uint:
		return "I", be64(int64(x)), nil
	case float32:
		ww := wire.NewWriter(&w)
		ww.WriteFloat64(float64(x))
		return "d", w.Bytes(), nil
	case float64:
		ww := wire.NewWriter(&w)
		ww.WriteFloat64(x)
		return "d", w.Bytes(), nil
	case string:
		ww := wire.NewWriter(&w)
		ww.WriteString(x)
		return "s", w.Bytes(), nil
	case []byte:
		ww := wire.NewWriter(&w)
		ww.WriteCount(len(x))
		ww.WriteRaw(x)
		return "lc", w.Bytes(), nil
	case Dyn:
		body, err := e.dynFrame(x.Type, x.Data)
		return "a", body, err
	case *Dyn:
		if x == nil {
			return "", nil, nil
		}
		body, err := e.dynFrame(x.Type, x.Data)
		return "a", body, err
	case ErrorRecord:
		body, err := e.errorFrame(x)
		return "e", body, err
	case Fallible:
		return e.fallible(x)
	case Tuple:
		return e.members([]any(x))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		return e.optional(rv)
	case reflect.Slice, reflect.Array:
		return e.list(rv)
	case reflect.Map:
		return e.mapping(rv)
	case reflect.Struct:
		return e.record(v, rv)
	default:
		return "", nil, errs.Newf(errs.NotSerializable,
			"Go value of type "+rv.Type().String()+" is not serializable")
	}
}

// dynFrame encodes an already-typed raw value as a dynamic value: one count
// covering the typestring and the payload, then both verbatim. The
// typestring is self-delimiting, so no separator is needed.
func (e *encoder) dynFrame(ts string, data []byte) ([]byte, *errs.Error) {
	if err := typestr.Check(ts); err != nil {
		return nil, err
	}
	if err := wire.Validate(ts, data); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	w.WriteCount(len(ts) + len(data))
	w.WriteRaw([]byte(ts))
	w.WriteRaw(data)
	return buf.Bytes(), nil
}

func (e *encoder) errorFrame(rec ErrorRecord) ([]byte, *errs.Error) {
	payload, err := e.dynFrame(rec.Payload.Type, rec.Payload.Data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	w.WriteString(rec.Category)
	w.WriteString(rec.Message)
	w.WriteRaw(payload)
	return buf.Bytes(), nil
}

func (e *encoder) fallible(f Fallible) (string, []byte, *errs.Error) {
	if !f.valid {
		return "", nil, errs.Newf(errs.NotSerializable,
			"fallible value was not constructed with OK, Failed or FailedAs")
	}
	if f.inner != "" {
		if err := typestr.Check(f.inner); err != nil {
			return "", nil, err
		}
	}
	if f.ok {
		inner, body, err := e.value(f.val)
		if err != nil {
			return "", nil, err
		}
		ts := "X"
		if !typestr.IsVoid(inner) {
			ts = "x" + inner
		}
		return ts, append([]byte{1}, body...), nil
	}
	body, err := e.errorFrame(*f.rec)
	if err != nil {
		return "", nil, err
	}
	ts := "X"
	if f.inner != "" {
		ts = "x" + f.inner
	}
	return ts, append([]byte{0}, body...), nil
}

func (e *encoder) optional(rv reflect.Value) (string, []byte, *errs.Error) {
	if rv.IsNil() {
		inner, err := typeFromReflect(rv.Type().Elem())
		if err != nil {
			return "", nil, err
		}
		if typestr.IsVoid(inner) {
			return "", nil, errs.Newf(errs.NotSerializable,
				"optional of a zero-size type is not expressible")
		}
		return "o" + inner, []byte{0}, nil
	}
	inner, body, err := e.value(rv.Elem().Interface())
	if err != nil {
		return "", nil, err
	}
	if typestr.IsVoid(inner) {
		return "", nil, errs.Newf(errs.NotSerializable,
			"optional of a zero-size type is not expressible")
	}
	return "o" + inner, append([]byte{1}, body...), nil
}

func (e *encoder) list(rv reflect.Value) (string, []byte, *errs.Error) {
	dynElems := rv.Type().Elem().Kind() == reflect.Interface
	elemTS := ""
	bodies := make([][]byte, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		ts, body, err := e.elem(rv.Index(i).Interface(), dynElems)
		if err != nil {
			return "", nil, err
		}
		if i == 0 {
			elemTS = ts
		} else if ts != elemTS {
			return "", nil, errs.Newf(errs.NotSerializable,
				"list elements serialize to differing types "+elemTS+" and "+ts)
		}
		bodies = append(bodies, body)
	}
	if rv.Len() == 0 {
		var err *errs.Error
		if dynElems {
			elemTS = "a"
		} else if elemTS, err = typeFromReflect(rv.Type().Elem()); err != nil {
			return "", nil, err
		}
	}
	if typestr.IsVoid(elemTS) {
		return "", nil, errs.Newf(errs.NotSerializable,
			"list of a zero-size type is not expressible")
	}
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	w.WriteCount(rv.Len())
	for _, b := range bodies {
		w.WriteRaw(b)
	}
	return "l" + elemTS, buf.Bytes(), nil
}

// elem encodes one container element. Elements of interface-typed containers
// are wrapped as dynamic values so a heterogeneous container stays
// serializable.
func (e *encoder) elem(v any, dyn bool) (string, []byte, *errs.Error) {
	if !dyn {
		return e.value(v)
	}
	ts, body, err := e.value(v)
	if err != nil {
		return "", nil, err
	}
	frame, err := e.dynFrame(ts, body)
	if err != nil {
		return "", nil, err
	}
	return "a", frame, nil
}

func (e *encoder) mapping(rv reflect.Value) (string, []byte, *errs.Error) {
	dynKeys := rv.Type().Key().Kind() == reflect.Interface
	dynVals := rv.Type().Elem().Kind() == reflect.Interface
	keyTS, valTS := "", ""
	type pair struct{ k, v []byte }
	pairs := make([]pair, 0, rv.Len())
	iter := rv.MapRange()
	first := true
	for iter.Next() {
		kts, kb, err := e.elem(iter.Key().Interface(), dynKeys)
		if err != nil {
			return "", nil, err
		}
		vts, vb, err := e.elem(iter.Value().Interface(), dynVals)
		if err != nil {
			return "", nil, err
		}
		if first {
			keyTS, valTS = kts, vts
			first = false
		} else if kts != keyTS || vts != valTS {
			return "", nil, errs.Newf(errs.NotSerializable,
				"map entries serialize to differing types")
		}
		pairs = append(pairs, pair{kb, vb})
	}
	if first {
		var err *errs.Error
		if keyTS, err = typeFor(rv.Type().Key(), dynKeys); err != nil {
			return "", nil, err
		}
		if valTS, err = typeFor(rv.Type().Elem(), dynVals); err != nil {
			return "", nil, err
		}
	}
	if typestr.IsVoid(keyTS) || typestr.IsVoid(valTS) {
		return "", nil, errs.Newf(errs.NotSerializable,
			"map over a zero-size type is not expressible")
	}
	// Go map iteration order is random; sort by encoded key so the same map
	// always encodes to the same bytes.
	sort.Slice(pairs, func(i, j int) bool {
		return bytes.Compare(pairs[i].k, pairs[j].k) < 0
	})
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	w.WriteCount(len(pairs))
	for _, p := range pairs {
		w.WriteRaw(p.k)
		w.WriteRaw(p.v)
	}
	return "m" + keyTS + valTS, buf.Bytes(), nil
}

func typeFor(t reflect.Type, dyn bool) (string, *errs.Error) {
	if dyn {
		return "a", nil
	}
	return typeFromReflect(t)
}

func (e *encoder) record(v any, rv reflect.Value) (string, []byte, *errs.Error) {
	av := addressable(v)
	if !e.typeOnly {
		if bw, ok := av.(BeforeWriter); ok {
			bw.BeforeWrite()
		}
	}
	ts, body, err := e.recordMembers(av, rv)
	if !e.typeOnly {
		if aw, ok := av.(AfterWriter); ok {
			aw.AfterWrite(err == nil)
		}
	}
	return ts, body, err
}

func (e *encoder) recordMembers(av any, rv reflect.Value) (string, []byte, *errs.Error) {
	if fields, ok := e.readFields(av); ok {
		return e.members(fields)
	}
	sfs := serialStructFields(rv.Type())
	fields := make([]any, len(sfs))
	for i, f := range sfs {
		fields[i] = rv.FieldByIndex(f.Index).Interface()
	}
	return e.members(fields)
}

// readFields resolves the write-side member set of an accessor-bearing
// record: tagged accessors are offered the caller's context tags first.
func (e *encoder) readFields(av any) ([]any, bool) {
	if ta, ok := av.(TaggedAccessor); ok {
		for _, tag := range e.tags {
			if fields, ok := ta.SerialFieldsTagged(tag); ok {
				return fields, true
			}
		}
	}
	if a, ok := av.(Accessor); ok {
		return a.SerialFields(), true
	}
	return nil, false
}

// members encodes an ordered member list with the void collapse applied:
// void members contribute nothing to either the typestring or the bytes, a
// single survivor stands alone, none at all yield void.
func (e *encoder) members(fields []any) (string, []byte, *errs.Error) {
	tss := make([]string, 0, len(fields))
	var body bytes.Buffer
	for _, f := range fields {
		ts, b, err := e.value(f)
		if err != nil {
			return "", nil, err
		}
		tss = append(tss, ts)
		body.Write(b)
	}
	return typestr.Tuple(tss), body.Bytes(), nil
}

func be32(v int32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func be64(v int64) []byte {
	return []byte{
		byte(v >> 56), byte(v >> 48), byte(v >> 40), byte(v >> 32),
		byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
	}
}
