package bind

import (
	"reflect"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/typebin/typebin-go/internal/errs"
	"github.com/typebin/typebin-go/internal/typestr"
)

var (
	dynType         = reflect.TypeOf(Dyn{})
	errorRecordType = reflect.TypeOf(ErrorRecord{})
	fallibleType    = reflect.TypeOf(Fallible{})
	tupleType       = reflect.TypeOf(Tuple{})
	byteSliceType   = reflect.TypeOf([]byte(nil))
)

// staticTypes caches the typestring derived for struct types, keyed by their
// reflect.Type. Derivation walks every field recursively, so repeated
// encodes of the same record type hit the cache instead.
var staticTypes = xsync.NewMapOf[reflect.Type, string]()

// TypeOf derives the typestring for a Go value. Unlike TypeFor it is value
// driven: interface-typed values report the type they currently hold, a
// Fallible reports the arm it holds, and a Tuple reports its members.
func TypeOf(v any) (string, *errs.Error) {
	e := &encoder{typeOnly: true}
	ts, _, err := e.value(v)
	return ts, err
}

// TypeFor derives the typestring for a Go type, with no value in hand.
// Interface fields become dynamic values, a Fallible becomes fallible void
// and a Tuple cannot be sized, so a value-driven derivation of the same data
// may be more precise.
func TypeFor(t reflect.Type) (string, *errs.Error) {
	return typeFromReflect(t)
}

func typeFromReflect(t reflect.Type) (string, *errs.Error) {
	switch t {
	case dynType:
		return "a", nil
	case errorRecordType:
		return "e", nil
	case fallibleType:
		return "X", nil
	case byteSliceType:
		return "lc", nil
	}
	switch t.Kind() {
	case reflect.Bool:
		return "b", nil
	case reflect.Int8, reflect.Uint8:
		return "c", nil
	case reflect.Int16, reflect.Uint16, reflect.Int32:
		return "i", nil
	case reflect.Int64, reflect.Int, reflect.Uint32, reflect.Uint64, reflect.Uint:
		return "I", nil
	case reflect.Float32, reflect.Float64:
		return "d", nil
	case reflect.String:
		return "s", nil
	case reflect.Interface:
		return "a", nil
	case reflect.Slice, reflect.Array:
		elem, err := typeFromReflect(t.Elem())
		if err != nil {
			return "", err
		}
		if typestr.IsVoid(elem) {
			return "", errs.Newf(errs.NotSerializable, "list of a zero-size type is not expressible")
		}
		return "l" + elem, nil
	case reflect.Map:
		key, err := typeFromReflect(t.Key())
		if err != nil {
			return "", err
		}
		val, err := typeFromReflect(t.Elem())
		if err != nil {
			return "", err
		}
		if typestr.IsVoid(key) || typestr.IsVoid(val) {
			return "", errs.Newf(errs.NotSerializable, "map over a zero-size type is not expressible")
		}
		return "m" + key + val, nil
	case reflect.Ptr:
		elem, err := typeFromReflect(t.Elem())
		if err != nil {
			return "", err
		}
		if typestr.IsVoid(elem) {
			return "", errs.Newf(errs.NotSerializable, "optional of a zero-size type is not expressible")
		}
		return "o" + elem, nil
	case reflect.Struct:
		if ts, ok := staticTypes.Load(t); ok {
			return ts, nil
		}
		members := make([]string, 0, t.NumField())
		for _, f := range serialStructFields(t) {
			m, err := typeFromReflect(f.Type)
			if err != nil {
				return "", err
			}
			members = append(members, m)
		}
		ts := typestr.Tuple(members)
		staticTypes.Store(t, ts)
		return ts, nil
	default:
		return "", errs.Newf(errs.NotSerializable, "Go type "+t.String()+" is not serializable")
	}
}

// serialStructFields returns the exported fields of a struct type that take
// part in serialization, in declaration order. A `typebin:"-"` tag excludes
// a field.
func serialStructFields(t reflect.Type) []reflect.StructField {
	fields := make([]reflect.StructField, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}
		if f.Tag.Get("typebin") == "-" {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

// addressable returns v with pointer-receiver methods visible: when v is a
// non-pointer struct it is copied into fresh addressable storage so
// interface checks see the full method set.
func addressable(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Struct {
		return v
	}
	pv := reflect.New(rv.Type())
	pv.Elem().Set(rv)
	return pv.Interface()
}
