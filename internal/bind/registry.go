package bind

import (
	"reflect"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/typebin/typebin-go/internal/errs"
	"github.com/typebin/typebin-go/internal/typestr"
)

// TypeInfo records what Register learned about a Go type.
type TypeInfo struct {
	GoType reflect.Type
	Type   string // typestring the type serializes as
}

var registry = xsync.NewMapOf[reflect.Type, *TypeInfo]()

// Register derives and caches the typestring for a record type, verifying
// the serialization contract up front instead of at first use: the write
// and read accessors must expose the same member shape, and the after-read
// hooks must not both be defined.
//
// v may be a value or a pointer to one; pass a populated value when members
// are interface-typed, since their typestrings are value driven.
func Register(v any) (*TypeInfo, *errs.Error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, errs.Newf(errs.NotSerializable, "cannot register a nil pointer")
		}
		rv = rv.Elem()
		v = rv.Interface()
	}
	if rv.Kind() != reflect.Struct {
		return nil, errs.Newf(errs.NotSerializable, "only record types can be registered")
	}
	t := rv.Type()
	if info, ok := registry.Load(t); ok {
		return info, nil
	}

	writeTS, _, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	readTS, err := readSideType(t)
	if err != nil {
		return nil, err
	}
	if writeTS != readTS {
		return nil, errs.NewPair(errs.NotSerializable,
			"write and read accessors of "+t.String()+" disagree on shape",
			writeTS, 0, readTS, 0)
	}

	pv := reflect.New(t).Interface()
	if _, ar := pv.(AfterReader); ar {
		if _, ars := pv.(AfterReadSimple); ars {
			return nil, errs.Newf(errs.NotSerializable,
				"type "+t.String()+" defines both AfterRead and AfterReadSimple")
		}
	}

	info := &TypeInfo{GoType: t, Type: writeTS}
	registry.Store(t, info)
	return info, nil
}

// Registered returns the cached info for a type, if it was registered.
func Registered(t reflect.Type) (*TypeInfo, bool) {
	return registry.Load(t)
}

// readSideType derives the typestring the decode path will expect for t:
// through the mutable accessor when one exists, otherwise from the struct
// fields.
func readSideType(t reflect.Type) (string, *errs.Error) {
	pv := reflect.New(t).Interface()
	ma, ok := pv.(MutableAccessor)
	if !ok {
		return typeFromReflect(t)
	}
	members := []string{}
	for _, f := range ma.SerialFieldsMut() {
		fv := reflect.ValueOf(f)
		if fv.Kind() != reflect.Ptr || fv.IsNil() {
			return "", errs.Newf(errs.NotSerializable,
				"mutable accessor of "+t.String()+" returned a non-pointer member")
		}
		m, err := typeFromReflect(fv.Type().Elem())
		if err != nil {
			return "", err
		}
		members = append(members, m)
	}
	return typestr.Tuple(members), nil
}
