package convert

import (
	"github.com/typebin/typebin-go/internal/errs"
	"github.com/typebin/typebin-go/internal/typestr"
)

// CannotConvert reports why a conversion from srcTS to dstTS under pol must
// fail, or nil when it may succeed. With src bytes the answer is exact and
// mirrors Convert. Without them the answer is conservative wherever runtime
// content decides: a dynamic value is assumed to hold something convertible,
// an optional may be absent, and a list may have any length. A nil result
// therefore means "possible", and Convert with the same arguments will not
// fail for a structural reason the predicate could have seen.
func CannotConvert(srcTS, dstTS string, pol Policy, src []byte) *errs.Error {
	if err := typestr.Check(srcTS); err != nil {
		return err
	}
	if err := typestr.Check(dstTS); err != nil {
		return err
	}
	if src != nil {
		_, err := Convert(srcTS, src, dstTS, pol, nil)
		return err
	}
	t := tctx{sTS: srcTS, dTS: dstTS, pol: pol}
	return t.cannot(0, 0)
}

// tctx is the type-only mirror of the byte-level engine. The two must agree:
// every rule here restates one in conv.value without touching value bytes.
type tctx struct {
	sTS, dTS string
	pol      Policy
}

func (t tctx) refuse(msg string, spos, dpos int, flag string) *errs.Error {
	return errs.Mismatch(msg, t.sTS, spos, t.dTS, dpos, flag)
}

// voidAt checks whether the source node at spos could decay to void.
func (t tctx) voidAt(spos int) *errs.Error {
	void := tctx{sTS: t.sTS, dTS: "", pol: t.pol}
	return void.cannot(spos, 0)
}

func (t tctx) cannot(spos, dpos int) *errs.Error {
	sEnd := typestr.End(t.sTS, spos)
	sNode := t.sTS[spos:sEnd]
	dEnd := typestr.End(t.dTS, dpos)
	dNode := t.dTS[dpos:dEnd]

	if sNode == dNode {
		return nil
	}
	if dNode != "" && dNode[0] == typestr.TagDyn {
		if t.pol.Has(Dynamic) {
			return nil
		}
		return t.refuse("Cannot wrap into a dynamic value", spos, dpos, FlagName(Dynamic))
	}
	if sNode != "" && sNode[0] == typestr.TagDyn {
		// Content unknown: assume it may hold something convertible.
		if t.pol.Has(Dynamic) {
			return nil
		}
		return t.refuse("Cannot unwrap a dynamic value", spos, dpos, FlagName(Dynamic))
	}
	if sNode == "" {
		return t.voidCannot(spos, dpos, dNode)
	}
	sTag := sNode[0]
	var dTag byte
	if dNode != "" {
		dTag = dNode[0]
	}

	if (sTag == typestr.TagFallible || sTag == typestr.TagFallibleVoid) &&
		dTag != typestr.TagFallible && dTag != typestr.TagFallibleVoid && dTag != typestr.TagError {
		if !t.pol.Has(Fallible) {
			return t.refuse("Cannot unwrap a fallible value", spos, dpos, FlagName(Fallible))
		}
		if sTag == typestr.TagFallibleVoid {
			return t.voidCannot(spos, dpos, dNode)
		}
		return t.cannot(spos+1, dpos)
	}
	if sTag == typestr.TagTuple && dTag != typestr.TagTuple && dTag != typestr.TagList {
		var dms []int
		if dNode != "" {
			dms = []int{dpos}
		}
		return t.matchMembers(spos, dpos, dms)
	}

	switch dTag {
	case 0: // void target
		if sTag == typestr.TagOption {
			// May be absent at runtime.
			if t.pol.Has(Aux) {
				return nil
			}
			return t.refuse("Cannot convert optional to void", spos, dpos, FlagName(Aux))
		}
		return t.refuse("Cannot convert between these types", spos, dpos, "")
	case typestr.TagBool, typestr.TagByte, typestr.TagInt32, typestr.TagInt64, typestr.TagDouble:
		if !isNumericTag(sTag) {
			return t.refuse("Cannot convert between these types", spos, dpos, "")
		}
		ok, missing := numericRule(sTag, dTag, t.pol)
		if ok {
			return nil
		}
		return t.refuse("Cannot convert between these numeric types", spos, dpos, missing)
	case typestr.TagString:
		if sNode == "lc" {
			if t.pol.Has(Aux) {
				return nil
			}
			return t.refuse("Cannot convert byte list to string", spos, dpos, FlagName(Aux))
		}
		return t.refuse("Cannot convert between these types", spos, dpos, "")
	case typestr.TagList:
		switch sTag {
		case typestr.TagString:
			if dNode != "lc" {
				return t.refuse("Cannot convert between these types", spos, dpos, "")
			}
			if t.pol.Has(Aux) {
				return nil
			}
			return t.refuse("Cannot convert string to byte list", spos, dpos, FlagName(Aux))
		case typestr.TagList:
			return t.cannot(spos+1, dpos+1)
		case typestr.TagTuple:
			if !t.pol.Has(TupleList) {
				return t.refuse("Cannot convert tuple to list", spos, dpos, FlagName(TupleList))
			}
			// Each member must either convert to the element type or decay.
			for _, m := range t.members(spos) {
				if err := t.cannot(m, dpos+1); err != nil {
					if derr := t.voidAt(m); derr != nil {
						return err
					}
				}
			}
			return nil
		}
		return t.refuse("Cannot convert between these types", spos, dpos, "")
	case typestr.TagMap:
		if sTag != typestr.TagMap {
			return t.refuse("Cannot convert between these types", spos, dpos, "")
		}
		sk := spos + 1
		dk := dpos + 1
		if err := t.cannot(sk, dk); err != nil {
			return err
		}
		return t.cannot(typestr.End(t.sTS, sk), typestr.End(t.dTS, dk))
	case typestr.TagOption:
		if sTag != typestr.TagOption {
			return t.refuse("Cannot convert between these types", spos, dpos, "")
		}
		return t.cannot(spos+1, dpos+1)
	case typestr.TagFallible:
		switch sTag {
		case typestr.TagFallible:
			return t.cannot(spos+1, dpos+1)
		case typestr.TagFallibleVoid:
			void := tctx{sTS: "", dTS: t.dTS, pol: t.pol}
			err := void.cannot(0, dpos+1)
			if err != nil {
				err.Src = t.sTS
				err.SrcOff = spos
			}
			return err
		case typestr.TagError:
			if t.pol.Has(Fallible) {
				return nil
			}
			return t.refuse("Cannot wrap error record into fallible", spos, dpos, FlagName(Fallible))
		default:
			if !t.pol.Has(Fallible) {
				return t.refuse("Cannot wrap into a fallible value", spos, dpos, FlagName(Fallible))
			}
			return t.cannot(spos, dpos+1)
		}
	case typestr.TagFallibleVoid:
		switch sTag {
		case typestr.TagFallible:
			if err := t.voidAt(spos + 1); err != nil {
				return err
			}
			return nil
		case typestr.TagError:
			if t.pol.Has(Fallible) {
				return nil
			}
			return t.refuse("Cannot wrap error record into fallible", spos, dpos, FlagName(Fallible))
		default:
			if !t.pol.Has(Fallible) {
				return t.refuse("Cannot wrap into a fallible value", spos, dpos, FlagName(Fallible))
			}
			return t.voidAt(spos)
		}
	case typestr.TagTuple:
		dms := t.dstMembers(dpos)
		switch sTag {
		case typestr.TagTuple:
			return t.matchMembers(spos, dpos, dms)
		case typestr.TagList:
			if !t.pol.Has(TupleList) {
				return t.refuse("Cannot convert list to tuple", spos, dpos, FlagName(TupleList))
			}
			// Length is unknown without bytes; check element shape only.
			for _, dm := range dms {
				if err := t.cannot(spos+1, dm); err != nil {
					return err
				}
			}
			return nil
		}
		return t.refuse("Cannot convert between these types", spos, dpos, "")
	case typestr.TagError:
		switch sTag {
		case typestr.TagFallible, typestr.TagFallibleVoid:
			// May hold an error at runtime.
			if t.pol.Has(Fallible) {
				return nil
			}
			return t.refuse("Cannot unwrap a fallible value", spos, dpos, FlagName(Fallible))
		}
		return t.refuse("Cannot convert between these types", spos, dpos, "")
	}
	return t.refuse("Cannot convert between these types", spos, dpos, "")
}

func (t tctx) voidCannot(spos, dpos int, dNode string) *errs.Error {
	switch {
	case dNode == "":
		return nil
	case dNode[0] == typestr.TagOption:
		if t.pol.Has(Aux) {
			return nil
		}
		return t.refuse("Cannot convert void to optional", spos, dpos, FlagName(Aux))
	case dNode[0] == typestr.TagFallibleVoid:
		if t.pol.Has(Fallible) {
			return nil
		}
		return t.refuse("Cannot convert void to fallible", spos, dpos, FlagName(Fallible))
	}
	return t.refuse("Cannot convert void to this type", spos, dpos, "")
}

func (t tctx) members(spos int) []int {
	node := t.sTS[spos:typestr.End(t.sTS, spos)]
	arity, body := typestr.TupleArity(node)
	out := make([]int, arity)
	p := spos + body
	for i := range out {
		out[i] = p
		p = typestr.End(t.sTS, p)
	}
	return out
}

func (t tctx) dstMembers(dpos int) []int {
	node := t.dTS[dpos:typestr.End(t.dTS, dpos)]
	arity, body := typestr.TupleArity(node)
	out := make([]int, arity)
	p := dpos + body
	for i := range out {
		out[i] = p
		p = typestr.End(t.dTS, p)
	}
	return out
}

// matchMembers is the type-only twin of the byte-level backtracking search.
func (t tctx) matchMembers(spos, dpos int, dms []int) *errs.Error {
	sms := t.members(spos)
	var first *errs.Error
	note := func(e *errs.Error) {
		if first == nil {
			first = e
		}
	}
	var match func(i, j int) bool
	match = func(i, j int) bool {
		if i == len(sms) {
			if j == len(dms) {
				return true
			}
			note(errs.Mismatch("Not enough tuple members for target", t.sTS, spos, t.dTS, dms[j], ""))
			return false
		}
		if j < len(dms) {
			if err := t.cannot(sms[i], dms[j]); err == nil {
				if match(i+1, j+1) {
					return true
				}
			} else {
				note(err)
			}
		}
		if err := t.voidAt(sms[i]); err == nil {
			if match(i+1, j) {
				return true
			}
		} else if j >= len(dms) {
			note(err)
		}
		return false
	}
	if match(0, 0) {
		return nil
	}
	if first == nil {
		first = t.refuse("Cannot convert between these types", spos, dpos, "")
	}
	return first
}
