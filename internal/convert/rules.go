package convert

import "github.com/typebin/typebin-go/internal/typestr"

// numericRule decides whether a primitive source tag may convert to a
// primitive target tag under pol. When the combination is expressible but
// the policy lacks the capability, missing names the flag that would have
// allowed it; when the combination is never allowed both results are
// negative with an empty missing.
func numericRule(sTag, dTag byte, pol Policy) (ok bool, missing string) {
	var needs Policy
	switch dTag {
	case typestr.TagBool:
		switch sTag {
		case typestr.TagByte, typestr.TagInt32, typestr.TagInt64:
			needs = Bool
		default:
			return false, ""
		}
	case typestr.TagByte:
		switch sTag {
		case typestr.TagBool:
			needs = Bool
		case typestr.TagInt32, typestr.TagInt64:
			needs = IntsNarrowing
		default:
			return false, ""
		}
	case typestr.TagInt32:
		switch sTag {
		case typestr.TagBool:
			needs = Bool
		case typestr.TagByte:
			needs = Ints
		case typestr.TagInt64:
			needs = IntsNarrowing
		case typestr.TagDouble:
			needs = Double
		default:
			return false, ""
		}
	case typestr.TagInt64:
		switch sTag {
		case typestr.TagBool:
			needs = Bool
		case typestr.TagByte, typestr.TagInt32:
			needs = Ints
		case typestr.TagDouble:
			needs = Double
		default:
			return false, ""
		}
	case typestr.TagDouble:
		switch sTag {
		case typestr.TagInt32, typestr.TagInt64:
			needs = Double
		default:
			return false, ""
		}
	default:
		return false, ""
	}
	if pol.Has(needs) {
		return true, ""
	}
	return false, FlagName(needs)
}

func isNumericTag(tag byte) bool {
	switch tag {
	case typestr.TagBool, typestr.TagByte, typestr.TagInt32, typestr.TagInt64, typestr.TagDouble:
		return true
	}
	return false
}
