package bind

// Accessor exposes a record's serializable members in declaration order.
// Types implementing it bypass reflection-based field discovery on the
// write side. Returned entries are the field values themselves; a member
// that should serialize as a dynamic value must be returned as a Dyn.
type Accessor interface {
	SerialFields() []any
}

// MutableAccessor exposes pointers to a record's serializable members so a
// decode can write into them. The entries must alias the same members, in
// the same order, as SerialFields; Register verifies this.
type MutableAccessor interface {
	SerialFieldsMut() []any
}

// TaggedAccessor is consulted before Accessor when the caller supplied
// context tags. The first tag the type recognizes selects the member set;
// returning ok=false falls through to the next tag and finally to
// SerialFields.
type TaggedAccessor interface {
	SerialFieldsTagged(tag string) (fields []any, ok bool)
}

// TaggedMutableAccessor is the write-side counterpart of TaggedAccessor.
type TaggedMutableAccessor interface {
	SerialFieldsMutTagged(tag string) (fields []any, ok bool)
}

// BeforeWriter runs before a record's members are read for encoding.
type BeforeWriter interface {
	BeforeWrite()
}

// AfterWriter runs after encoding of the record finished, successfully or
// not.
type AfterWriter interface {
	AfterWrite(success bool)
}

// AfterReader runs after a record's members were decoded and may reject the
// decoded state. A non-nil error fails the decode with a value-mismatch.
type AfterReader interface {
	AfterRead() error
}

// AfterReadSimple is the infallible variant of AfterReader. Defining both
// on one type is a contract violation and is reported as not-serializable.
type AfterReadSimple interface {
	AfterReadSimple()
}

// AfterReadErrorer is notified when decoding a record failed partway, so
// partially filled state can be cleaned up.
type AfterReadErrorer interface {
	AfterReadError(err error)
}
