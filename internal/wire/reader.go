package wire

import (
	"encoding/binary"
	"math"
)

// Reader decodes primitive shapes from a byte slice. It never reads past the
// end of the slice: any attempt latches ErrTruncated and every later call
// becomes a no-op returning zero values.
type Reader struct {
	data []byte
	pos  int
	err  error
}

// NewReader creates a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Error returns the first error that occurred during reading, if any.
func (r *Reader) Error() error {
	return r.err
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

func (r *Reader) recordError(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}

// take returns the next n bytes without copying, or nil after latching
// ErrTruncated when fewer remain.
func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.recordError(ErrTruncated)
		return nil
	}
	p := r.data[r.pos : r.pos+n]
	r.pos += n
	return p
}

// ReadBool reads a 1-byte boolean. Any nonzero byte reads as true.
func (r *Reader) ReadBool() bool {
	p := r.take(1)
	if p == nil {
		return false
	}
	return p[0] != 0
}

// ReadUint8 reads a single raw byte.
func (r *Reader) ReadUint8() byte {
	p := r.take(1)
	if p == nil {
		return 0
	}
	return p[0]
}

// ReadInt32 reads a big-endian 32-bit integer.
func (r *Reader) ReadInt32() int32 {
	p := r.take(4)
	if p == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(p))
}

// ReadInt64 reads a big-endian 64-bit integer.
func (r *Reader) ReadInt64() int64 {
	p := r.take(8)
	if p == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(p))
}

// ReadFloat64 reads a big-endian IEEE-754 double.
func (r *Reader) ReadFloat64() float64 {
	p := r.take(8)
	if p == nil {
		return 0
	}
	return math.Float64frombits(binary.BigEndian.Uint64(p))
}

// ReadCount reads a 4-byte big-endian count and checks it against the bytes
// still available, so a hostile count cannot drive an oversized allocation.
func (r *Reader) ReadCount() int {
	p := r.take(4)
	if p == nil {
		return 0
	}
	n := binary.BigEndian.Uint32(p)
	if int64(n) > int64(r.Remaining()) {
		r.recordError(ErrTruncated)
		return 0
	}
	return int(n)
}

// ReadFlag reads a 1-byte presence flag, rejecting values other than 0 and 1.
func (r *Reader) ReadFlag() bool {
	p := r.take(1)
	if p == nil {
		return false
	}
	if p[0] > 1 {
		r.recordError(ErrBadFlag)
		return false
	}
	return p[0] == 1
}

// ReadString reads a count prefix followed by that many bytes.
func (r *Reader) ReadString() string {
	n := r.ReadCount()
	p := r.take(n)
	if p == nil {
		return ""
	}
	return string(p)
}

// ReadRaw reads exactly n bytes without copying them out of the backing
// slice.
func (r *Reader) ReadRaw(n int) []byte {
	return r.take(n)
}
