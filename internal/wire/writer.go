// Package wire implements the binary encoding layer: a latched-error Writer
// and Reader for the primitive shapes, plus typestring-driven scanning,
// validation and default-value synthesis over raw byte slices.
//
// Integers are big-endian. Strings, lists, maps and dynamic values carry a
// 4-byte count prefix; optionals and fallibles carry a 1-byte presence flag.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

var (
	ErrTruncated    = errors.New("wire: truncated value")
	ErrBadFlag      = errors.New("wire: presence flag is neither 0 nor 1")
	ErrCountTooLong = errors.New("wire: count exceeds uint32 range")
)

// Writer encodes primitive shapes into an io.Writer, typically a
// bytes.Buffer. The first error encountered is latched and every later call
// becomes a no-op, so call sites can chain writes and check once.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Bytes returns the written bytes if the underlying writer is a
// *bytes.Buffer, and nil otherwise or after an error.
func (w *Writer) Bytes() []byte {
	if w.err != nil {
		return nil
	}
	if bb, ok := w.w.(*bytes.Buffer); ok {
		return bb.Bytes()
	}
	return nil
}

// Error returns the first error that occurred during writing, if any.
func (w *Writer) Error() error {
	return w.err
}

func (w *Writer) recordError(err error) {
	if w.err == nil && err != nil {
		w.err = err
	}
}

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	_, err := w.w.Write(p)
	w.recordError(err)
}

// WriteBool writes a boolean as a single 0 or 1 byte.
func (w *Writer) WriteBool(val bool) {
	if val {
		w.write([]byte{1})
	} else {
		w.write([]byte{0})
	}
}

// WriteUint8 writes a single raw byte.
func (w *Writer) WriteUint8(val byte) {
	w.write([]byte{val})
}

// WriteInt32 writes a 32-bit integer big-endian.
func (w *Writer) WriteInt32(val int32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(val))
	w.write(buf[:])
}

// WriteInt64 writes a 64-bit integer big-endian.
func (w *Writer) WriteInt64(val int64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(val))
	w.write(buf[:])
}

// WriteFloat64 writes an IEEE-754 double big-endian.
func (w *Writer) WriteFloat64(val float64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(val))
	w.write(buf[:])
}

// WriteCount writes a 4-byte big-endian element or byte count.
func (w *Writer) WriteCount(n int) {
	if n < 0 || int64(n) > math.MaxUint32 {
		w.recordError(ErrCountTooLong)
		return
	}
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(n))
	w.write(buf[:])
}

// WriteFlag writes a 1-byte presence flag.
func (w *Writer) WriteFlag(present bool) {
	w.WriteBool(present)
}

// WriteString writes a count prefix followed by the string bytes.
func (w *Writer) WriteString(val string) {
	w.WriteCount(len(val))
	if len(val) > 0 {
		w.write([]byte(val))
	}
}

// WriteRaw writes p verbatim, with no prefix.
func (w *Writer) WriteRaw(p []byte) {
	if len(p) > 0 {
		w.write(p)
	}
}
