package codec

import (
	"io"
	"math"
)

// Writer encodes primitives to a binary stream, in the layout documented by
// the codec package.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w for encoding.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) write(b []byte) error {
	n, err := w.w.Write(b)
	if err != nil {
		if err == io.ErrShortWrite {
			return ErrNoSpace
		}
		return err
	}
	if n != len(b) {
		return ErrNoSpace
	}
	return nil
}

// Uint8 encodes a single unsigned byte.
func (w *Writer) Uint8(v uint8) error { return w.write([]byte{v}) }

// Int8 encodes a single signed byte.
func (w *Writer) Int8(v int8) error { return w.Uint8(uint8(v)) }

// Uint16 encodes a big-endian u16.
func (w *Writer) Uint16(v uint16) error {
	return w.write([]byte{byte(v >> 8), byte(v)})
}

// Int16 encodes a big-endian i16.
func (w *Writer) Int16(v int16) error { return w.Uint16(uint16(v)) }

// Uint32 encodes a big-endian u32.
func (w *Writer) Uint32(v uint32) error {
	return w.write([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

// Int32 encodes a big-endian i32.
func (w *Writer) Int32(v int32) error { return w.Uint32(uint32(v)) }

// Uint64 encodes a big-endian u64.
func (w *Writer) Uint64(v uint64) error {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return w.write(b)
}

// Int64 encodes a big-endian i64.
func (w *Writer) Int64(v int64) error { return w.Uint64(uint64(v)) }

// Usize encodes a usize, serialised as u64.
func (w *Writer) Usize(v uint64) error { return w.Uint64(v) }

// Float32 encodes an IEEE-754 single precision float.
func (w *Writer) Float32(v float32) error { return w.Uint32(math.Float32bits(v)) }

// Float64 encodes an IEEE-754 double precision float.
func (w *Writer) Float64(v float64) error { return w.Uint64(math.Float64bits(v)) }

// Bool encodes a boolean as a single byte (0 or 1).
func (w *Writer) Bool(v bool) error {
	if v {
		return w.Uint8(1)
	}
	return w.Uint8(0)
}

// Char encodes a rune as u32.
func (w *Writer) Char(v rune) error { return w.Uint32(uint32(v)) }

// FixedBytes writes b verbatim, with no length prefix.
func (w *Writer) FixedBytes(b []byte) error { return w.write(b) }

// Bytes writes a u64 length prefix followed by b.
func (w *Writer) Bytes(b []byte) error {
	if err := w.Uint64(uint64(len(b))); err != nil {
		return err
	}
	return w.write(b)
}

// String writes a u64 length prefix followed by the UTF-8 bytes of s.
func (w *Writer) String(s string) error { return w.Bytes([]byte(s)) }

// VariantIndex writes a u32 enum tag. numVariants must be greater than
// zero: a zero-variant enum cannot be constructed, so encoding one is a bug
// in the caller, not a recoverable error.
func (w *Writer) VariantIndex(index, numVariants uint32) error {
	if numVariants == 0 {
		panic("codec: cannot encode a zero-variant enum")
	}
	return w.Uint32(index)
}

// WriteOption writes a one-byte discriminator, followed by the payload (via
// f) when v is non-nil.
func WriteOption[T any](w *Writer, v *T, f func(*Writer, T) error) error {
	if v == nil {
		return w.Bool(false)
	}
	if err := w.Bool(true); err != nil {
		return err
	}
	return f(w, *v)
}

// WriteVec writes a u64 length followed by each item, encoded by f.
func WriteVec[T any](w *Writer, items []T, f func(*Writer, T) error) error {
	if err := w.Uint64(uint64(len(items))); err != nil {
		return err
	}
	for _, it := range items {
		if err := f(w, it); err != nil {
			return err
		}
	}
	return nil
}
