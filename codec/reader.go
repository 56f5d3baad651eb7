package codec

import (
	"io"
	"math"
	"unicode/utf8"
)

// Reader decodes primitives from a binary stream, in the layout documented
// by the codec package. A short read anywhere is reported as ErrEof and
// leaves the Reader in an unspecified position; callers that need to retry
// must wrap a seekable source themselves.
type Reader struct {
	r   io.Reader
	buf [8]byte
}

// NewReader wraps r for decoding.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (r *Reader) fill(n int) ([]byte, error) {
	b := r.buf[:n]
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, ErrEof
	}
	return b, nil
}

// Uint8 decodes a single unsigned byte.
func (r *Reader) Uint8() (uint8, error) {
	b, err := r.fill(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Int8 decodes a single signed byte.
func (r *Reader) Int8() (int8, error) {
	v, err := r.Uint8()
	return int8(v), err
}

// Uint16 decodes a big-endian u16.
func (r *Reader) Uint16() (uint16, error) {
	b, err := r.fill(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

// Int16 decodes a big-endian i16.
func (r *Reader) Int16() (int16, error) {
	v, err := r.Uint16()
	return int16(v), err
}

// Uint32 decodes a big-endian u32.
func (r *Reader) Uint32() (uint32, error) {
	b, err := r.fill(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// Int32 decodes a big-endian i32.
func (r *Reader) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

// Uint64 decodes a big-endian u64.
func (r *Reader) Uint64() (uint64, error) {
	b, err := r.fill(8)
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}

// Int64 decodes a big-endian i64.
func (r *Reader) Int64() (int64, error) {
	v, err := r.Uint64()
	return int64(v), err
}

// Usize decodes a usize, serialised as u64.
func (r *Reader) Usize() (uint64, error) {
	return r.Uint64()
}

// Float32 decodes an IEEE-754 single precision float.
func (r *Reader) Float32() (float32, error) {
	v, err := r.Uint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// Float64 decodes an IEEE-754 double precision float.
func (r *Reader) Float64() (float64, error) {
	v, err := r.Uint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// Bool decodes one byte: 0 is false, any other value is true.
func (r *Reader) Bool() (bool, error) {
	v, err := r.Uint8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// Char decodes a u32 and validates it is a Unicode scalar value.
func (r *Reader) Char() (rune, error) {
	v, err := r.Uint32()
	if err != nil {
		return 0, err
	}
	if v > utf8.MaxRune || (v >= 0xD800 && v <= 0xDFFF) {
		return 0, &InvalidCharError{N: v}
	}
	return rune(v), nil
}

// FixedBytes reads exactly n bytes with no length prefix (the Go analogue
// of a fixed-size [T; N] array).
func (r *Reader) FixedBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, ErrEof
	}
	return b, nil
}

// Bytes reads a u64 length prefix followed by that many bytes.
func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	return r.FixedBytes(int(n))
}

// String reads a u64 length prefix followed by that many UTF-8 bytes.
func (r *Reader) String() (string, error) {
	b, err := r.Bytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidString
	}
	return string(b), nil
}

// VariantIndex reads a u32 enum tag and validates it against numVariants.
func (r *Reader) VariantIndex(numVariants uint32) (uint32, error) {
	v, err := r.Uint32()
	if err != nil {
		return 0, err
	}
	if v >= numVariants {
		return 0, &InvalidVariantIndexError{Index: v}
	}
	return v, nil
}

// ReadOption decodes a one-byte discriminator followed by the payload (via
// f) when the discriminator is non-zero.
func ReadOption[T any](r *Reader, f func(*Reader) (T, error)) (*T, error) {
	has, err := r.Bool()
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	v, err := f(r)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ReadVec decodes a u64 length followed by that many items, each decoded by
// f.
func ReadVec[T any](r *Reader, f func(*Reader) (T, error)) ([]T, error) {
	n, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, n)
	for i := uint64(0); i < n; i++ {
		v, err := f(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
