package codec

import "io"

// BoundedWriter is an io.Writer over a fixed-capacity byte slice. Writes
// that would overflow the slice fail with io.ErrShortWrite, which Writer
// translates to ErrNoSpace.
type BoundedWriter struct {
	buf []byte
	off int
}

// NewBoundedWriter wraps buf; writes are appended starting at offset 0.
func NewBoundedWriter(buf []byte) *BoundedWriter {
	return &BoundedWriter{buf: buf}
}

func (b *BoundedWriter) Write(p []byte) (int, error) {
	if len(p) > len(b.buf)-b.off {
		return 0, io.ErrShortWrite
	}
	n := copy(b.buf[b.off:], p)
	b.off += n
	return n, nil
}

// Len returns the number of bytes written so far.
func (b *BoundedWriter) Len() int { return b.off }

// Bytes returns the written prefix of the underlying buffer.
func (b *BoundedWriter) Bytes() []byte { return b.buf[:b.off] }
