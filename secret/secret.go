// Package secret implements a zeroising byte buffer used to hold key
// material, IVs and the unwrapped master secret. No third-party package in
// the retrieved corpus provides this (it needs direct control over when
// and how memory is overwritten), so this stays on the standard library:
// runtime.KeepAlive pins the slice across the overwrite so the compiler
// cannot prove it dead and elide the zeroing, the one guarantee a generic
// byte-slice helper couldn't give us.
package secret

import "runtime"

// Vec is a growable byte buffer whose contents are overwritten with zeros
// by Wipe, and by Set before it copies in new contents. Nothing wipes a
// Vec automatically: a Vec that becomes unreachable without a Wipe call
// leaves its bytes in memory. A zero Vec is usable for reading (empty)
// but Set or Append must be used to populate it.
type Vec struct {
	buf []byte
}

// New returns a Vec holding a copy of b. The caller retains ownership of
// b; New does not wipe it.
func New(b []byte) *Vec {
	v := &Vec{buf: make([]byte, len(b))}
	copy(v.buf, b)
	return v
}

// NewZeroed returns a Vec of n zero bytes.
func NewZeroed(n int) *Vec {
	return &Vec{buf: make([]byte, n)}
}

// Bytes returns the current contents. The returned slice aliases the
// Vec's internal buffer and becomes invalid after the next call to Wipe,
// Set or Append.
func (v *Vec) Bytes() []byte {
	if v == nil {
		return nil
	}
	return v.buf
}

// Len returns the number of bytes currently held.
func (v *Vec) Len() int {
	if v == nil {
		return 0
	}
	return len(v.buf)
}

// Set replaces the contents with a copy of b, wiping whatever was there
// before.
func (v *Vec) Set(b []byte) {
	v.Wipe()
	v.buf = append(v.buf[:0], b...)
}

// Append appends b to the current contents.
func (v *Vec) Append(b []byte) {
	v.buf = append(v.buf, b...)
}

// Wipe overwrites the buffer's contents with zero bytes without releasing
// the backing array.
func (v *Vec) Wipe() {
	if v == nil {
		return
	}
	zero(v.buf)
	v.buf = v.buf[:0]
}

// zero overwrites b with zero bytes and pins b with runtime.KeepAlive so
// the compiler cannot eliminate the write as dead code once b is no
// longer read from.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
