// Package cipher implements the block-aligned encrypt/decrypt primitives
// used to seal container blocks and wrap the master secret. Every
// algorithm is backed by the standard library's crypto/aes and
// crypto/cipher: this is crypto primitive code, and the idiomatic Go
// answer for crypto primitives is the standard library, not a third-party
// reimplementation (the pack's own analogues — e.g. the AEAD codec in
// creachadair-ffs's storage/codecs/encrypted — reach for crypto/cipher the
// same way).
package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"errors"
	"fmt"
)

// ID identifies a cipher algorithm, on-wire exactly as spec'd.
type ID uint32

const (
	None ID = iota
	Aes128Ctr
	Aes128Gcm
	Aes192Ctr
	Aes192Gcm
	Aes256Ctr
	Aes256Gcm
)

func (id ID) String() string {
	switch id {
	case None:
		return "none"
	case Aes128Ctr:
		return "aes128-ctr"
	case Aes128Gcm:
		return "aes128-gcm"
	case Aes192Ctr:
		return "aes192-ctr"
	case Aes192Gcm:
		return "aes192-gcm"
	case Aes256Ctr:
		return "aes256-ctr"
	case Aes256Gcm:
		return "aes256-gcm"
	default:
		return fmt.Sprintf("cipher.ID(%d)", uint32(id))
	}
}

// KeyLen returns the key length in bytes this cipher requires.
func (id ID) KeyLen() int {
	switch id {
	case None:
		return 0
	case Aes128Ctr, Aes128Gcm:
		return 16
	case Aes192Ctr, Aes192Gcm:
		return 24
	case Aes256Ctr, Aes256Gcm:
		return 32
	default:
		return 0
	}
}

// IVLen returns the IV (nonce) length in bytes this cipher requires.
func (id ID) IVLen() int {
	switch id {
	case None:
		return 0
	case Aes128Ctr, Aes192Ctr, Aes256Ctr:
		return aes.BlockSize
	case Aes128Gcm, Aes192Gcm, Aes256Gcm:
		return 12
	default:
		return 0
	}
}

// TagLen returns the authentication tag length in bytes appended to
// ciphertext: 0 for CTR and None, 16 for the GCM variants.
func (id ID) TagLen() int {
	switch id {
	case Aes128Gcm, Aes192Gcm, Aes256Gcm:
		return 16
	default:
		return 0
	}
}

// BlockSize is the alignment required of plaintext/ciphertext. Every
// cipher this package supports is a stream or AEAD construction, so this
// is always 1.
func (id ID) BlockSize() int { return 1 }

// IsAEAD reports whether this cipher authenticates its payload.
func (id ID) IsAEAD() bool {
	return id.TagLen() > 0
}

// Errors returned by Context.Encrypt/Decrypt.
var (
	ErrInvalidKey       = errors.New("cipher: invalid key length")
	ErrInvalidIv        = errors.New("cipher: invalid iv length")
	ErrInvalidBlockSize = errors.New("cipher: input size is not block-aligned")
	ErrNotTrustworthy   = errors.New("cipher: ciphertext failed authentication")
)

// LibraryError wraps an error surfaced by the underlying crypto library
// (e.g. an invalid AES key size) that isn't one of the specific sentinel
// errors above.
type LibraryError struct{ Cause error }

func (e *LibraryError) Error() string { return fmt.Sprintf("cipher: %v", e.Cause) }
func (e *LibraryError) Unwrap() error { return e.Cause }

// Context owns the scratch buffer into which Encrypt pads its plaintext
// for one cipher algorithm, sized once to the largest gross block a
// container will ever see so the padding step does not reallocate. Each
// Encrypt and Decrypt call still allocates its output slice.
type Context struct {
	id      ID
	grossIn []byte
}

// NewContext creates a Context for id, with a scratch buffer sized to hold
// at least maxBlockSize bytes.
func NewContext(id ID, maxBlockSize int) *Context {
	return &Context{id: id, grossIn: make([]byte, maxBlockSize)}
}

// ID returns the algorithm this Context was created for.
func (c *Context) ID() ID { return c.id }

// copyInto zero-pads or trims src into a scratch buffer of exactly size
// bytes, reusing the Context's preallocated buffer to avoid an allocation.
func (c *Context) copyInto(size int, src []byte) []byte {
	if cap(c.grossIn) < size {
		c.grossIn = make([]byte, size)
	}
	buf := c.grossIn[:size]
	n := copy(buf, src)
	for i := n; i < size; i++ {
		buf[i] = 0
	}
	return buf
}

func (c *Context) aead(key []byte) (gocipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &LibraryError{Cause: err}
	}
	aead, err := gocipher.NewGCM(block)
	if err != nil {
		return nil, &LibraryError{Cause: err}
	}
	return aead, nil
}

// Encrypt copies plaintext into a targetSize-byte scratch buffer (zero
// padding it, or trimming it, exactly like the container's own write
// path), then encrypts that buffer with key and iv. The returned
// ciphertext is targetSize+TagLen() bytes.
func (c *Context) Encrypt(key, iv []byte, targetSize int, plaintext []byte) ([]byte, error) {
	in := c.copyInto(targetSize, plaintext)

	if c.id == None {
		out := make([]byte, len(in))
		copy(out, in)
		return out, nil
	}
	if len(key) != c.id.KeyLen() {
		return nil, ErrInvalidKey
	}
	if len(iv) != c.id.IVLen() {
		return nil, ErrInvalidIv
	}

	switch c.id {
	case Aes128Ctr, Aes192Ctr, Aes256Ctr:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, &LibraryError{Cause: err}
		}
		stream := gocipher.NewCTR(block, iv)
		out := make([]byte, len(in))
		stream.XORKeyStream(out, in)
		return out, nil
	case Aes128Gcm, Aes192Gcm, Aes256Gcm:
		aead, err := c.aead(key)
		if err != nil {
			return nil, err
		}
		return aead.Seal(nil, iv, in, nil), nil
	default:
		return nil, fmt.Errorf("cipher: unknown cipher id %d", c.id)
	}
}

// Decrypt decrypts ciphertext with key and iv. For AEAD ciphers the tag is
// the trailing TagLen() bytes of ciphertext; a failed authentication check
// is reported as ErrNotTrustworthy.
func (c *Context) Decrypt(key, iv, ciphertext []byte) ([]byte, error) {
	if c.id == None {
		out := make([]byte, len(ciphertext))
		copy(out, ciphertext)
		return out, nil
	}
	if len(key) != c.id.KeyLen() {
		return nil, ErrInvalidKey
	}
	if len(iv) != c.id.IVLen() {
		return nil, ErrInvalidIv
	}

	switch c.id {
	case Aes128Ctr, Aes192Ctr, Aes256Ctr:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, &LibraryError{Cause: err}
		}
		stream := gocipher.NewCTR(block, iv)
		out := make([]byte, len(ciphertext))
		stream.XORKeyStream(out, ciphertext)
		return out, nil
	case Aes128Gcm, Aes192Gcm, Aes256Gcm:
		aead, err := c.aead(key)
		if err != nil {
			return nil, err
		}
		if len(ciphertext) < c.id.TagLen() {
			return nil, ErrNotTrustworthy
		}
		plain, err := aead.Open(nil, iv, ciphertext, nil)
		if err != nil {
			return nil, ErrNotTrustworthy
		}
		return plain, nil
	default:
		return nil, fmt.Errorf("cipher: unknown cipher id %d", c.id)
	}
}
