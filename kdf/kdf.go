// Package kdf derives cipher key/IV material from a user password. The
// only supported construction is PBKDF2-HMAC over a configurable digest,
// via golang.org/x/crypto/pbkdf2 — the ecosystem's standard implementation,
// promoted here from an indirect dependency of the teacher repo (it pulls
// in golang.org/x/crypto transitively for its FUSE and SSH-adjacent
// tooling) to a direct one.
package kdf

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"

	"golang.org/x/crypto/pbkdf2"
)

// Digest identifies the hash algorithm PBKDF2 runs HMAC over.
type Digest uint32

const (
	Sha1 Digest = iota
	Sha224
	Sha256
	Sha384
	Sha512
)

func (d Digest) String() string {
	switch d {
	case Sha1:
		return "sha1"
	case Sha224:
		return "sha224"
	case Sha256:
		return "sha256"
	case Sha384:
		return "sha384"
	case Sha512:
		return "sha512"
	default:
		return fmt.Sprintf("kdf.Digest(%d)", uint32(d))
	}
}

// New returns a constructor for this digest's hash.Hash, as required by
// pbkdf2.Key.
func (d Digest) New() (func() hash.Hash, error) {
	switch d {
	case Sha1:
		return sha1.New, nil
	case Sha224:
		return sha256.New224, nil
	case Sha256:
		return sha256.New, nil
	case Sha384:
		return sha512.New384, nil
	case Sha512:
		return sha512.New, nil
	default:
		return nil, &ParseError{Msg: fmt.Sprintf("unknown digest id %d", uint32(d))}
	}
}

// Size returns this digest's native output size in bytes.
func (d Digest) Size() int {
	switch d {
	case Sha1:
		return sha1.Size
	case Sha224:
		return sha256.Size224
	case Sha256:
		return sha256.Size
	case Sha384:
		return sha512.Size384
	case Sha512:
		return sha512.Size
	default:
		return 0
	}
}

// Kind tags the KDF descriptor's variant, matching the header's on-wire
// tagged union.
type Kind uint32

const (
	KindNone Kind = iota
	KindPbkdf2
)

// Pbkdf2Params holds the tunable parameters of the Pbkdf2 variant.
type Pbkdf2Params struct {
	Digest     Digest
	Iterations uint32
	Salt       []byte
}

// KDF is the header's KDF descriptor: either no KDF (for an unencrypted
// container) or PBKDF2 with the given parameters.
type KDF struct {
	Kind   Kind
	Pbkdf2 Pbkdf2Params
}

// None is the KDF descriptor for a container that derives no key material
// from a password.
func None() KDF { return KDF{Kind: KindNone} }

// DefaultPbkdf2 returns the default parameters used when generating a new
// container: SHA-256 and 65536 iterations, with salt used as given.
func DefaultPbkdf2(salt []byte) KDF {
	return KDF{
		Kind: KindPbkdf2,
		Pbkdf2: Pbkdf2Params{
			Digest:     Sha256,
			Iterations: 65536,
			Salt:       salt,
		},
	}
}

// ParseError is returned for malformed KDF parameters (an unknown digest
// id, or a zero-length salt for Pbkdf2).
type ParseError struct{ Msg string }

func (e *ParseError) Error() string { return "kdf: " + e.Msg }

// LibraryError wraps an error surfaced by the underlying PBKDF2
// implementation.
type LibraryError struct{ Cause error }

func (e *LibraryError) Error() string { return fmt.Sprintf("kdf: %v", e.Cause) }
func (e *LibraryError) Unwrap() error { return e.Cause }

var errKeyWithoutKdf = errors.New("kdf: key material requested but no KDF is configured")

// Derive returns exactly length bytes of key material derived from
// password. It is deterministic: the same (password, KDF, length) always
// yields the same output.
func (k KDF) Derive(password []byte, length int) ([]byte, error) {
	switch k.Kind {
	case KindNone:
		if length != 0 {
			return nil, errKeyWithoutKdf
		}
		return []byte{}, nil
	case KindPbkdf2:
		if len(k.Pbkdf2.Salt) == 0 {
			return nil, &ParseError{Msg: "pbkdf2 salt must not be empty"}
		}
		return stretch(password, k.Pbkdf2, length)
	default:
		return nil, &ParseError{Msg: fmt.Sprintf("unknown kdf kind %d", uint32(k.Kind))}
	}
}

// stretch implements the project's non-standard key-stretching
// construction: it derives the digest's native output size via PBKDF2,
// and — if more bytes are requested than the digest natively provides —
// re-feeds the previous PBKDF2 output as the next "password" (same salt,
// same iteration count) to produce the next digest-sized chunk, until
// enough bytes have been produced.
//
// Deprecated: this construction is not a named standard and exists only
// for bit-for-bit compatibility with legacy containers. New containers
// should prefer a cipher whose key length plus IV length does not exceed
// the digest size, so stretch never needs more than one PBKDF2 pass.
func stretch(password []byte, p Pbkdf2Params, length int) ([]byte, error) {
	hashNew, err := p.Digest.New()
	if err != nil {
		return nil, err
	}
	digestSize := p.Digest.Size()

	out := make([]byte, 0, length)
	cur := password
	for len(out) < length {
		chunk := pbkdf2.Key(cur, p.Salt, int(p.Iterations), digestSize, hashNew)
		out = append(out, chunk...)
		cur = chunk
	}
	return out[:length], nil
}
