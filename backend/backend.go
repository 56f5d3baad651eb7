// Package backend defines the minimal polymorphic interface every
// physical block store must satisfy, plus the sentinel errors every
// implementation (a directory of files, an in-memory map, a child-process
// plugin) is expected to return for the situations spec'd in
// spec.md §4.5/§7.
package backend

import (
	"encoding/hex"
	"errors"
)

// HeaderMax bounds the size of the designated header slot any backend may
// be asked to read or write. It is large enough for every gross block
// size this project exercises in its own tests and CLI defaults.
const HeaderMax = 1 << 16

// ID is an opaque, backend-chosen block identifier. It is a plain Go
// string under the hood so that it is comparable and usable as a map key
// without a wrapper: two live (acquired, not yet released) ids from the
// same backend never compare equal, matching the backend contract.
//
// The zero value (empty string) is the distinguished null id.
type ID string

// IDFromBytes wraps raw backend-chosen bytes as an ID.
func IDFromBytes(b []byte) ID { return ID(b) }

// Bytes returns the raw backend-chosen bytes.
func (id ID) Bytes() []byte { return []byte(id) }

// IsNull reports whether id is the distinguished null value.
func (id ID) IsNull() bool { return id == "" }

// String renders id in its lexical/display form: hex-encoded bytes, or
// "<null>" for the null id.
func (id ID) String() string {
	if id.IsNull() {
		return "<null>"
	}
	return hex.EncodeToString([]byte(id))
}

// ParseID parses the display form produced by ID.String.
func ParseID(s string) (ID, error) {
	if s == "<null>" || s == "" {
		return ID(""), nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", err
	}
	return ID(b), nil
}

// Sentinel errors every Backend implementation returns for these
// conditions, regardless of its own internal error types.
var (
	// ErrNoSuchID is returned by Read/Write/Release when id is not
	// currently acquired.
	ErrNoSuchID = errors.New("backend: no such block id")

	// ErrAlreadyAquired is returned by Aquire if the backend cannot
	// allocate a fresh id (e.g. the id space or storage is exhausted).
	ErrAlreadyAquired = errors.New("backend: id already acquired")

	// ErrNoHeader is returned by ReadHeader when no header has been
	// written yet.
	ErrNoHeader = errors.New("backend: no header present")
)

// Info is the backend's self-description, returned for display by CLI
// tooling (e.g. "container info").
type Info map[string]string

// Backend is the polymorphic block-store interface every physical storage
// implementation satisfies. A Backend is exclusive to its owner: it is
// handed over by ownership (e.g. into a container.Container), never
// shared or accessed concurrently from multiple goroutines.
type Backend interface {
	// BlockSize returns the gross block size this backend stores.
	BlockSize() uint32

	// Info returns backend-specific display information.
	Info() (Info, error)

	// Aquire atomically allocates a fresh id and initializes its block
	// content to initial, zero-padded to BlockSize(). This combined
	// allocate+write avoids a race between allocation and first write.
	Aquire(initial []byte) (ID, error)

	// Release drops the content at id. The id may be reused later, but a
	// backend is not required to reuse it.
	Release(id ID) error

	// Read fills buf with the block at id, returning the number of bytes
	// copied (at most BlockSize(), and at most len(buf)).
	Read(id ID, buf []byte) (int, error)

	// Write stores buf (truncated to BlockSize() and zero-padded if
	// shorter) at id, returning the number of bytes accepted.
	Write(id ID, buf []byte) (int, error)

	// ReadHeader reads the designated header slot into buf[:n], returning
	// n. ErrNoHeader is returned if no header has been written yet.
	ReadHeader(buf []byte) (int, error)

	// WriteHeader writes buf to the designated header slot, creating it
	// if necessary.
	WriteHeader(buf []byte) error

	// Delete drops all of this backend's persisted state.
	Delete() error
}

// IDParser is implemented by backends whose ID values have a
// backend-specific parseable lexical form beyond the generic hex
// encoding ID.String/ParseID provide (e.g. a directory backend that
// displays ids as filenames).
type IDParser interface {
	ParseID(s string) (ID, error)
}
