// Package membackend implements an in-memory backend.Backend used for
// demonstration, testing, and documentation. It stores block content in a
// map keyed by a monotonically increasing uint32, mirroring the reference
// memory backend this project's block-store contract was distilled from.
package membackend

import (
	"fmt"
	"sync"

	"github.com/vaultfs/vault/backend"
)

// Backend is an in-memory block store. It never touches disk; all state is
// lost when the process exits. The zero value is not usable, use New.
type Backend struct {
	mu     sync.Mutex
	bsize  uint32
	blocks map[uint32][]byte
	header []byte
	nextID uint32
}

// New returns a Backend with the given gross block size.
func New(bsize uint32) *Backend {
	return &Backend{
		bsize:  bsize,
		blocks: make(map[uint32][]byte),
	}
}

// BlockSize implements backend.Backend.
func (b *Backend) BlockSize() uint32 { return b.bsize }

// Info implements backend.Backend.
func (b *Backend) Info() (backend.Info, error) {
	return backend.Info{
		"type":  "memory",
		"bsize": fmt.Sprint(b.bsize),
	}, nil
}

// Aquire implements backend.Backend. The new id is the previous maximum id
// plus one, starting at 1 (0 is reserved so the zero value of uint32 never
// collides with a live id once rendered through backend.ID).
func (b *Backend) Aquire(initial []byte) (backend.ID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID

	block := make([]byte, b.bsize)
	n := len(initial)
	if n > len(block) {
		n = len(block)
	}
	copy(block, initial[:n])

	b.blocks[id] = block
	return encodeID(id), nil
}

// Release implements backend.Backend.
func (b *Backend) Release(id backend.ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := decodeID(id)
	if !ok {
		return backend.ErrNoSuchID
	}
	if _, ok := b.blocks[n]; !ok {
		return backend.ErrNoSuchID
	}
	delete(b.blocks, n)
	return nil
}

// Read implements backend.Backend.
func (b *Backend) Read(id backend.ID, buf []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := decodeID(id)
	if !ok {
		return 0, backend.ErrNoSuchID
	}
	src, ok := b.blocks[n]
	if !ok {
		return 0, backend.ErrNoSuchID
	}
	return copy(buf, src), nil
}

// Write implements backend.Backend.
func (b *Backend) Write(id backend.ID, buf []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := decodeID(id)
	if !ok {
		return 0, backend.ErrNoSuchID
	}
	if _, ok := b.blocks[n]; !ok {
		return 0, backend.ErrNoSuchID
	}

	block := make([]byte, b.bsize)
	k := len(buf)
	if k > len(block) {
		k = len(block)
	}
	copy(block, buf[:k])
	b.blocks[n] = block
	return k, nil
}

// ReadHeader implements backend.Backend.
func (b *Backend) ReadHeader(buf []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.header == nil {
		return 0, backend.ErrNoHeader
	}
	return copy(buf, b.header), nil
}

// WriteHeader implements backend.Backend.
func (b *Backend) WriteHeader(buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.header = append([]byte(nil), buf...)
	return nil
}

// Delete implements backend.Backend.
func (b *Backend) Delete() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.blocks = make(map[uint32][]byte)
	b.header = nil
	b.nextID = 0
	return nil
}

// ParseID implements backend.IDParser.
func (b *Backend) ParseID(s string) (backend.ID, error) {
	var n uint32
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return "", err
	}
	return encodeID(n), nil
}

func encodeID(n uint32) backend.ID {
	return backend.IDFromBytes([]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
}

func decodeID(id backend.ID) (uint32, bool) {
	b := id.Bytes()
	if len(b) != 4 {
		return 0, false
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), true
}
