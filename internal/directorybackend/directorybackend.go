// Package directorybackend implements a backend.Backend that stores each
// block as a file inside a directory, with a reserved, fixed-name file for
// the header. Writes are atomic (tempfile-then-rename via renameio) so a
// process crash mid-write never leaves a torn block on disk. Open takes an
// exclusive advisory flock on the directory, enforcing the backend
// contract's "exclusive to its owner" rule across processes, not just
// within one.
package directorybackend

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"golang.org/x/sys/unix"

	"github.com/vaultfs/vault/backend"
)

const headerName = "header"
const lockName = ".lock"

const maxAquireAttempts = 3

// Backend stores blocks as files directly inside Path.
type Backend struct {
	Path     string
	bsize    uint32
	lockFile *os.File
}

// Open returns a Backend rooted at path with the given gross block size.
// The directory is created if it does not already exist. It fails if
// another process already holds the directory's lock.
func Open(path string, bsize uint32) (*Backend, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, err
	}
	lockFile, err := os.OpenFile(filepath.Join(path, lockName), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(lockFile.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		lockFile.Close()
		return nil, fmt.Errorf("directorybackend: %s is already open by another process: %w", path, err)
	}
	return &Backend{Path: path, bsize: bsize, lockFile: lockFile}, nil
}

// Close releases the directory lock. It does not delete any state; use
// Delete for that.
func (b *Backend) Close() error {
	if b.lockFile == nil {
		return nil
	}
	unix.Flock(int(b.lockFile.Fd()), unix.LOCK_UN)
	return b.lockFile.Close()
}

// BlockSize implements backend.Backend.
func (b *Backend) BlockSize() uint32 { return b.bsize }

// Info implements backend.Backend.
func (b *Backend) Info() (backend.Info, error) {
	return backend.Info{
		"type":  "directory",
		"path":  b.Path,
		"bsize": fmt.Sprint(b.bsize),
	}, nil
}

func (b *Backend) pathFor(id backend.ID) string {
	return filepath.Join(b.Path, hex.EncodeToString(id.Bytes()))
}

// Aquire implements backend.Backend. It generates a random 16-byte id and
// creates its file exclusively, retrying on collision up to
// maxAquireAttempts times before giving up.
func (b *Backend) Aquire(initial []byte) (backend.ID, error) {
	block := make([]byte, b.bsize)
	n := len(initial)
	if n > len(block) {
		n = len(block)
	}
	copy(block, initial[:n])

	for attempt := 0; attempt < maxAquireAttempts; attempt++ {
		raw := make([]byte, 16)
		if _, err := rand.Read(raw); err != nil {
			return "", err
		}
		id := backend.IDFromBytes(raw)
		path := b.pathFor(id)

		fh, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return "", err
		}
		_, werr := fh.Write(block)
		cerr := fh.Close()
		if werr != nil {
			return "", werr
		}
		if cerr != nil {
			return "", cerr
		}
		return id, nil
	}
	return "", backend.ErrAlreadyAquired
}

// Release implements backend.Backend.
func (b *Backend) Release(id backend.ID) error {
	err := os.Remove(b.pathFor(id))
	if os.IsNotExist(err) {
		return backend.ErrNoSuchID
	}
	return err
}

// Read implements backend.Backend.
func (b *Backend) Read(id backend.ID, buf []byte) (int, error) {
	fh, err := os.Open(b.pathFor(id))
	if os.IsNotExist(err) {
		return 0, backend.ErrNoSuchID
	}
	if err != nil {
		return 0, err
	}
	defer fh.Close()

	n := len(buf)
	if uint32(n) > b.bsize {
		n = int(b.bsize)
	}
	read, err := io.ReadFull(fh, buf[:n])
	if err != nil && err != io.ErrUnexpectedEOF {
		return read, err
	}
	return read, nil
}

// Write implements backend.Backend. The write is atomic: a temp file is
// written in full, then renamed over the block's path.
func (b *Backend) Write(id backend.ID, buf []byte) (int, error) {
	path := b.pathFor(id)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return 0, backend.ErrNoSuchID
	}

	n := len(buf)
	if uint32(n) > b.bsize {
		n = int(b.bsize)
	}

	f, err := renameio.TempFile("", path)
	if err != nil {
		return 0, err
	}
	defer f.Cleanup()

	if _, err := f.Write(buf[:n]); err != nil {
		return 0, err
	}
	pad := int(b.bsize) - n
	if pad > 0 {
		if _, err := f.Write(make([]byte, pad)); err != nil {
			return 0, err
		}
	}
	if err := f.CloseAtomicallyReplace(); err != nil {
		return 0, err
	}
	return n, nil
}

func (b *Backend) headerPath() string {
	return filepath.Join(b.Path, headerName)
}

// ReadHeader implements backend.Backend.
func (b *Backend) ReadHeader(buf []byte) (int, error) {
	data, err := os.ReadFile(b.headerPath())
	if os.IsNotExist(err) {
		return 0, backend.ErrNoHeader
	}
	if err != nil {
		return 0, err
	}
	return copy(buf, data), nil
}

// WriteHeader implements backend.Backend.
func (b *Backend) WriteHeader(buf []byte) error {
	f, err := renameio.TempFile("", b.headerPath())
	if err != nil {
		return err
	}
	defer f.Cleanup()

	if _, err := f.Write(buf); err != nil {
		return err
	}
	return f.CloseAtomicallyReplace()
}

// Delete implements backend.Backend. It removes the backend's directory and
// everything in it.
func (b *Backend) Delete() error {
	b.Close()
	return os.RemoveAll(b.Path)
}

// ParseID implements backend.IDParser: directory backend ids display as
// hex filenames, which is already backend.ID's default lexical form, so
// this just delegates.
func (b *Backend) ParseID(s string) (backend.ID, error) {
	return backend.ParseID(s)
}
