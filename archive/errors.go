package archive

import (
	"errors"
	"fmt"

	"github.com/vaultfs/vault/backend"
)

// ErrFull is returned by append operations once the tree's direct leaf
// and indirect page are both exhausted.
var ErrFull = errors.New("archive: tree is full")

// ErrBlockSizeTooSmall is returned when a container's net block size
// cannot even hold one entry header.
var ErrBlockSizeTooSmall = errors.New("archive: net block size too small for an entry header")

// ErrUnexpectedEOF is returned when a file entry's declared size cannot
// be filled by its content blocks (a corrupted container).
var ErrUnexpectedEOF = errors.New("archive: unexpected eof reading file content")

// ErrWrongKind is returned when an operation expects an entry of a
// different kind (e.g. reading file content from a directory entry).
var ErrWrongKind = errors.New("archive: entry kind does not support this operation")

// InvalidNodeError reports a header block whose kind tag is outside
// {File, Directory, Symlink}.
type InvalidNodeError struct {
	ID backend.ID
}

func (e *InvalidNodeError) Error() string {
	return fmt.Sprintf("archive: invalid node at block %s", e.ID)
}
