// Package archive implements the tar-like, append-only archive service
// layered on top of a container: a sequential log of file, directory and
// symlink entries addressed through a two-tier block-index tree whose
// root lives in the container's userdata slot.
package archive

import (
	"github.com/vaultfs/vault/container"
)

// Archive is an open archive over a container. Entries are appended
// sequentially and never removed individually; only destroying the
// underlying container releases their blocks.
type Archive struct {
	c    *container.Container
	tree *tree
}

// Open loads the archive rooted in c's userdata. An archive with no
// entries yet (fresh container) is a valid, empty Archive.
func Open(c *container.Container) (*Archive, error) {
	t := newTree(c)
	if err := t.loadRoot(); err != nil {
		return nil, err
	}
	return &Archive{c: c, tree: t}, nil
}

// Len returns the number of tree slots in use, i.e. the sum of every
// entry's (1 + content blocks) span — not the number of entries.
func (a *Archive) Len() uint64 { return a.tree.count }

func contentBlockCount(size uint64, net uint32) uint64 {
	if size == 0 {
		return 0
	}
	return (size + uint64(net) - 1) / uint64(net)
}
