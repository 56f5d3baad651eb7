package archive

import (
	"bytes"

	"golang.org/x/xerrors"

	"github.com/vaultfs/vault/backend"
	"github.com/vaultfs/vault/codec"
	"github.com/vaultfs/vault/container"
)

// tree is the two-tier block index mapping dense entry-block offsets to
// backend ids: a direct leaf page holding the first leafCap ids, and one
// indirect page of leaf-page ids for everything beyond that. The root
// (direct id, indirect id, count) lives in the container's userdata slot.
type tree struct {
	c *container.Container

	idSize  int
	leafCap int

	direct   backend.ID
	indirect backend.ID
	count    uint64
}

func newTree(c *container.Container) *tree {
	return &tree{c: c}
}

// loadRoot decodes the archive's root record from container userdata. An
// empty slice is a valid, empty archive.
func (t *tree) loadRoot() error {
	data := t.c.Userdata()
	if len(data) == 0 {
		return nil
	}

	r := codec.NewReader(bytes.NewReader(data))
	count, err := r.Uint64()
	if err != nil {
		return xerrors.Errorf("archive: decode root count: %w", err)
	}
	directBytes, err := r.Bytes()
	if err != nil {
		return xerrors.Errorf("archive: decode root direct id: %w", err)
	}
	hasIndirect, err := r.Bool()
	if err != nil {
		return xerrors.Errorf("archive: decode root indirect flag: %w", err)
	}
	var indirectBytes []byte
	if hasIndirect {
		indirectBytes, err = r.Bytes()
		if err != nil {
			return xerrors.Errorf("archive: decode root indirect id: %w", err)
		}
	}

	t.count = count
	if len(directBytes) > 0 {
		t.direct = backend.IDFromBytes(directBytes)
		t.idSize = len(directBytes)
		t.leafCap = (int(t.c.NetSize()) - 8) / t.idSize
	}
	if hasIndirect {
		t.indirect = backend.IDFromBytes(indirectBytes)
	}
	return nil
}

// persistRoot re-encodes the root record and writes it to the container's
// userdata slot.
func (t *tree) persistRoot() error {
	var buf bytes.Buffer
	w := codec.NewWriter(&buf)

	if err := w.Uint64(t.count); err != nil {
		return err
	}
	if err := w.Bytes(t.direct.Bytes()); err != nil {
		return err
	}
	if err := w.Bool(!t.indirect.IsNull()); err != nil {
		return err
	}
	if !t.indirect.IsNull() {
		if err := w.Bytes(t.indirect.Bytes()); err != nil {
			return err
		}
	}

	return t.c.SetUserdata(buf.Bytes())
}

func (t *tree) readPage(id backend.ID) ([]backend.ID, error) {
	raw := make([]byte, t.c.NetSize())
	n, err := t.c.Read(id, raw)
	if err != nil {
		return nil, xerrors.Errorf("archive: read page %s: %w", id, err)
	}
	r := codec.NewReader(bytes.NewReader(raw[:n]))
	cnt, err := r.Uint64()
	if err != nil {
		return nil, xerrors.Errorf("archive: decode page count: %w", err)
	}
	ids := make([]backend.ID, 0, cnt)
	for i := uint64(0); i < cnt; i++ {
		b, err := r.FixedBytes(t.idSize)
		if err != nil {
			return nil, xerrors.Errorf("archive: decode page entry: %w", err)
		}
		ids = append(ids, backend.IDFromBytes(b))
	}
	return ids, nil
}

func (t *tree) writePage(id backend.ID, ids []backend.ID) error {
	var buf bytes.Buffer
	w := codec.NewWriter(&buf)

	if err := w.Uint64(uint64(len(ids))); err != nil {
		return err
	}
	for _, pid := range ids {
		if err := w.FixedBytes(pid.Bytes()); err != nil {
			return err
		}
	}

	if _, err := t.c.Write(id, buf.Bytes()); err != nil {
		return xerrors.Errorf("archive: write page %s: %w", id, err)
	}
	return nil
}

func (t *tree) writeSlot(pageID backend.ID, slot int, id backend.ID) error {
	ids, err := t.readPage(pageID)
	if err != nil {
		return err
	}
	switch {
	case slot < len(ids):
		ids[slot] = id
	case slot == len(ids):
		ids = append(ids, id)
	default:
		return xerrors.Errorf("archive: non-contiguous page write at slot %d (have %d)", slot, len(ids))
	}
	return t.writePage(pageID, ids)
}

func (t *tree) readSlot(pageID backend.ID, slot int) (backend.ID, error) {
	ids, err := t.readPage(pageID)
	if err != nil {
		return "", err
	}
	if slot < 0 || slot >= len(ids) {
		return "", xerrors.Errorf("archive: slot %d out of range (have %d)", slot, len(ids))
	}
	return ids[slot], nil
}

// get returns the id stored at dense tree index i.
func (t *tree) get(i uint64) (backend.ID, error) {
	if i >= t.count {
		return "", xerrors.Errorf("archive: tree index %d out of range (count %d)", i, t.count)
	}
	if i < uint64(t.leafCap) {
		return t.readSlot(t.direct, int(i))
	}
	j := i - uint64(t.leafCap)
	leafIndex := j / uint64(t.leafCap)
	slot := j % uint64(t.leafCap)
	leafID, err := t.readSlot(t.indirect, int(leafIndex))
	if err != nil {
		return "", err
	}
	return t.readSlot(leafID, int(slot))
}

// append adds id to the next tree slot, growing the direct leaf or
// indirect page as needed, and returns the index it was stored at.
func (t *tree) append(id backend.ID) (uint64, error) {
	if t.idSize == 0 {
		t.idSize = len(id.Bytes())
		t.leafCap = (int(t.c.NetSize()) - 8) / t.idSize
		if t.leafCap <= 0 {
			return 0, ErrBlockSizeTooSmall
		}
	}

	index := t.count

	if index < uint64(t.leafCap) {
		if t.direct.IsNull() {
			leafID, err := t.c.Aquire()
			if err != nil {
				return 0, err
			}
			t.direct = leafID
		}
		if err := t.writeSlot(t.direct, int(index), id); err != nil {
			return 0, err
		}
	} else {
		j := index - uint64(t.leafCap)
		leafIndex := j / uint64(t.leafCap)
		slot := j % uint64(t.leafCap)

		if leafIndex >= uint64(t.leafCap) {
			return 0, ErrFull
		}

		if t.indirect.IsNull() {
			indirectID, err := t.c.Aquire()
			if err != nil {
				return 0, err
			}
			t.indirect = indirectID
		}

		if slot == 0 {
			leafID, err := t.c.Aquire()
			if err != nil {
				return 0, err
			}
			if err := t.writeSlot(t.indirect, int(leafIndex), leafID); err != nil {
				return 0, err
			}
		}

		leafID, err := t.readSlot(t.indirect, int(leafIndex))
		if err != nil {
			return 0, err
		}
		if err := t.writeSlot(leafID, int(slot), id); err != nil {
			return 0, err
		}
	}

	t.count++
	if err := t.persistRoot(); err != nil {
		return 0, err
	}
	return index, nil
}
