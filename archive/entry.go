package archive

import (
	"bytes"

	"golang.org/x/xerrors"

	"github.com/vaultfs/vault/codec"
)

// entryHeader is the on-wire form of an archive entry header block: kind,
// name, size, timestamps, mode and (for symlinks) the target string.
type entryHeader struct {
	Kind     Kind
	Name     string
	Size     uint64
	Created  Timestamp
	Changed  Timestamp
	Modified Timestamp
	Mode     Mode
	Target   string

	// Compressed and StoredSize describe a file entry's content blocks
	// when they hold an s2-compressed stream rather than raw bytes.
	// Size still reports the logical (uncompressed) length; StoredSize
	// is the number of bytes actually written across content blocks,
	// which is what Next needs to skip the right number of blocks.
	Compressed bool
	StoredSize uint64
}

func encodeTimestamp(w *codec.Writer, ts Timestamp) error {
	if err := w.Int64(ts.Sec); err != nil {
		return err
	}
	return w.Int32(ts.Nsec)
}

func decodeTimestamp(r *codec.Reader) (Timestamp, error) {
	sec, err := r.Int64()
	if err != nil {
		return Timestamp{}, err
	}
	nsec, err := r.Int32()
	if err != nil {
		return Timestamp{}, err
	}
	return Timestamp{Sec: sec, Nsec: nsec}, nil
}

func encodeEntryHeader(h entryHeader) ([]byte, error) {
	var buf bytes.Buffer
	w := codec.NewWriter(&buf)

	if err := w.Uint32(uint32(h.Kind)); err != nil {
		return nil, err
	}
	if err := w.String(h.Name); err != nil {
		return nil, err
	}
	if err := w.Uint64(h.Size); err != nil {
		return nil, err
	}
	if err := encodeTimestamp(w, h.Created); err != nil {
		return nil, err
	}
	if err := encodeTimestamp(w, h.Changed); err != nil {
		return nil, err
	}
	if err := encodeTimestamp(w, h.Modified); err != nil {
		return nil, err
	}
	if err := w.Uint32(uint32(h.Mode)); err != nil {
		return nil, err
	}
	if err := w.String(h.Target); err != nil {
		return nil, err
	}
	compressed := uint32(0)
	if h.Compressed {
		compressed = 1
	}
	if err := w.Uint32(compressed); err != nil {
		return nil, err
	}
	if err := w.Uint64(h.StoredSize); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEntryHeader(raw []byte) (entryHeader, error) {
	r := codec.NewReader(bytes.NewReader(raw))

	kind, err := r.Uint32()
	if err != nil {
		return entryHeader{}, xerrors.Errorf("archive: decode entry kind: %w", err)
	}
	if !kindValid(Kind(kind)) {
		return entryHeader{}, xerrors.Errorf("archive: decode entry: invalid kind %d", kind)
	}
	name, err := r.String()
	if err != nil {
		return entryHeader{}, xerrors.Errorf("archive: decode entry name: %w", err)
	}
	size, err := r.Uint64()
	if err != nil {
		return entryHeader{}, xerrors.Errorf("archive: decode entry size: %w", err)
	}
	created, err := decodeTimestamp(r)
	if err != nil {
		return entryHeader{}, err
	}
	changed, err := decodeTimestamp(r)
	if err != nil {
		return entryHeader{}, err
	}
	modified, err := decodeTimestamp(r)
	if err != nil {
		return entryHeader{}, err
	}
	mode, err := r.Uint32()
	if err != nil {
		return entryHeader{}, xerrors.Errorf("archive: decode entry mode: %w", err)
	}
	target, err := r.String()
	if err != nil {
		return entryHeader{}, xerrors.Errorf("archive: decode entry target: %w", err)
	}
	compressed, err := r.Uint32()
	if err != nil {
		return entryHeader{}, xerrors.Errorf("archive: decode entry compressed flag: %w", err)
	}
	storedSize, err := r.Uint64()
	if err != nil {
		return entryHeader{}, xerrors.Errorf("archive: decode entry stored size: %w", err)
	}

	return entryHeader{
		Kind:       Kind(kind),
		Name:       name,
		Size:       size,
		Created:    created,
		Changed:    changed,
		Modified:   modified,
		Mode:       Mode(mode),
		Target:     target,
		Compressed: compressed != 0,
		StoredSize: storedSize,
	}, nil
}
