package archive

import (
	"io"
	"time"

	"github.com/klauspost/compress/s2"
	"golang.org/x/xerrors"

	"github.com/vaultfs/vault/backend"
)

// Entry is a read-only view of one archive entry (file, directory or
// symlink), anchored at a tree index.
type Entry struct {
	ar    *Archive
	id    backend.ID
	index uint64
	hdr   entryHeader
}

// Kind returns the entry's type.
func (e *Entry) Kind() Kind { return e.hdr.Kind }

// Name returns the entry's name.
func (e *Entry) Name() string { return e.hdr.Name }

// Size returns the entry's declared size (content byte count for files,
// target string length for symlinks, 0 for directories).
func (e *Entry) Size() uint64 { return e.hdr.Size }

// Mode returns the entry's type+permission bits.
func (e *Entry) Mode() Mode { return e.hdr.Mode }

// Target returns the symlink target string; empty for non-symlinks.
func (e *Entry) Target() string { return e.hdr.Target }

// Compressed reports whether a file entry's content blocks hold an
// s2-compressed stream rather than raw bytes.
func (e *Entry) Compressed() bool { return e.hdr.Compressed }

// contentSpanSize returns the byte count that determines how many
// content blocks an entry occupies: StoredSize for a compressed file
// (the compressed stream may be shorter or longer than Size), Size
// otherwise.
func (e *Entry) contentSpanSize() uint64 {
	if e.hdr.Compressed {
		return e.hdr.StoredSize
	}
	return e.hdr.Size
}

func (e *Entry) Created() time.Time  { return e.hdr.Created.Time() }
func (e *Entry) Changed() time.Time  { return e.hdr.Changed.Time() }
func (e *Entry) Modified() time.Time { return e.hdr.Modified.Time() }

// entryAt reads and decodes the entry header at tree index idx. It
// returns (nil, nil) once idx has walked past the end of the archive.
func (a *Archive) entryAt(idx uint64) (*Entry, error) {
	if idx >= a.tree.count {
		return nil, nil
	}
	id, err := a.tree.get(idx)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, a.c.NetSize())
	n, err := a.c.Read(id, raw)
	if err != nil {
		return nil, xerrors.Errorf("archive: read entry header %s: %w", id, err)
	}
	hdr, err := decodeEntryHeader(raw[:n])
	if err != nil {
		return nil, &InvalidNodeError{ID: id}
	}
	return &Entry{ar: a, id: id, index: idx, hdr: hdr}, nil
}

// First returns the entry anchored at tree index 0, or nil if the
// archive has no entries yet.
func (a *Archive) First() (*Entry, error) {
	return a.entryAt(0)
}

// Next advances to the entry that follows e, skipping over e's content
// blocks. It returns (nil, nil) at the end of the archive.
func (e *Entry) Next() (*Entry, error) {
	net := e.ar.c.NetSize()
	blocks := contentBlockCount(e.contentSpanSize(), net)
	return e.ar.entryAt(e.index + 1 + blocks)
}

// Lookup walks the archive from First() forward looking for name. Names
// are not indexed: this is O(n) by design, a sequential log rather than
// a keyed store. Callers that need uniqueness must enforce it themselves.
func (a *Archive) Lookup(name string) (*Entry, error) {
	e, err := a.First()
	for e != nil && err == nil {
		if e.Name() == name {
			return e, nil
		}
		e, err = e.Next()
	}
	return nil, err
}

// Open returns a reader over a file entry's content. It fails with
// ErrWrongKind for directory and symlink entries.
func (e *Entry) Open() (*FileReader, error) {
	if e.Kind() != KindFile {
		return nil, ErrWrongKind
	}
	if e.hdr.Compressed {
		return &FileReader{entry: e, dec: s2.NewReader(&blockStream{entry: e, total: e.hdr.StoredSize})}, nil
	}
	return &FileReader{entry: e}, nil
}

// FileReader streams a file entry's content blocks in order, presenting
// them as one contiguous byte stream. Compressed entries are decoded
// through an s2 reader fed by a blockStream; uncompressed entries are
// read directly, block by block, with random access by byte offset.
type FileReader struct {
	entry *Entry
	pos   uint64
	dec   *s2.Reader
}

// Read implements io.Reader, returning io.EOF once pos reaches the
// entry's declared size.
func (r *FileReader) Read(buf []byte) (int, error) {
	if r.dec != nil {
		if r.pos >= r.entry.hdr.Size {
			return 0, io.EOF
		}
		want := uint64(len(buf))
		if remaining := r.entry.hdr.Size - r.pos; want > remaining {
			want = remaining
		}
		n, err := r.dec.Read(buf[:want])
		r.pos += uint64(n)
		if err == io.EOF && n > 0 {
			err = nil
		}
		return n, err
	}

	if r.pos >= r.entry.hdr.Size {
		return 0, io.EOF
	}

	net := uint64(r.entry.ar.c.NetSize())
	blockIndex := r.pos / net
	offset := r.pos % net
	contentIdx := r.entry.index + 1 + blockIndex

	id, err := r.entry.ar.tree.get(contentIdx)
	if err != nil {
		return 0, ErrUnexpectedEOF
	}

	block := make([]byte, net)
	if _, err := r.entry.ar.c.Read(id, block); err != nil {
		return 0, xerrors.Errorf("archive: read content block %s: %w", id, err)
	}

	avail := r.entry.hdr.Size - r.pos
	blockAvail := net - offset
	if blockAvail < avail {
		avail = blockAvail
	}

	n := copy(buf, block[offset:offset+avail])
	r.pos += uint64(n)
	return n, nil
}

// blockStream presents a compressed file entry's content blocks as one
// contiguous io.Reader, the shape s2.Reader needs underneath it. Blocks
// are walked strictly in order; StoredSize bounds the stream since the
// last block is padded to the container's net block size.
type blockStream struct {
	entry *Entry
	idx   uint64
	total uint64
	done  uint64
	tail  []byte
}

func (s *blockStream) Read(p []byte) (int, error) {
	if len(s.tail) == 0 {
		if s.done >= s.total {
			return 0, io.EOF
		}
		net := uint64(s.entry.ar.c.NetSize())
		contentIdx := s.entry.index + 1 + s.idx
		id, err := s.entry.ar.tree.get(contentIdx)
		if err != nil {
			return 0, ErrUnexpectedEOF
		}
		block := make([]byte, net)
		if _, err := s.entry.ar.c.Read(id, block); err != nil {
			return 0, xerrors.Errorf("archive: read content block %s: %w", id, err)
		}
		s.idx++
		remaining := s.total - s.done
		take := net
		if take > remaining {
			take = remaining
		}
		s.tail = block[:take]
	}

	n := copy(p, s.tail)
	s.tail = s.tail[n:]
	s.done += uint64(n)
	return n, nil
}
