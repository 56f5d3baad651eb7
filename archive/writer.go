package archive

import (
	"time"

	"github.com/klauspost/compress/s2"
	"golang.org/x/xerrors"

	"github.com/vaultfs/vault/backend"
)

// FileBuilder configures a new file entry before it is built into a
// writable FileWriter.
type FileBuilder struct {
	ar         *Archive
	name       string
	mode       Mode
	created    time.Time
	changed    time.Time
	modified   time.Time
	compressed bool
}

// AppendFile starts building a new file entry named name.
func (a *Archive) AppendFile(name string) *FileBuilder {
	now := time.Now()
	return &FileBuilder{
		ar:       a,
		name:     name,
		mode:     NewMode(KindFile, DefaultFileMode),
		created:  now,
		changed:  now,
		modified: now,
	}
}

// WithMode overrides the default permission bits (type bits are forced
// to File regardless of what is passed in).
func (b *FileBuilder) WithMode(perm uint32) *FileBuilder {
	b.mode = Mode(uint32(KindFile)<<16 | (perm & 0x1FF))
	return b
}

// WithTimes overrides the created/changed/modified timestamps (default:
// now, for all three).
func (b *FileBuilder) WithTimes(created, changed, modified time.Time) *FileBuilder {
	b.created, b.changed, b.modified = created, changed, modified
	return b
}

// WithCompression runs the entry's content through s2 before it is
// split into blocks. Worthwhile for compressible payloads (text, logs,
// package trees); skip it for data that is already compressed, since
// the block grid is fixed-size regardless and a failed compression
// attempt still costs a full pass over the bytes.
func (b *FileBuilder) WithCompression() *FileBuilder {
	b.compressed = true
	return b
}

// Build allocates the entry-header block, registers it at the next tree
// slot, and returns a FileWriter ready to accept content via WriteAll.
func (b *FileBuilder) Build() (*FileWriter, error) {
	hdr := entryHeader{
		Kind:       KindFile,
		Name:       b.name,
		Size:       0,
		Created:    FromTime(b.created),
		Changed:    FromTime(b.changed),
		Modified:   FromTime(b.modified),
		Mode:       b.mode,
		Compressed: b.compressed,
	}
	id, index, err := b.ar.buildHeader(hdr)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{ar: b.ar, headerID: id, headerIndex: index, hdr: hdr}
	if b.compressed {
		fw.sink = &blockSink{ar: b.ar, headerIndex: index, net: b.ar.c.NetSize()}
		fw.enc = s2.NewWriter(fw.sink)
	}
	return fw, nil
}

// EntryBuilder configures a new directory or symlink entry, sealed
// immediately on Build (they carry no separately-written content).
type EntryBuilder struct {
	ar       *Archive
	kind     Kind
	name     string
	target   string
	mode     Mode
	created  time.Time
	changed  time.Time
	modified time.Time
}

// AppendDirectory starts building a new directory entry named name.
func (a *Archive) AppendDirectory(name string) *EntryBuilder {
	now := time.Now()
	return &EntryBuilder{
		ar: a, kind: KindDirectory, name: name,
		mode:     NewMode(KindDirectory, DefaultDirMode),
		created:  now, changed: now, modified: now,
	}
}

// AppendSymlink starts building a new symlink entry named name, pointing
// at target.
func (a *Archive) AppendSymlink(name, target string) *EntryBuilder {
	now := time.Now()
	return &EntryBuilder{
		ar: a, kind: KindSymlink, name: name, target: target,
		mode:     NewMode(KindSymlink, 0777),
		created:  now, changed: now, modified: now,
	}
}

// WithMode overrides the default permission bits (type bits are forced
// to this builder's kind).
func (b *EntryBuilder) WithMode(perm uint32) *EntryBuilder {
	b.mode = Mode(uint32(b.kind)<<16 | (perm & 0x1FF))
	return b
}

// WithTimes overrides the created/changed/modified timestamps.
func (b *EntryBuilder) WithTimes(created, changed, modified time.Time) *EntryBuilder {
	b.created, b.changed, b.modified = created, changed, modified
	return b
}

// Build writes the sealed entry header and registers it at the next tree
// slot.
func (b *EntryBuilder) Build() (*Entry, error) {
	size := uint64(0)
	if b.kind == KindSymlink {
		size = uint64(len(b.target))
	}
	hdr := entryHeader{
		Kind:     b.kind,
		Name:     b.name,
		Size:     size,
		Created:  FromTime(b.created),
		Changed:  FromTime(b.changed),
		Modified: FromTime(b.modified),
		Mode:     b.mode,
		Target:   b.target,
	}
	id, index, err := b.ar.buildHeader(hdr)
	if err != nil {
		return nil, err
	}
	return &Entry{ar: b.ar, id: id, index: index, hdr: hdr}, nil
}

// buildHeader allocates a block for hdr, writes it, and registers it at
// the archive's next tree slot.
func (a *Archive) buildHeader(hdr entryHeader) (backend.ID, uint64, error) {
	raw, err := encodeEntryHeader(hdr)
	if err != nil {
		return "", 0, err
	}
	if uint32(len(raw)) > a.c.NetSize() {
		return "", 0, ErrBlockSizeTooSmall
	}

	id, err := a.c.Aquire()
	if err != nil {
		return "", 0, xerrors.Errorf("archive: aquire header block: %w", err)
	}
	index, err := a.tree.append(id)
	if err != nil {
		return "", 0, err
	}
	if _, err := a.c.Write(id, raw); err != nil {
		return "", 0, xerrors.Errorf("archive: write header block: %w", err)
	}
	return id, index, nil
}

// FileWriter streams content into a file entry built by FileBuilder.
type FileWriter struct {
	ar          *Archive
	headerID    backend.ID
	headerIndex uint64
	hdr         entryHeader

	// sink/enc are set only for a compressed entry: WriteAll then feeds
	// logical bytes through enc, which in turn hands s2 frames to sink
	// a block at a time.
	sink *blockSink
	enc  *s2.Writer
}

// blockSink adapts the archive's block-append path to an io.Writer,
// batching arbitrary-sized writes from an s2.Writer into the
// container's fixed net block size. Its flushTail method writes any
// partial tail block; FileWriter.Close calls it once the encoder is
// closed.
type blockSink struct {
	ar          *Archive
	headerIndex uint64
	net         uint32
	pending     []byte
	stored      uint64
}

func (s *blockSink) Write(p []byte) (int, error) {
	s.pending = append(s.pending, p...)
	for uint32(len(s.pending)) >= s.net {
		chunk := s.pending[:s.net]
		id, err := s.ar.c.Aquire()
		if err != nil {
			return 0, xerrors.Errorf("archive: aquire content block: %w", err)
		}
		if _, err := s.ar.tree.append(id); err != nil {
			return 0, err
		}
		if _, err := s.ar.c.Write(id, chunk); err != nil {
			return 0, xerrors.Errorf("archive: write content block: %w", err)
		}
		s.pending = s.pending[s.net:]
		s.stored += uint64(s.net)
	}
	return len(p), nil
}

func (s *blockSink) flushTail() error {
	if len(s.pending) == 0 {
		return nil
	}
	id, err := s.ar.c.Aquire()
	if err != nil {
		return xerrors.Errorf("archive: aquire content block: %w", err)
	}
	if _, err := s.ar.tree.append(id); err != nil {
		return err
	}
	if _, err := s.ar.c.Write(id, s.pending); err != nil {
		return xerrors.Errorf("archive: write content block: %w", err)
	}
	s.stored += uint64(len(s.pending))
	s.pending = nil
	return nil
}

// WriteAll appends buf to the file's content. For a compressed entry it
// feeds buf through the s2 encoder and records the new logical Size;
// StoredSize, and with it the entry's block span, is recorded only by
// Close, so a compressed entry whose writer is never closed cannot be
// read or skipped correctly. Otherwise it fills any partially written
// tail block before allocating new ones and rewrites the entry header,
// so an interrupted uncompressed append leaves a valid, short entry
// rather than a dangling one.
func (f *FileWriter) WriteAll(buf []byte) (int, error) {
	if f.enc != nil {
		n, err := f.enc.Write(buf)
		f.hdr.Size += uint64(n)
		if err != nil {
			return n, xerrors.Errorf("archive: compress content: %w", err)
		}
		if rerr := f.rewriteHeader(); rerr != nil {
			return n, rerr
		}
		return n, nil
	}

	net := f.ar.c.NetSize()
	written := 0

	oldBlocks := contentBlockCount(f.hdr.Size, net)
	if oldBlocks > 0 {
		filled := f.hdr.Size - (oldBlocks-1)*uint64(net)
		if filled < uint64(net) {
			tailIdx := f.headerIndex + oldBlocks
			tailID, err := f.ar.tree.get(tailIdx)
			if err != nil {
				return 0, err
			}
			existing := make([]byte, net)
			if _, err := f.ar.c.Read(tailID, existing); err != nil {
				return 0, err
			}
			space := int(uint64(net) - filled)
			n := len(buf)
			if n > space {
				n = space
			}
			copy(existing[filled:], buf[:n])
			if _, err := f.ar.c.Write(tailID, existing[:int(filled)+n]); err != nil {
				return 0, err
			}
			buf = buf[n:]
			written += n
			f.hdr.Size += uint64(n)
		}
	}

	for len(buf) > 0 {
		n := len(buf)
		if n > int(net) {
			n = int(net)
		}
		id, err := f.ar.c.Aquire()
		if err != nil {
			return written, xerrors.Errorf("archive: aquire content block: %w", err)
		}
		if _, err := f.ar.tree.append(id); err != nil {
			return written, err
		}
		if _, err := f.ar.c.Write(id, buf[:n]); err != nil {
			return written, xerrors.Errorf("archive: write content block: %w", err)
		}
		buf = buf[n:]
		written += n
		f.hdr.Size += uint64(n)
	}

	if err := f.rewriteHeader(); err != nil {
		return written, err
	}
	return written, nil
}

func (f *FileWriter) rewriteHeader() error {
	raw, err := encodeEntryHeader(f.hdr)
	if err != nil {
		return err
	}
	if _, err := f.ar.c.Write(f.headerID, raw); err != nil {
		return xerrors.Errorf("archive: rewrite header block: %w", err)
	}
	return nil
}

// Close finalizes a compressed entry: it flushes the s2 encoder and any
// pending tail block, records the stored (compressed) size and
// rewrites the header one last time. It is a no-op for an uncompressed
// entry, whose header is already current after every WriteAll.
func (f *FileWriter) Close() error {
	if f.enc == nil {
		return nil
	}
	if err := f.enc.Close(); err != nil {
		return xerrors.Errorf("archive: close compressor: %w", err)
	}
	if err := f.sink.flushTail(); err != nil {
		return err
	}
	f.hdr.StoredSize = f.sink.stored
	return f.rewriteHeader()
}

// Size returns the number of logical content bytes written so far.
func (f *FileWriter) Size() uint64 { return f.hdr.Size }
