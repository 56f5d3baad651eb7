package container

import (
	"bytes"
	"fmt"

	"golang.org/x/xerrors"

	"github.com/vaultfs/vault/cipher"
	"github.com/vaultfs/vault/codec"
	"github.com/vaultfs/vault/kdf"
)

// magic is the 7-byte ASCII tag every header starts with.
var magic = [7]byte{'n', 'u', 't', 's', '-', 'i', 'o'}

// formatVersion is the single byte following magic; it has never changed.
const formatVersion = 0x01

// CurrentRevision is the revision number this package writes for newly
// created containers. Revisions 0 and 1 remain readable.
const CurrentRevision uint32 = 2

// header is the on-wire container header: everything persisted at the
// backend's designated header id, before cipher-specific padding to the
// gross block size.
type header struct {
	Revision      uint32
	Cipher        cipher.ID
	KDF           kdf.KDF
	WrappedSecret []byte
}

// lengthWidth returns 4 for the legacy revision-0 wire format and 8 for
// every later revision, per the header's historically variable
// length-prefix width.
func lengthWidth(revision uint32) int {
	if revision == 0 {
		return 4
	}
	return 8
}

func readLength(r *codec.Reader, revision uint32) (uint64, error) {
	if lengthWidth(revision) == 4 {
		v, err := r.Uint32()
		return uint64(v), err
	}
	return r.Uint64()
}

func writeLength(w *codec.Writer, revision uint32, n uint64) error {
	if lengthWidth(revision) == 4 {
		return w.Uint32(uint32(n))
	}
	return w.Uint64(n)
}

// encodeHeader serialises h using the length-prefix width of h.Revision
// (4 bytes for revision 0, 8 bytes from revision 1 on), so a header of an
// older revision is written back in its own layout.
func encodeHeader(h header) ([]byte, error) {
	var buf bytes.Buffer
	w := codec.NewWriter(&buf)

	if err := w.FixedBytes(magic[:]); err != nil {
		return nil, xerrors.Errorf("container: write magic: %w", err)
	}
	if err := w.Uint8(formatVersion); err != nil {
		return nil, xerrors.Errorf("container: write version: %w", err)
	}
	if err := w.Uint32(h.Revision); err != nil {
		return nil, xerrors.Errorf("container: write revision: %w", err)
	}
	if err := w.Uint32(uint32(h.Cipher)); err != nil {
		return nil, xerrors.Errorf("container: write cipher id: %w", err)
	}
	if err := encodeKDF(w, h.Revision, h.KDF); err != nil {
		return nil, xerrors.Errorf("container: write kdf: %w", err)
	}
	if err := writeLength(w, h.Revision, uint64(len(h.WrappedSecret))); err != nil {
		return nil, xerrors.Errorf("container: write wrapped secret length: %w", err)
	}
	if err := w.FixedBytes(h.WrappedSecret); err != nil {
		return nil, xerrors.Errorf("container: write wrapped secret: %w", err)
	}

	return buf.Bytes(), nil
}

func encodeKDF(w *codec.Writer, revision uint32, k kdf.KDF) error {
	if err := w.Uint32(uint32(k.Kind)); err != nil {
		return err
	}
	if k.Kind == kdf.KindNone {
		return nil
	}
	if err := w.Uint32(uint32(k.Pbkdf2.Digest)); err != nil {
		return err
	}
	if err := w.Uint32(k.Pbkdf2.Iterations); err != nil {
		return err
	}
	if err := writeLength(w, revision, uint64(len(k.Pbkdf2.Salt))); err != nil {
		return err
	}
	return w.FixedBytes(k.Pbkdf2.Salt)
}

func decodeKDF(r *codec.Reader, revision uint32) (kdf.KDF, error) {
	tag, err := r.Uint32()
	if err != nil {
		return kdf.KDF{}, err
	}
	switch kdf.Kind(tag) {
	case kdf.KindNone:
		return kdf.None(), nil
	case kdf.KindPbkdf2:
		digest, err := r.Uint32()
		if err != nil {
			return kdf.KDF{}, err
		}
		iterations, err := r.Uint32()
		if err != nil {
			return kdf.KDF{}, err
		}
		saltLen, err := readLength(r, revision)
		if err != nil {
			return kdf.KDF{}, err
		}
		salt, err := r.FixedBytes(int(saltLen))
		if err != nil {
			return kdf.KDF{}, err
		}
		return kdf.KDF{
			Kind: kdf.KindPbkdf2,
			Pbkdf2: kdf.Pbkdf2Params{
				Digest:     kdf.Digest(digest),
				Iterations: iterations,
				Salt:       salt,
			},
		}, nil
	default:
		return kdf.KDF{}, &HeaderError{Kind: InvalidHeader}
	}
}

// decodeHeader parses raw header bytes (as read back from the backend's
// header slot, already stripped of any trailing zero padding the caller
// chooses not to include).
func decodeHeader(raw []byte) (header, error) {
	r := codec.NewReader(bytes.NewReader(raw))

	got, err := r.FixedBytes(7)
	if err != nil {
		return header{}, &HeaderError{Kind: InvalidHeader}
	}
	if !bytes.Equal(got, magic[:]) {
		return header{}, &HeaderError{Kind: InvalidHeader}
	}
	version, err := r.Uint8()
	if err != nil || version != formatVersion {
		return header{}, &HeaderError{Kind: InvalidHeader}
	}

	revision, err := r.Uint32()
	if err != nil {
		return header{}, &HeaderError{Kind: InvalidHeader}
	}
	if revision > CurrentRevision {
		return header{}, &HeaderError{Kind: UnsupportedRevision}
	}

	cipherID, err := r.Uint32()
	if err != nil {
		return header{}, &HeaderError{Kind: InvalidHeader}
	}

	k, err := decodeKDF(r, revision)
	if err != nil {
		return header{}, fmt.Errorf("container: decode kdf: %w", err)
	}

	wrappedLen, err := readLength(r, revision)
	if err != nil {
		return header{}, &HeaderError{Kind: InvalidHeader}
	}
	wrapped, err := r.FixedBytes(int(wrappedLen))
	if err != nil {
		return header{}, &HeaderError{Kind: InvalidHeader}
	}

	return header{
		Revision:      revision,
		Cipher:        cipher.ID(cipherID),
		KDF:           k,
		WrappedSecret: wrapped,
	}, nil
}
