package container

import (
	"bytes"

	"golang.org/x/xerrors"

	"github.com/vaultfs/vault/backend"
	"github.com/vaultfs/vault/codec"
	"github.com/vaultfs/vault/secret"
)

// wrapMagic is the 4-byte tag that precedes a wrapped blob's plaintext; it
// is the sole authenticator for the CTR ciphers, and a redundant sanity
// check for the AEAD ones (whose own tag already proves integrity).
var wrapMagic = [4]byte{0x73, 0x74, 0x75, 0x73}

// userdataMagic is prepended to non-empty userdata bytes from revision 1
// onward; empty userdata is written as a zero-length slot with no magic.
var userdataMagic = [4]byte{0x6e, 0x75, 0x74, 0x73}

// masterSecret is the plaintext form of a container's key material: the
// per-container block key, IV base, optional top id, and userdata slot.
type masterSecret struct {
	Key      *secret.Vec
	IVBase   *secret.Vec
	TopID    backend.ID
	Userdata []byte
}

func encodeMasterSecret(revision uint32, ms masterSecret) ([]byte, error) {
	var buf bytes.Buffer
	w := codec.NewWriter(&buf)

	if err := w.FixedBytes(wrapMagic[:]); err != nil {
		return nil, err
	}
	if err := w.FixedBytes(ms.Key.Bytes()); err != nil {
		return nil, err
	}
	if err := w.FixedBytes(ms.IVBase.Bytes()); err != nil {
		return nil, err
	}

	topBytes := ms.TopID.Bytes()
	if err := w.Uint32(uint32(len(topBytes))); err != nil {
		return nil, err
	}
	if err := w.FixedBytes(topBytes); err != nil {
		return nil, err
	}

	userdata := ms.Userdata
	if revision >= 1 && len(userdata) > 0 {
		tagged := make([]byte, 0, 4+len(userdata))
		tagged = append(tagged, userdataMagic[:]...)
		tagged = append(tagged, userdata...)
		userdata = tagged
	}
	if err := w.Uint64(uint64(len(userdata))); err != nil {
		return nil, err
	}
	if err := w.FixedBytes(userdata); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeMasterSecret(revision uint32, keyLen, ivLen int, raw []byte) (masterSecret, error) {
	r := codec.NewReader(bytes.NewReader(raw))

	got, err := r.FixedBytes(4)
	if err != nil {
		return masterSecret{}, xerrors.Errorf("container: read wrap magic: %w", err)
	}
	if !bytes.Equal(got, wrapMagic[:]) {
		return masterSecret{}, &HeaderError{Kind: WrongPassword}
	}

	key, err := r.FixedBytes(keyLen)
	if err != nil {
		return masterSecret{}, xerrors.Errorf("container: read key: %w", err)
	}
	iv, err := r.FixedBytes(ivLen)
	if err != nil {
		return masterSecret{}, xerrors.Errorf("container: read iv: %w", err)
	}

	topLen, err := r.Uint32()
	if err != nil {
		return masterSecret{}, xerrors.Errorf("container: read top id length: %w", err)
	}
	var topID backend.ID
	if topLen > 0 {
		topBytes, err := r.FixedBytes(int(topLen))
		if err != nil {
			return masterSecret{}, xerrors.Errorf("container: read top id: %w", err)
		}
		topID = backend.IDFromBytes(topBytes)
	}

	userdataLen, err := r.Uint64()
	if err != nil {
		return masterSecret{}, xerrors.Errorf("container: read userdata length: %w", err)
	}
	userdata, err := r.FixedBytes(int(userdataLen))
	if err != nil {
		return masterSecret{}, xerrors.Errorf("container: read userdata: %w", err)
	}
	if revision >= 1 && len(userdata) >= 4 && bytes.Equal(userdata[:4], userdataMagic[:]) {
		userdata = userdata[4:]
	}

	return masterSecret{
		Key:      secret.New(key),
		IVBase:   secret.New(iv),
		TopID:    topID,
		Userdata: userdata,
	}, nil
}
