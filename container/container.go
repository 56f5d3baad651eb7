// Package container implements the encrypted, block-addressed container
// format: a header persisted at a backend's designated header slot wraps
// a randomly generated master secret (block key, IV base, top id,
// userdata), and every other block is read/written through a
// deterministic per-block IV derived from that IV base.
package container

import (
	"crypto/rand"

	"golang.org/x/xerrors"

	"github.com/vaultfs/vault/backend"
	"github.com/vaultfs/vault/cipher"
	"github.com/vaultfs/vault/kdf"
	"github.com/vaultfs/vault/secret"
)

// Info is the display summary returned by Container.Info.
type Info struct {
	Cipher      cipher.ID
	KDF         kdf.Kind
	Revision    uint32
	GrossSize   uint32
	NetSize     uint32
	BackendInfo backend.Info
}

// CreateOptions configures a new container.
type CreateOptions struct {
	Cipher    cipher.ID
	KDF       kdf.KDF
	Password  []byte
	Overwrite bool
}

// OpenOptions configures opening an existing container.
type OpenOptions struct {
	Password []byte
}

// Container is an open, encrypted block store layered over a
// backend.Backend.
type Container struct {
	be       backend.Backend
	cipherID cipher.ID
	revision uint32
	kdf      kdf.KDF
	secret   masterSecret
	gross    uint32
	ctx      *cipher.Context

	// wrapKey/wrapIV are the password-derived key material used to
	// re-wrap the master secret whenever top id or userdata change.
	// They are held only for the Container's lifetime, never persisted.
	wrapKey []byte
	wrapIV  []byte
}

// Create generates a random master secret, wraps it with a key derived
// from password, and writes the header to be's designated header slot.
func Create(be backend.Backend, opts CreateOptions) (*Container, error) {
	var existing [backend.HeaderMax]byte
	_, err := be.ReadHeader(existing[:])
	switch {
	case err == nil:
		if !opts.Overwrite {
			return nil, &HeaderError{Kind: Exists}
		}
	case xerrors.Is(err, backend.ErrNoHeader):
		// no existing header, proceed
	default:
		return nil, xerrors.Errorf("container: create: %w", err)
	}

	gross := be.BlockSize()

	key := secret.NewZeroed(opts.Cipher.KeyLen())
	iv := secret.NewZeroed(opts.Cipher.IVLen())
	if err := randomFill(key.Bytes()); err != nil {
		return nil, xerrors.Errorf("container: generate key: %w", err)
	}
	if err := randomFill(iv.Bytes()); err != nil {
		return nil, xerrors.Errorf("container: generate iv: %w", err)
	}

	wrapKey, wrapIV, err := deriveWrapKeyIV(opts.Cipher, opts.KDF, opts.Password)
	if err != nil {
		return nil, err
	}

	c := &Container{
		be:       be,
		cipherID: opts.Cipher,
		revision: CurrentRevision,
		kdf:      opts.KDF,
		secret:   masterSecret{Key: key, IVBase: iv},
		gross:    gross,
		ctx:      cipher.NewContext(opts.Cipher, int(gross)),
		wrapKey:  wrapKey,
		wrapIV:   wrapIV,
	}

	if err := c.rewriteHeader(); err != nil {
		return nil, err
	}
	return c, nil
}

// Open reads the header, derives the key from password, and unwraps the
// master secret.
func Open(be backend.Backend, opts OpenOptions) (*Container, error) {
	var buf [backend.HeaderMax]byte
	n, err := be.ReadHeader(buf[:])
	if err != nil {
		return nil, xerrors.Errorf("container: open: %w", err)
	}

	hdr, err := decodeHeader(buf[:n])
	if err != nil {
		return nil, err
	}

	wrapKey, wrapIV, err := deriveWrapKeyIV(hdr.Cipher, hdr.KDF, opts.Password)
	if err != nil {
		return nil, err
	}

	ms, err := unwrapMasterSecret(hdr.Revision, hdr.Cipher, wrapKey, wrapIV, hdr.WrappedSecret)
	if err != nil {
		return nil, err
	}

	gross := be.BlockSize()

	return &Container{
		be:       be,
		cipherID: hdr.Cipher,
		revision: hdr.Revision,
		kdf:      hdr.KDF,
		secret:   ms,
		gross:    gross,
		ctx:      cipher.NewContext(hdr.Cipher, int(gross)),
		wrapKey:  wrapKey,
		wrapIV:   wrapIV,
	}, nil
}

func randomFill(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	_, err := rand.Read(b)
	return err
}

// deriveWrapKeyIV derives KeyLen()+IVLen() bytes from password via k and
// splits them into the wrap key and wrap IV used to seal the master
// secret.
func deriveWrapKeyIV(cipherID cipher.ID, k kdf.KDF, password []byte) ([]byte, []byte, error) {
	need := cipherID.KeyLen() + cipherID.IVLen()
	derived, err := k.Derive(password, need)
	if err != nil {
		return nil, nil, xerrors.Errorf("container: derive key: %w", err)
	}
	return derived[:cipherID.KeyLen()], derived[cipherID.KeyLen():], nil
}

func unwrapMasterSecret(revision uint32, cipherID cipher.ID, wrapKey, wrapIV, wrapped []byte) (masterSecret, error) {
	ctx := cipher.NewContext(cipherID, len(wrapped))
	plaintext, err := ctx.Decrypt(wrapKey, wrapIV, wrapped)
	if err != nil {
		if xerrors.Is(err, cipher.ErrNotTrustworthy) {
			return masterSecret{}, &HeaderError{Kind: WrongPassword}
		}
		return masterSecret{}, xerrors.Errorf("container: unwrap master secret: %w", err)
	}

	ms, err := decodeMasterSecret(revision, cipherID.KeyLen(), cipherID.IVLen(), plaintext)
	if err != nil {
		return masterSecret{}, err
	}
	return ms, nil
}

// ivForBlock derives this block's IV deterministically from the
// container's IV base and the block's id: the id's bytes are XORed into
// the low-order bytes of the base, wrapping by the IV length, so every
// block gets a distinct IV without any per-block metadata being stored.
func ivForBlock(base []byte, id []byte) []byte {
	if len(base) == 0 {
		return nil
	}
	iv := make([]byte, len(base))
	copy(iv, base)
	for i, b := range id {
		iv[i%len(iv)] ^= b
	}
	return iv
}

// Info returns the container's cipher, KDF, revision and block sizes.
func (c *Container) Info() (Info, error) {
	bi, err := c.be.Info()
	if err != nil {
		return Info{}, xerrors.Errorf("container: info: %w", err)
	}
	return Info{
		Cipher:      c.cipherID,
		KDF:         c.kdf.Kind,
		Revision:    c.revision,
		GrossSize:   c.gross,
		NetSize:     c.netSize(),
		BackendInfo: bi,
	}, nil
}

func (c *Container) netSize() uint32 {
	return c.gross - uint32(c.cipherID.TagLen())
}

// NetSize returns the number of plaintext bytes a single block holds
// (gross size minus the cipher's authentication tag, if any).
func (c *Container) NetSize() uint32 { return c.netSize() }

// GrossSize returns the backend's block size.
func (c *Container) GrossSize() uint32 { return c.gross }

// TopID returns the service's persisted root pointer, or the null id if
// none has been set.
func (c *Container) TopID() backend.ID { return c.secret.TopID }

// SetTopID updates the root pointer and rewrites the header.
func (c *Container) SetTopID(id backend.ID) error {
	prev := c.secret.TopID
	c.secret.TopID = id
	if err := c.rewriteHeader(); err != nil {
		c.secret.TopID = prev
		return err
	}
	return nil
}

// Userdata returns the small service-metadata slot.
func (c *Container) Userdata() []byte { return c.secret.Userdata }

// SetUserdata replaces the service-metadata slot and rewrites the header.
// It fails with OverwriteUserdata if the resulting header would not fit
// in one gross block.
func (c *Container) SetUserdata(data []byte) error {
	prev := c.secret.Userdata
	c.secret.Userdata = data
	if err := c.rewriteHeader(); err != nil {
		c.secret.Userdata = prev
		return err
	}
	return nil
}

// rewriteHeader re-encodes the master secret, re-wraps it with the
// container's cached wrap key/iv, and writes the resulting header to the
// backend's header slot.
func (c *Container) rewriteHeader() error {
	plaintext, err := encodeMasterSecret(c.revision, c.secret)
	if err != nil {
		return xerrors.Errorf("container: encode master secret: %w", err)
	}

	wrapCtx := cipher.NewContext(c.cipherID, len(plaintext))
	wrapped, err := wrapCtx.Encrypt(c.wrapKey, c.wrapIV, len(plaintext), plaintext)
	if err != nil {
		return xerrors.Errorf("container: wrap master secret: %w", err)
	}

	hdr := header{
		Revision:      c.revision,
		Cipher:        c.cipherID,
		KDF:           c.kdf,
		WrappedSecret: wrapped,
	}
	raw, err := encodeHeader(hdr)
	if err != nil {
		return xerrors.Errorf("container: encode header: %w", err)
	}
	if len(raw) > int(c.gross) {
		return &HeaderError{Kind: OverwriteUserdata}
	}
	padded := make([]byte, c.gross)
	copy(padded, raw)

	return c.be.WriteHeader(padded)
}

// Read decrypts the block at id into buf, returning the number of net
// bytes copied.
func (c *Container) Read(id backend.ID, buf []byte) (int, error) {
	gross := make([]byte, c.gross)
	n, err := c.be.Read(id, gross)
	if err != nil {
		return 0, xerrors.Errorf("container: read %s: %w", id, err)
	}
	iv := ivForBlock(c.secret.IVBase.Bytes(), id.Bytes())
	plain, err := c.ctx.Decrypt(c.secret.Key.Bytes(), iv, gross[:n])
	if err != nil {
		return 0, xerrors.Errorf("container: decrypt %s: %w", id, err)
	}
	return copy(buf, plain), nil
}

// Write zero-pads buf to net size, encrypts it, and writes the resulting
// gross bytes through the backend.
func (c *Container) Write(id backend.ID, buf []byte) (int, error) {
	net := c.netSize()
	iv := ivForBlock(c.secret.IVBase.Bytes(), id.Bytes())
	gross, err := c.ctx.Encrypt(c.secret.Key.Bytes(), iv, int(net), buf)
	if err != nil {
		return 0, xerrors.Errorf("container: encrypt %s: %w", id, err)
	}
	if _, err := c.be.Write(id, gross); err != nil {
		return 0, xerrors.Errorf("container: write %s: %w", id, err)
	}
	n := len(buf)
	if uint32(n) > net {
		n = int(net)
	}
	return n, nil
}

// Aquire reserves a fresh, zero-initialized block.
func (c *Container) Aquire() (backend.ID, error) {
	id, err := c.be.Aquire(make([]byte, c.gross))
	if err != nil {
		return "", xerrors.Errorf("container: aquire: %w", err)
	}
	// The block's IV depends on its id, so the encrypted zero block can
	// only be written once the backend has assigned one.
	if _, err := c.Write(id, nil); err != nil {
		return "", xerrors.Errorf("container: aquire: %w", err)
	}
	return id, nil
}

// ModifyOptions changes a container's password and/or KDF.
type ModifyOptions struct {
	KDF         kdf.KDF
	NewPassword []byte
}

// Modify re-wraps the master secret under a new password and/or KDF
// without touching any other block. The new header is built and encoded
// in full before any write happens, and the single write_header call
// either fully succeeds or leaves the on-disk header untouched: a failed
// Modify never leaves the container half-migrated.
func (c *Container) Modify(opts ModifyOptions) error {
	newWrapKey, newWrapIV, err := deriveWrapKeyIV(c.cipherID, opts.KDF, opts.NewPassword)
	if err != nil {
		return err
	}

	prevKDF, prevWrapKey, prevWrapIV := c.kdf, c.wrapKey, c.wrapIV
	c.kdf, c.wrapKey, c.wrapIV = opts.KDF, newWrapKey, newWrapIV

	if err := c.rewriteHeader(); err != nil {
		c.kdf, c.wrapKey, c.wrapIV = prevKDF, prevWrapKey, prevWrapIV
		return xerrors.Errorf("container: modify: %w", err)
	}
	return nil
}

// Release drops the block at id.
func (c *Container) Release(id backend.ID) error {
	if err := c.be.Release(id); err != nil {
		return xerrors.Errorf("container: release %s: %w", id, err)
	}
	return nil
}
