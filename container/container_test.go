package container

import (
	"bytes"
	"testing"

	"golang.org/x/xerrors"

	"github.com/vaultfs/vault/cipher"
	"github.com/vaultfs/vault/internal/membackend"
	"github.com/vaultfs/vault/kdf"
)

func TestCreateOpenReadWriteRoundTrip(t *testing.T) {
	be := membackend.New(512)

	c, err := Create(be, CreateOptions{
		Cipher:   cipher.Aes128Gcm,
		KDF:      kdf.DefaultPbkdf2([]byte("some-salt-bytes-")),
		Password: []byte("hunter2"),
	})
	if err != nil {
		t.Fatal(err)
	}

	id, err := c.Aquire()
	if err != nil {
		t.Fatal(err)
	}

	want := []byte("the quick brown fox")
	if _, err := c.Write(id, want); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(be, OpenOptions{Password: []byte("hunter2")})
	if err != nil {
		t.Fatal(err)
	}

	got := make([]byte, 512)
	n, err := reopened.Read(id, got)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got[:len(want)], want) {
		t.Fatalf("got %q, want %q", got[:n], want)
	}
}

func TestOpenWithWrongPassword(t *testing.T) {
	be := membackend.New(512)

	_, err := Create(be, CreateOptions{
		Cipher:   cipher.Aes128Gcm,
		KDF:      kdf.DefaultPbkdf2([]byte("some-salt-bytes-")),
		Password: []byte("correct"),
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = Open(be, OpenOptions{Password: []byte("wrong")})
	var herr *HeaderError
	if !xerrors.As(err, &herr) || herr.Kind != WrongPassword {
		t.Fatalf("got %v, want WrongPassword", err)
	}
}

func TestCreateExistsWithoutOverwrite(t *testing.T) {
	be := membackend.New(512)
	opts := CreateOptions{
		Cipher:   cipher.Aes128Gcm,
		KDF:      kdf.DefaultPbkdf2([]byte("some-salt-bytes-")),
		Password: []byte("hunter2"),
	}

	if _, err := Create(be, opts); err != nil {
		t.Fatal(err)
	}

	_, err := Create(be, opts)
	var herr *HeaderError
	if !xerrors.As(err, &herr) || herr.Kind != Exists {
		t.Fatalf("got %v, want Exists", err)
	}

	opts.Overwrite = true
	if _, err := Create(be, opts); err != nil {
		t.Fatalf("overwrite create failed: %v", err)
	}
}

func TestTopIDAndUserdataPersistAcrossReopen(t *testing.T) {
	be := membackend.New(512)

	c, err := Create(be, CreateOptions{
		Cipher:   cipher.Aes256Ctr,
		KDF:      kdf.DefaultPbkdf2([]byte("another-salt-xx-")),
		Password: []byte("swordfish"),
	})
	if err != nil {
		t.Fatal(err)
	}

	id, err := c.Aquire()
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SetTopID(id); err != nil {
		t.Fatal(err)
	}
	if err := c.SetUserdata([]byte("service metadata")); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(be, OpenOptions{Password: []byte("swordfish")})
	if err != nil {
		t.Fatal(err)
	}
	if reopened.TopID() != id {
		t.Fatalf("top id = %v, want %v", reopened.TopID(), id)
	}
	if !bytes.Equal(reopened.Userdata(), []byte("service metadata")) {
		t.Fatalf("userdata = %q", reopened.Userdata())
	}
}

func TestNoneCipherRoundTrip(t *testing.T) {
	be := membackend.New(256)

	c, err := Create(be, CreateOptions{
		Cipher: cipher.None,
		KDF:    kdf.None(),
	})
	if err != nil {
		t.Fatal(err)
	}

	id, err := c.Aquire()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Write(id, []byte("plain bytes")); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 256)
	if _, err := c.Read(id, buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf[:11], []byte("plain bytes")) {
		t.Fatalf("got %q", buf[:11])
	}
}

func TestModifyChangesPasswordWithoutTouchingData(t *testing.T) {
	be := membackend.New(512)

	c, err := Create(be, CreateOptions{
		Cipher:   cipher.Aes128Gcm,
		KDF:      kdf.DefaultPbkdf2([]byte("some-salt-bytes-")),
		Password: []byte("old-password"),
	})
	if err != nil {
		t.Fatal(err)
	}

	id, err := c.Aquire()
	if err != nil {
		t.Fatal(err)
	}
	want := []byte("data untouched by modify")
	if _, err := c.Write(id, want); err != nil {
		t.Fatal(err)
	}

	if err := c.Modify(ModifyOptions{
		KDF:         kdf.DefaultPbkdf2([]byte("different-salt--")),
		NewPassword: []byte("new-password"),
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(be, OpenOptions{Password: []byte("old-password")}); err == nil {
		t.Fatal("expected the old password to no longer open the container")
	}

	reopened, err := Open(be, OpenOptions{Password: []byte("new-password")})
	if err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 512)
	if _, err := reopened.Read(id, got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got[:len(want)], want) {
		t.Fatalf("got %q, want %q", got[:len(want)], want)
	}
}

func TestReleaseThenReadFails(t *testing.T) {
	be := membackend.New(256)

	c, err := Create(be, CreateOptions{Cipher: cipher.None, KDF: kdf.None()})
	if err != nil {
		t.Fatal(err)
	}

	id, err := c.Aquire()
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Release(id); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 256)
	if _, err := c.Read(id, buf); err == nil {
		t.Fatal("expected error reading released block")
	}
}
