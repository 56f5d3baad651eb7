package directorybackend

import (
	"path/filepath"
	"testing"

	"github.com/vaultfs/vault/backend"
)

func TestAquireReadWrite(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(filepath.Join(dir, "store"), 16)
	if err != nil {
		t.Fatal(err)
	}

	id, err := b.Aquire([]byte("hello"))
	if err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 16)
	n, err := b.Read(id, buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != 16 {
		t.Fatalf("n = %d, want 16", n)
	}
	if string(buf[:5]) != "hello" {
		t.Fatalf("got %q", buf[:5])
	}

	if _, err := b.Write(id, []byte("world!!!!!!!!!!!")); err != nil {
		t.Fatal(err)
	}
	b.Read(id, buf)
	if string(buf) != "world!!!!!!!!!!!" {
		t.Fatalf("got %q", buf)
	}
}

func TestReleaseThenReadFails(t *testing.T) {
	dir := t.TempDir()
	b, _ := Open(dir, 8)
	id, _ := b.Aquire(nil)
	if err := b.Release(id); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Read(id, make([]byte, 8)); err != backend.ErrNoSuchID {
		t.Fatalf("err = %v, want ErrNoSuchID", err)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b, _ := Open(dir, 8)

	if _, err := b.ReadHeader(make([]byte, 8)); err != backend.ErrNoHeader {
		t.Fatalf("err = %v, want ErrNoHeader", err)
	}
	if err := b.WriteHeader([]byte("hdr")); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 3)
	n, err := b.ReadHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "hdr" {
		t.Fatalf("got %q", buf[:n])
	}
}

func TestOpenTwiceFailsUntilFirstCloses(t *testing.T) {
	dir := t.TempDir()
	first, err := Open(dir, 8)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Open(dir, 8); err == nil {
		t.Fatal("expected second Open of the same directory to fail while the first is still open")
	}

	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := Open(dir, 8)
	if err != nil {
		t.Fatalf("Open after Close: %v", err)
	}
	second.Close()
}

func TestDeleteRemovesDirectory(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "store")
	b, _ := Open(target, 8)
	b.WriteHeader([]byte("hdr"))

	if err := b.Delete(); err != nil {
		t.Fatal(err)
	}
	if _, err := b.ReadHeader(make([]byte, 8)); err != backend.ErrNoHeader {
		t.Fatalf("err = %v, want ErrNoHeader after delete", err)
	}
}
