package archive

import (
	"bytes"
	"io"
	"testing"

	"github.com/vaultfs/vault/cipher"
	"github.com/vaultfs/vault/container"
	"github.com/vaultfs/vault/internal/membackend"
	"github.com/vaultfs/vault/kdf"
)

func newTestArchive(t *testing.T, net uint32) *Archive {
	t.Helper()
	be := membackend.New(net)
	c, err := container.Create(be, container.CreateOptions{Cipher: cipher.None, KDF: kdf.None()})
	if err != nil {
		t.Fatal(err)
	}
	a, err := Open(c)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestFileAppendAndReadRoundTrip(t *testing.T) {
	a := newTestArchive(t, 128)

	fw, err := a.AppendFile("greeting.txt").Build()
	if err != nil {
		t.Fatal(err)
	}

	content := bytes.Repeat([]byte("hello world "), 20) // spans two 128-byte blocks
	if _, err := fw.WriteAll(content); err != nil {
		t.Fatal(err)
	}
	if fw.Size() != uint64(len(content)) {
		t.Fatalf("size = %d, want %d", fw.Size(), len(content))
	}

	entry, err := a.First()
	if err != nil {
		t.Fatal(err)
	}
	if entry == nil {
		t.Fatal("expected an entry")
	}
	if entry.Name() != "greeting.txt" || entry.Kind() != KindFile {
		t.Fatalf("entry = %+v", entry)
	}
	if entry.Size() != uint64(len(content)) {
		t.Fatalf("entry size = %d, want %d", entry.Size(), len(content))
	}

	r, err := entry.Open()
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("got %q, want %q", got, content)
	}

	next, err := entry.Next()
	if err != nil {
		t.Fatal(err)
	}
	if next != nil {
		t.Fatalf("expected end of archive, got %+v", next)
	}
}

func TestFileAppendAcrossMultipleWriteAllCalls(t *testing.T) {
	a := newTestArchive(t, 128)

	fw, err := a.AppendFile("split.bin").Build()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.WriteAll([]byte("0123456789")); err != nil {
		t.Fatal(err)
	}
	if _, err := fw.WriteAll([]byte("abcdefghij")); err != nil {
		t.Fatal(err)
	}

	entry, err := a.First()
	if err != nil {
		t.Fatal(err)
	}
	r, _ := entry.Open()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "0123456789abcdefghij" {
		t.Fatalf("got %q", got)
	}
}

func TestCompressedFileRoundTrip(t *testing.T) {
	a := newTestArchive(t, 128)

	fw, err := a.AppendFile("log.txt").WithCompression().Build()
	if err != nil {
		t.Fatal(err)
	}

	content := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 50)
	if _, err := fw.WriteAll(content[:len(content)/2]); err != nil {
		t.Fatal(err)
	}
	if _, err := fw.WriteAll(content[len(content)/2:]); err != nil {
		t.Fatal(err)
	}
	if err := fw.Close(); err != nil {
		t.Fatal(err)
	}
	if fw.Size() != uint64(len(content)) {
		t.Fatalf("logical size = %d, want %d", fw.Size(), len(content))
	}

	entry, err := a.First()
	if err != nil {
		t.Fatal(err)
	}
	if !entry.Compressed() {
		t.Fatal("expected entry to be marked compressed")
	}
	if entry.Size() != uint64(len(content)) {
		t.Fatalf("entry size = %d, want %d", entry.Size(), len(content))
	}

	r, err := entry.Open()
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("got %d bytes, want %d", len(got), len(content))
	}

	end, err := entry.Next()
	if err != nil {
		t.Fatal(err)
	}
	if end != nil {
		t.Fatalf("expected end of archive, got %+v", end)
	}
}

func TestDirectoryAndSymlinkEntries(t *testing.T) {
	a := newTestArchive(t, 256)

	if _, err := a.AppendDirectory("bin").Build(); err != nil {
		t.Fatal(err)
	}
	if _, err := a.AppendSymlink("link", "bin/target").Build(); err != nil {
		t.Fatal(err)
	}

	dir, err := a.First()
	if err != nil {
		t.Fatal(err)
	}
	if dir.Kind() != KindDirectory || dir.Name() != "bin" {
		t.Fatalf("dir = %+v", dir)
	}

	link, err := dir.Next()
	if err != nil {
		t.Fatal(err)
	}
	if link == nil || link.Kind() != KindSymlink || link.Target() != "bin/target" {
		t.Fatalf("link = %+v", link)
	}

	end, err := link.Next()
	if err != nil {
		t.Fatal(err)
	}
	if end != nil {
		t.Fatalf("expected end of archive, got %+v", end)
	}
}

func TestLookupFindsEntry(t *testing.T) {
	a := newTestArchive(t, 256)

	for _, name := range []string{"a", "b", "c"} {
		if _, err := a.AppendDirectory(name).Build(); err != nil {
			t.Fatal(err)
		}
	}

	e, err := a.Lookup("b")
	if err != nil {
		t.Fatal(err)
	}
	if e == nil || e.Name() != "b" {
		t.Fatalf("lookup(b) = %+v", e)
	}

	missing, err := a.Lookup("nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatalf("expected no match, got %+v", missing)
	}
}

func TestTreeGrowsIntoIndirectPage(t *testing.T) {
	a := newTestArchive(t, 256)
	a.tree.idSize = 4
	a.tree.leafCap = 2 // force overflow into the indirect page quickly

	var ids []string
	for i := 0; i < 6; i++ {
		e, err := a.AppendDirectory("d").Build()
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		ids = append(ids, string(e.id))
	}

	if a.tree.indirect.IsNull() {
		t.Fatal("expected an indirect page to have been allocated")
	}

	for i := uint64(0); i < a.tree.count; i++ {
		if _, err := a.tree.get(i); err != nil {
			t.Fatalf("get(%d): %v", i, err)
		}
	}
}
