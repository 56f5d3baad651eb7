package membackend

import "testing"

func TestAquireReadWrite(t *testing.T) {
	b := New(16)

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
	for _, c := range buf[5:] {
		if c != 0 {
			t.Fatal("expected zero padding")
		}
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
	b := New(8)
	id, _ := b.Aquire(nil)
	if err := b.Release(id); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Read(id, make([]byte, 8)); err == nil {
		t.Fatal("expected error after release")
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	b := New(8)
	if _, err := b.ReadHeader(make([]byte, 8)); err == nil {
		t.Fatal("expected ErrNoHeader before any write")
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

func TestIdsDoNotCollideAfterRelease(t *testing.T) {
	b := New(4)
	id1, _ := b.Aquire(nil)
	b.Release(id1)
	id2, _ := b.Aquire(nil)
	if id1 == id2 {
		t.Fatal("expected ids to differ after release")
	}
}
