package cipher

import (
	"bytes"
	"testing"
)

func TestNoneRoundTrip(t *testing.T) {
	c := NewContext(None, 512)
	ct, err := c.Encrypt(nil, nil, 16, []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if len(ct) != 16 {
		t.Fatalf("len(ct) = %d, want 16", len(ct))
	}
	pt, err := c.Decrypt(nil, nil, ct)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pt[:5], []byte("hello")) {
		t.Fatalf("pt = %q", pt)
	}
	for _, b := range pt[5:] {
		if b != 0 {
			t.Fatalf("expected zero padding, got %v", pt)
		}
	}
}

func TestCtrRoundTrip(t *testing.T) {
	c := NewContext(Aes128Ctr, 512)
	key := bytes.Repeat([]byte{0x11}, 16)
	iv := bytes.Repeat([]byte{0x22}, 16)

	ct, err := c.Encrypt(key, iv, 16, []byte("secret content!!"))
	if err != nil {
		t.Fatal(err)
	}
	pt, err := c.Decrypt(key, iv, ct)
	if err != nil {
		t.Fatal(err)
	}
	if string(pt) != "secret content!!" {
		t.Fatalf("pt = %q", pt)
	}
}

func TestGcmTamperDetection(t *testing.T) {
	c := NewContext(Aes128Gcm, 512)
	key := bytes.Repeat([]byte{0x33}, 16)
	iv := bytes.Repeat([]byte{0x44}, 12)

	ct, err := c.Encrypt(key, iv, 6, []byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	ct[0] ^= 0xff

	if _, err := c.Decrypt(key, iv, ct); err != ErrNotTrustworthy {
		t.Fatalf("expected ErrNotTrustworthy, got %v", err)
	}
}

func TestGcmTagLenAppended(t *testing.T) {
	c := NewContext(Aes256Gcm, 512)
	key := bytes.Repeat([]byte{0x55}, 32)
	iv := bytes.Repeat([]byte{0x66}, 12)

	ct, err := c.Encrypt(key, iv, 10, []byte("0123456789"))
	if err != nil {
		t.Fatal(err)
	}
	if len(ct) != 10+Aes256Gcm.TagLen() {
		t.Fatalf("len(ct) = %d, want %d", len(ct), 10+Aes256Gcm.TagLen())
	}
}

func TestInvalidKeyLength(t *testing.T) {
	c := NewContext(Aes128Ctr, 512)
	if _, err := c.Encrypt([]byte("short"), make([]byte, 16), 16, []byte("x")); err != ErrInvalidKey {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}
