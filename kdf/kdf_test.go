package kdf

import "testing"

func TestDeriveDeterministic(t *testing.T) {
	k := DefaultPbkdf2([]byte("0123456789abcdef"))
	a, err := k.Derive([]byte("hunter2"), 48)
	if err != nil {
		t.Fatal(err)
	}
	b, err := k.Derive([]byte("hunter2"), 48)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 48 {
		t.Fatalf("len = %d, want 48", len(a))
	}
	if string(a) != string(b) {
		t.Fatal("derive is not deterministic")
	}
}

func TestDeriveStretchesBeyondDigestSize(t *testing.T) {
	k := KDF{Kind: KindPbkdf2, Pbkdf2: Pbkdf2Params{Digest: Sha256, Iterations: 1000, Salt: []byte("salt")}}
	out, err := k.Derive([]byte("pw"), 64) // sha256 digest size is 32, so this needs two chunks
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 64 {
		t.Fatalf("len = %d, want 64", len(out))
	}
}

func TestDeriveDifferentPasswordsDiffer(t *testing.T) {
	k := DefaultPbkdf2([]byte("0123456789abcdef"))
	a, _ := k.Derive([]byte("a"), 16)
	b, _ := k.Derive([]byte("b"), 16)
	if string(a) == string(b) {
		t.Fatal("expected different output for different passwords")
	}
}

func TestNoneKdfRejectsNonZeroLength(t *testing.T) {
	if _, err := None().Derive(nil, 16); err == nil {
		t.Fatal("expected error")
	}
}
