package codec

import (
	"bytes"
	"testing"
)

func TestRoundTripPrimitives(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	if err := w.Uint8(0x01); err != nil {
		t.Fatal(err)
	}
	if err := w.Uint16(0x0203); err != nil {
		t.Fatal(err)
	}
	if err := w.Uint32(0x04050607); err != nil {
		t.Fatal(err)
	}
	if err := w.Uint64(0x08090A0B0C0D0E0F); err != nil {
		t.Fatal(err)
	}
	if err := w.Bool(true); err != nil {
		t.Fatal(err)
	}
	if err := w.Char('λ'); err != nil {
		t.Fatal(err)
	}
	if err := w.String("hello"); err != nil {
		t.Fatal(err)
	}

	r := NewReader(&buf)
	if v, err := r.Uint8(); err != nil || v != 0x01 {
		t.Fatalf("Uint8 = %v, %v", v, err)
	}
	if v, err := r.Uint16(); err != nil || v != 0x0203 {
		t.Fatalf("Uint16 = %v, %v", v, err)
	}
	if v, err := r.Uint32(); err != nil || v != 0x04050607 {
		t.Fatalf("Uint32 = %v, %v", v, err)
	}
	if v, err := r.Uint64(); err != nil || v != 0x08090A0B0C0D0E0F {
		t.Fatalf("Uint64 = %v, %v", v, err)
	}
	if v, err := r.Bool(); err != nil || !v {
		t.Fatalf("Bool = %v, %v", v, err)
	}
	if v, err := r.Char(); err != nil || v != 'λ' {
		t.Fatalf("Char = %v, %v", v, err)
	}
	if v, err := r.String(); err != nil || v != "hello" {
		t.Fatalf("String = %q, %v", v, err)
	}
}

func TestEofOnShortBuffer(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x01}))
	if _, err := r.Uint32(); err != ErrEof {
		t.Fatalf("expected ErrEof, got %v", err)
	}
}

func TestNoSpaceOnFullBuffer(t *testing.T) {
	buf := make([]byte, 2)
	w := NewWriter(NewBoundedWriter(buf))
	if err := w.Uint32(1); err != ErrNoSpace {
		t.Fatalf("expected ErrNoSpace, got %v", err)
	}
}

func TestInvalidString(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Bytes([]byte{0xff, 0xfe, 0xfd}); err != nil {
		t.Fatal(err)
	}
	r := NewReader(&buf)
	if _, err := r.String(); err != ErrInvalidString {
		t.Fatalf("expected ErrInvalidString, got %v", err)
	}
}

func TestInvalidVariantIndex(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.VariantIndex(5, 3); err != nil {
		t.Fatal(err)
	}
	r := NewReader(&buf)
	_, err := r.VariantIndex(3)
	var ive *InvalidVariantIndexError
	if err == nil {
		t.Fatal("expected error")
	}
	if !asInvalidVariantIndex(err, &ive) {
		t.Fatalf("expected InvalidVariantIndexError, got %v", err)
	}
	if ive.Index != 5 {
		t.Fatalf("Index = %d, want 5", ive.Index)
	}
}

func asInvalidVariantIndex(err error, target **InvalidVariantIndexError) bool {
	if e, ok := err.(*InvalidVariantIndexError); ok {
		*target = e
		return true
	}
	return false
}

func TestOptionRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	some := uint32(42)
	if err := WriteOption(w, &some, (*Writer).Uint32); err != nil {
		t.Fatal(err)
	}
	if err := WriteOption[uint32](w, nil, (*Writer).Uint32); err != nil {
		t.Fatal(err)
	}

	r := NewReader(&buf)
	got, err := ReadOption(r, (*Reader).Uint32)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != 42 {
		t.Fatalf("got = %v, want 42", got)
	}
	got2, err := ReadOption(r, (*Reader).Uint32)
	if err != nil {
		t.Fatal(err)
	}
	if got2 != nil {
		t.Fatalf("got2 = %v, want nil", got2)
	}
}

func TestVecRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	items := []uint32{1, 2, 3, 4}
	if err := WriteVec(w, items, (*Writer).Uint32); err != nil {
		t.Fatal(err)
	}

	r := NewReader(&buf)
	got, err := ReadVec(r, (*Reader).Uint32)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(items) {
		t.Fatalf("len = %d, want %d", len(got), len(items))
	}
	for i := range items {
		if got[i] != items[i] {
			t.Fatalf("got[%d] = %d, want %d", i, got[i], items[i])
		}
	}
}
