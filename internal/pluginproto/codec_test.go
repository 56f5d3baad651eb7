package pluginproto

import (
	"bytes"
	"testing"
)

func TestRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	req := Request{Op: OpWrite, IDBytes: []byte{1, 2, 3}, Data: []byte("payload")}
	if err := w.Write(req); err != nil {
		t.Fatal(err)
	}

	r := NewReader(&buf)
	var got Request
	if err := r.Read(&got); err != nil {
		t.Fatal(err)
	}
	if got.Op != OpWrite || string(got.Data) != "payload" {
		t.Fatalf("got %+v", got)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	resp := OkMap(map[string]string{"name": "dir", "version": "1.0"})
	if err := w.Write(resp); err != nil {
		t.Fatal(err)
	}

	r := NewReader(&buf)
	var got Response
	if err := r.Read(&got); err != nil {
		t.Fatal(err)
	}
	if got.Code != CodeOk || got.Map["name"] != "dir" {
		t.Fatalf("got %+v", got)
	}
}

func TestErrResponseImplementsError(t *testing.T) {
	resp := ErrResponse(ErrInvalidID, "bad id")
	if err := resp.Err(); err == nil || err.Error() != "plugin: bad id" {
		t.Fatalf("got %v", err)
	}
	if OkVoid().Err() != nil {
		t.Fatal("expected nil error for ok response")
	}
}

func TestReadDetectsConnectionReset(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Write(OkVoid())

	full := buf.Bytes()
	truncated := bytes.NewReader(full[:len(full)-1])

	r := NewReader(truncated)
	var got Response
	if err := r.Read(&got); err != ErrConnectionReset {
		t.Fatalf("err = %v, want ErrConnectionReset", err)
	}
}
