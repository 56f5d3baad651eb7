// Package rpccontainer exposes Read/Write/Aquire/Release over a single
// container.Container on a gRPC service, for same-host IPC use cases where
// a second process wants to share one open container rather than opening
// its own backend connection. It is additive surface over the container
// package, not a replacement for the backend plugin transport.
package rpccontainer

import (
	"bytes"

	"golang.org/x/xerrors"

	"github.com/vaultfs/vault/codec"
)

// Op tags which container operation a Request performs.
type Op uint32

const (
	OpRead Op = iota
	OpWrite
	OpAquire
	OpRelease
	opCount
)

// Request is the single request message every rpccontainer RPC exchanges;
// which fields are meaningful depends on Op, mirroring the tagged-union
// shape the plugin transport uses for its own Request/Response.
type Request struct {
	Op   Op
	ID   string
	Data []byte
}

// Response is the single response message every rpccontainer RPC
// exchanges. Err is empty on success.
type Response struct {
	Err  string
	ID   string
	Data []byte
}

func (req *Request) encode() ([]byte, error) {
	var buf bytes.Buffer
	w := codec.NewWriter(&buf)
	if err := w.VariantIndex(uint32(req.Op), uint32(opCount)); err != nil {
		return nil, err
	}
	if err := w.String(req.ID); err != nil {
		return nil, err
	}
	if err := w.Bytes(req.Data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (req *Request) decode(data []byte) error {
	r := codec.NewReader(bytes.NewReader(data))
	op, err := r.VariantIndex(uint32(opCount))
	if err != nil {
		return xerrors.Errorf("rpccontainer: decode request op: %w", err)
	}
	id, err := r.String()
	if err != nil {
		return xerrors.Errorf("rpccontainer: decode request id: %w", err)
	}
	payload, err := r.Bytes()
	if err != nil {
		return xerrors.Errorf("rpccontainer: decode request data: %w", err)
	}
	req.Op, req.ID, req.Data = Op(op), id, payload
	return nil
}

func (resp *Response) encode() ([]byte, error) {
	var buf bytes.Buffer
	w := codec.NewWriter(&buf)
	if err := w.String(resp.Err); err != nil {
		return nil, err
	}
	if err := w.String(resp.ID); err != nil {
		return nil, err
	}
	if err := w.Bytes(resp.Data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (resp *Response) decode(data []byte) error {
	r := codec.NewReader(bytes.NewReader(data))
	errStr, err := r.String()
	if err != nil {
		return xerrors.Errorf("rpccontainer: decode response err: %w", err)
	}
	id, err := r.String()
	if err != nil {
		return xerrors.Errorf("rpccontainer: decode response id: %w", err)
	}
	payload, err := r.Bytes()
	if err != nil {
		return xerrors.Errorf("rpccontainer: decode response data: %w", err)
	}
	resp.Err, resp.ID, resp.Data = errStr, id, payload
	return nil
}
