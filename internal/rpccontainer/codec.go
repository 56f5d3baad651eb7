package rpccontainer

import (
	"golang.org/x/xerrors"
)

// wireMessage is implemented by Request and Response: the only two
// message types this service ever exchanges.
type wireMessage interface {
	encode() ([]byte, error)
	decode([]byte) error
}

// vaultCodec implements google.golang.org/grpc/encoding.Codec, delegating
// to the codec package instead of protobuf. It registers itself under the
// name "proto" (see init in service.go) so that grpc's default content
// type picks it up without any per-call codec option, the same way a
// protobuf codec would be picked up automatically if this were a
// generated protobuf service.
type vaultCodec struct{}

func (vaultCodec) Name() string { return "proto" }

func (vaultCodec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, xerrors.Errorf("rpccontainer: %T is not a Request or Response", v)
	}
	return m.encode()
}

func (vaultCodec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(wireMessage)
	if !ok {
		return xerrors.Errorf("rpccontainer: %T is not a Request or Response", v)
	}
	return m.decode(data)
}
