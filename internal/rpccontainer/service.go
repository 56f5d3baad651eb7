package rpccontainer

import (
	"context"

	"golang.org/x/xerrors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/vaultfs/vault/backend"
	"github.com/vaultfs/vault/container"
)

func init() {
	encoding.RegisterCodec(vaultCodec{})
}

// ServiceName is the gRPC service name this package registers its single
// method under.
const ServiceName = "vault.Container"

// serviceDesc is hand-written rather than protoc-generated: the wire
// format is this package's own codec, not protobuf, so there is no .proto
// file to generate it from.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*server)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Call",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				req := new(Request)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(*server).Call(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Call"}
				handler := func(ctx context.Context, req interface{}) (interface{}, error) {
					return srv.(*server).Call(ctx, req.(*Request))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
	},
}

// server adapts a single open container.Container to the Call RPC.
type server struct {
	c *container.Container
}

// Register wires c into grpcServer under ServiceName.
func Register(grpcServer *grpc.Server, c *container.Container) {
	grpcServer.RegisterService(&serviceDesc, &server{c: c})
}

func (s *server) Call(ctx context.Context, req *Request) (*Response, error) {
	switch req.Op {
	case OpRead:
		id := backend.IDFromBytes([]byte(req.ID))
		buf := make([]byte, s.c.NetSize())
		n, err := s.c.Read(id, buf)
		if err != nil {
			return &Response{Err: err.Error()}, nil
		}
		return &Response{Data: buf[:n]}, nil

	case OpWrite:
		id := backend.IDFromBytes([]byte(req.ID))
		if _, err := s.c.Write(id, req.Data); err != nil {
			return &Response{Err: err.Error()}, nil
		}
		return &Response{}, nil

	case OpAquire:
		id, err := s.c.Aquire()
		if err != nil {
			return &Response{Err: err.Error()}, nil
		}
		return &Response{ID: string(id.Bytes())}, nil

	case OpRelease:
		id := backend.IDFromBytes([]byte(req.ID))
		if err := s.c.Release(id); err != nil {
			return &Response{Err: err.Error()}, nil
		}
		return &Response{}, nil

	default:
		return nil, xerrors.Errorf("rpccontainer: unknown op %d", req.Op)
	}
}

// Client dials a container attached with Register/Serve and issues the
// same four operations over the wire.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to target (e.g. "unix:///tmp/vault.sock" or a TCP
// address).
func Dial(ctx context.Context, target string) (*Client, error) {
	conn, err := grpc.DialContext(ctx, target, grpc.WithInsecure(), grpc.WithBlock())
	if err != nil {
		return nil, xerrors.Errorf("rpccontainer: dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Close tears down the client's connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) call(ctx context.Context, req *Request) (*Response, error) {
	resp := new(Response)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/Call", req, resp); err != nil {
		return nil, xerrors.Errorf("rpccontainer: call: %w", err)
	}
	if resp.Err != "" {
		return nil, xerrors.New(resp.Err)
	}
	return resp, nil
}

// Read decrypts the block at id into buf.
func (c *Client) Read(ctx context.Context, id backend.ID, buf []byte) (int, error) {
	resp, err := c.call(ctx, &Request{Op: OpRead, ID: string(id.Bytes())})
	if err != nil {
		return 0, err
	}
	return copy(buf, resp.Data), nil
}

// Write encrypts buf into the block at id.
func (c *Client) Write(ctx context.Context, id backend.ID, buf []byte) error {
	_, err := c.call(ctx, &Request{Op: OpWrite, ID: string(id.Bytes()), Data: buf})
	return err
}

// Aquire allocates a fresh block on the remote container.
func (c *Client) Aquire(ctx context.Context) (backend.ID, error) {
	resp, err := c.call(ctx, &Request{Op: OpAquire})
	if err != nil {
		return "", err
	}
	return backend.IDFromBytes([]byte(resp.ID)), nil
}

// Release drops the block at id on the remote container.
func (c *Client) Release(ctx context.Context, id backend.ID) error {
	_, err := c.call(ctx, &Request{Op: OpRelease, ID: string(id.Bytes())})
	return err
}
