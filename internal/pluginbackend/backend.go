package pluginbackend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vaultfs/vault/backend"
	"github.com/vaultfs/vault/internal/pluginproto"
	"github.com/vaultfs/vault/internal/vlog"
)

// probeTimeout bounds how long Launch waits for a child process to
// answer its first plugin-info handshake before concluding it is not a
// well-behaved plugin.
const probeTimeout = 2 * time.Second

// ErrInvalidResponse is returned when a plugin answers a request with a
// Response whose Kind/shape doesn't match what that request demands.
var ErrInvalidResponse = errors.New("pluginbackend: invalid response from plugin")

// Info describes the plugin a Backend is talking to, as reported by its
// plugin-info handshake.
type Info struct {
	Name     string
	Version  string
	Revision uint32
}

// Backend is a backend.Backend implemented by a child process speaking
// pluginproto over its stdio. Its block size is only known once Open or
// Create has run the plugin's own open/create handshake, so Launch alone
// yields a Backend that is not yet usable for Read/Write/Aquire.
type Backend struct {
	conn  *connection
	info  Info
	bsize uint32
}

// Launch starts the plugin binary at path with args, probes it with a
// plugin-info handshake (bounded by probeTimeout), and returns a connected
// Backend. The child is killed if the probe does not answer in time.
func Launch(ctx context.Context, path string, args []string, log *vlog.Logger) (*Backend, error) {
	conn, err := start(ctx, path, args, log)
	if err != nil {
		return nil, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	infoCh := make(chan result, 1)
	go func() {
		resp, err := conn.call(pluginproto.Request{Op: pluginproto.OpPluginInfo})
		infoCh <- result{resp, err}
	}()

	select {
	case r := <-infoCh:
		if r.err != nil {
			conn.shutdown()
			return nil, r.err
		}
		if r.resp.Code != pluginproto.CodeOk || r.resp.Kind != pluginproto.KindMap {
			conn.shutdown()
			return nil, ErrInvalidResponse
		}
		info, err := parsePluginInfo(r.resp.Map)
		if err != nil {
			conn.shutdown()
			return nil, err
		}
		return &Backend{conn: conn, info: info}, nil
	case <-probeCtx.Done():
		conn.shutdown()
		return nil, fmt.Errorf("pluginbackend: plugin did not answer plugin-info within %s", probeTimeout)
	}
}

type result struct {
	resp pluginproto.Response
	err  error
}

func parsePluginInfo(m map[string]string) (Info, error) {
	name, ok := m["name"]
	if !ok {
		return Info{}, ErrInvalidResponse
	}
	version, ok := m["version"]
	if !ok {
		return Info{}, ErrInvalidResponse
	}
	var revision uint32
	if s, ok := m["revision"]; ok {
		if _, err := fmt.Sscanf(s, "%d", &revision); err != nil {
			return Info{}, ErrInvalidResponse
		}
	}
	return Info{Name: name, Version: version, Revision: revision}, nil
}

// PluginInfo returns the plugin's self-reported identity.
func (b *Backend) PluginInfo() Info { return b.info }

// OpenExisting runs the plugin's open handshake against previously
// persisted settings bytes (as read back from a container header) and
// caches the backend's block size.
func (b *Backend) OpenExisting(settings []byte) error {
	resp, err := b.conn.call(pluginproto.Request{Op: pluginproto.OpOpen, Settings: settings})
	if err := asErr(resp, err); err != nil {
		return err
	}
	return b.cacheBlockSize()
}

// CreateNew runs the plugin's create handshake, handing it the container
// header bytes to persist and whether an existing instance may be
// overwritten, and caches the backend's block size.
func (b *Backend) CreateNew(header []byte, overwrite bool) error {
	resp, err := b.conn.call(pluginproto.Request{Op: pluginproto.OpCreate, Header: header, Overwrite: overwrite})
	if err := asErr(resp, err); err != nil {
		return err
	}
	return b.cacheBlockSize()
}

func (b *Backend) cacheBlockSize() error {
	resp, err := b.conn.call(pluginproto.Request{Op: pluginproto.OpBlockSize})
	if err := asErr(resp, err); err != nil {
		return err
	}
	if resp.Kind != pluginproto.KindU32 {
		return ErrInvalidResponse
	}
	b.bsize = resp.U32
	return nil
}

// Quit asks the plugin to shut down cleanly and releases the connection.
func (b *Backend) Quit() error {
	_, err := b.conn.call(pluginproto.Request{Op: pluginproto.OpQuit})
	b.conn.shutdown()
	return err
}

func asErr(resp pluginproto.Response, err error) error {
	if err != nil {
		return err
	}
	return resp.Err()
}

// BlockSize implements backend.Backend. It returns the value cached by
// OpenExisting/CreateNew; callers must run one of those before relying on
// it.
func (b *Backend) BlockSize() uint32 { return b.bsize }

// Info implements backend.Backend.
func (b *Backend) Info() (backend.Info, error) {
	resp, err := b.conn.call(pluginproto.Request{Op: pluginproto.OpInfo})
	if err := asErr(resp, err); err != nil {
		return nil, err
	}
	if resp.Kind != pluginproto.KindMap {
		return nil, ErrInvalidResponse
	}
	info := make(backend.Info, len(resp.Map))
	for k, v := range resp.Map {
		info[k] = v
	}
	return info, nil
}

// Aquire implements backend.Backend.
func (b *Backend) Aquire(initial []byte) (backend.ID, error) {
	resp, err := b.conn.call(pluginproto.Request{Op: pluginproto.OpAquire, Initial: initial})
	if err := asErr(resp, err); err != nil {
		return "", err
	}
	if resp.Kind != pluginproto.KindBytes {
		return "", ErrInvalidResponse
	}
	return backend.IDFromBytes(resp.Bytes), nil
}

// Release implements backend.Backend.
func (b *Backend) Release(id backend.ID) error {
	resp, err := b.conn.call(pluginproto.Request{Op: pluginproto.OpRelease, IDBytes: id.Bytes()})
	return asErr(resp, err)
}

// Read implements backend.Backend.
func (b *Backend) Read(id backend.ID, buf []byte) (int, error) {
	resp, err := b.conn.call(pluginproto.Request{Op: pluginproto.OpRead, IDBytes: id.Bytes()})
	if err := asErr(resp, err); err != nil {
		return 0, err
	}
	if resp.Kind != pluginproto.KindBytes {
		return 0, ErrInvalidResponse
	}
	return copy(buf, resp.Bytes), nil
}

// Write implements backend.Backend.
func (b *Backend) Write(id backend.ID, buf []byte) (int, error) {
	resp, err := b.conn.call(pluginproto.Request{Op: pluginproto.OpWrite, IDBytes: id.Bytes(), Data: buf})
	if err := asErr(resp, err); err != nil {
		return 0, err
	}
	if resp.Kind != pluginproto.KindUsize {
		return 0, ErrInvalidResponse
	}
	return int(resp.Usize), nil
}

// ReadHeader implements backend.Backend.
func (b *Backend) ReadHeader(buf []byte) (int, error) {
	resp, err := b.conn.call(pluginproto.Request{Op: pluginproto.OpReadHeader})
	if err != nil {
		return 0, err
	}
	if resp.Code == pluginproto.CodeErr && resp.ErrCode == pluginproto.ErrNotApplicable {
		return 0, backend.ErrNoHeader
	}
	if err := asErr(resp, nil); err != nil {
		return 0, err
	}
	if resp.Kind != pluginproto.KindBytes {
		return 0, ErrInvalidResponse
	}
	return copy(buf, resp.Bytes), nil
}

// WriteHeader implements backend.Backend.
func (b *Backend) WriteHeader(buf []byte) error {
	resp, err := b.conn.call(pluginproto.Request{Op: pluginproto.OpWriteHeader, Header: buf})
	return asErr(resp, err)
}

// Delete implements backend.Backend.
func (b *Backend) Delete() error {
	resp, err := b.conn.call(pluginproto.Request{Op: pluginproto.OpDelete})
	return asErr(resp, err)
}

// ParseID implements backend.IDParser by asking the plugin to convert a
// string representation into id bytes.
func (b *Backend) ParseID(s string) (backend.ID, error) {
	resp, err := b.conn.call(pluginproto.Request{Op: pluginproto.OpIDToBytes, IDString: s})
	if err := asErr(resp, err); err != nil {
		return "", err
	}
	if resp.Kind != pluginproto.KindBytes {
		return "", ErrInvalidResponse
	}
	return backend.IDFromBytes(resp.Bytes), nil
}

// idString asks the plugin to render id's bytes in its own lexical form.
// If the plugin fails, its error is returned; there is no hex fallback.
func (b *Backend) idString(id backend.ID) (string, error) {
	resp, err := b.conn.call(pluginproto.Request{Op: pluginproto.OpIDToString, IDBytes: id.Bytes()})
	if err := asErr(resp, err); err != nil {
		return "", err
	}
	if resp.Kind != pluginproto.KindString {
		return "", ErrInvalidResponse
	}
	return resp.String, nil
}
