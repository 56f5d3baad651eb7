package pluginbackend

import (
	"io"
	"strings"
	"testing"

	"github.com/vaultfs/vault/internal/pluginproto"
	"github.com/vaultfs/vault/internal/vlog"
)

// peer simulates a plugin child process: it reads requests off one pipe
// and writes responses onto another, without ever spawning a real
// executable.
type peer struct {
	toConn   io.WriteCloser
	fromConn io.Reader
	reader   *pluginproto.Reader
	writer   *pluginproto.Writer
}

func newTestConnection(t *testing.T, handle func(pluginproto.Request) pluginproto.Response) *connection {
	t.Helper()

	reqR, reqW := io.Pipe()   // conn writes requests here, peer reads
	respR, respW := io.Pipe() // peer writes responses here, conn reads

	conn := newConnection(nil, reqW, respR, io.NopCloser(strings.NewReader("")), vlog.New(vlog.LevelError))

	p := &peer{
		toConn:   respW,
		fromConn: reqR,
		reader:   pluginproto.NewReader(reqR),
		writer:   pluginproto.NewWriter(respW),
	}

	go func() {
		for {
			var req pluginproto.Request
			if err := p.reader.Read(&req); err != nil {
				respW.Close()
				return
			}
			resp := handle(req)
			if err := p.writer.Write(resp); err != nil {
				return
			}
		}
	}()

	return conn
}

func TestCallRoundTrip(t *testing.T) {
	conn := newTestConnection(t, func(req pluginproto.Request) pluginproto.Response {
		if req.Op != pluginproto.OpBlockSize {
			t.Fatalf("unexpected op %v", req.Op)
		}
		return pluginproto.OkU32(4096)
	})
	defer conn.shutdown()

	resp, err := conn.call(pluginproto.Request{Op: pluginproto.OpBlockSize})
	if err != nil {
		t.Fatal(err)
	}
	if resp.U32 != 4096 {
		t.Fatalf("got %d, want 4096", resp.U32)
	}
}

func TestSplitLogTag(t *testing.T) {
	level, msg, ok := splitLogTag("nuts-log-warn: disk almost full")
	if !ok {
		t.Fatal("expected match")
	}
	if level != vlog.LevelWarn {
		t.Fatalf("level = %v", level)
	}
	if msg != "disk almost full" {
		t.Fatalf("msg = %q", msg)
	}

	if _, _, ok := splitLogTag("not a log line"); ok {
		t.Fatal("expected no match")
	}
}
