// Package pluginbackend drives a backend plugin as a child process: it
// speaks pluginproto over the child's stdin/stdout and forwards the
// child's stderr into the tool's own logger.
package pluginbackend

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vaultfs/vault/internal/pluginproto"
	"github.com/vaultfs/vault/internal/vlog"
)

// ErrChannelClosed is returned by a handshake call once the connection has
// been shut down, either deliberately or because the child process exited.
var ErrChannelClosed = errors.New("pluginbackend: connection closed")

// connection owns a plugin child process and the three goroutines that
// service it: one writes requests to its stdin, one reads responses from
// its stdout, and one drains and classifies its stderr.
type connection struct {
	cmd *exec.Cmd
	log *vlog.Logger

	mu     sync.Mutex
	reqCh  chan pluginproto.Request
	respCh chan pluginproto.Response
	errCh  chan error

	closeOnce sync.Once
	closed    chan struct{}
	group     *errgroup.Group
}

// start launches name with args as a child process and begins servicing
// its stdio. The caller owns the returned connection and must call
// shutdown when done.
func start(ctx context.Context, name string, args []string, log *vlog.Logger) (*connection, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return newConnection(cmd, stdin, stdout, stderr, log), nil
}

// newConnection wires up a connection's three servicing goroutines over
// the given stdio pipes. cmd may be nil in tests that drive the protocol
// over in-process pipes instead of a real child process.
func newConnection(cmd *exec.Cmd, stdin io.WriteCloser, stdout io.Reader, stderr io.ReadCloser, log *vlog.Logger) *connection {
	group, _ := errgroup.WithContext(context.Background())
	c := &connection{
		cmd:    cmd,
		log:    log,
		reqCh:  make(chan pluginproto.Request, 1),
		respCh: make(chan pluginproto.Response, 1),
		errCh:  make(chan error, 1),
		closed: make(chan struct{}),
		group:  group,
	}

	group.Go(func() error { return c.stdinLoop(stdin) })
	group.Go(func() error { return c.stdoutLoop(stdout) })
	group.Go(func() error { c.stderrLoop(stderr); return nil })

	return c
}

func (c *connection) stdinLoop(stdin io.WriteCloser) error {
	writer := pluginproto.NewWriter(stdin)
	for {
		select {
		case req, ok := <-c.reqCh:
			if !ok {
				return stdin.Close()
			}
			if err := writer.Write(req); err != nil {
				c.errCh <- err
				return err
			}
		case <-c.closed:
			return stdin.Close()
		}
	}
}

func (c *connection) stdoutLoop(stdout io.Reader) error {
	reader := pluginproto.NewReader(stdout)
	for {
		var resp pluginproto.Response
		err := reader.Read(&resp)
		if err == io.EOF || err == pluginproto.ErrConnectionReset {
			close(c.respCh)
			return nil
		}
		if err != nil {
			c.errCh <- err
			close(c.respCh)
			return err
		}
		c.respCh <- resp
	}
}

func (c *connection) stderrLoop(stderr io.ReadCloser) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		if level, msg, ok := splitLogTag(line); ok {
			c.log.Log(level, "[plugin] %s", msg)
		} else {
			c.log.Errorf("stderr: %s", line)
		}
	}
}

// splitLogTag recognizes the "nuts-log-<level>:" prefix a well-behaved
// plugin writes to stderr and splits it into a vlog.Level and the
// remaining message.
func splitLogTag(line string) (vlog.Level, string, bool) {
	const prefix = "nuts-log-"
	if !strings.HasPrefix(line, prefix) {
		return 0, "", false
	}
	rest := line[len(prefix):]
	idx := strings.IndexByte(rest, ':')
	if idx < 0 {
		return 0, "", false
	}
	level, ok := vlog.ParseLevel(rest[:idx])
	if !ok {
		return 0, "", false
	}
	return level, strings.TrimSpace(rest[idx+1:]), true
}

// call sends req and blocks for the matching response. It is safe for
// concurrent use: requests are serialized under mu, matching the
// single-outstanding-request nature of the plugin protocol.
func (c *connection) call(req pluginproto.Request) (pluginproto.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case c.reqCh <- req:
	case <-c.closed:
		return pluginproto.Response{}, ErrChannelClosed
	}

	select {
	case resp, ok := <-c.respCh:
		if !ok {
			select {
			case err := <-c.errCh:
				c.shutdown()
				return pluginproto.Response{}, err
			default:
			}
			c.shutdown()
			return pluginproto.Response{}, ErrChannelClosed
		}
		return resp, nil
	case <-c.closed:
		return pluginproto.Response{}, ErrChannelClosed
	}
}

// shutdown terminates the connection: it closes the closed channel so
// the stdin goroutine closes the child's stdin and leaves its loop, kills
// the child process (if any) and waits for it to exit, and joins all three
// servicing goroutines. Safe to call multiple times.
func (c *connection) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.cmd != nil {
			if c.cmd.Process != nil {
				c.cmd.Process.Kill()
			}
			c.cmd.Wait()
		}
		c.group.Wait()
	})
}
