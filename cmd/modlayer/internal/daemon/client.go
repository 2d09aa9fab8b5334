package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"
)

// ErrNotConnected is returned when trying to use a disconnected client.
var ErrNotConnected = errors.New("not connected to daemon")

// ErrDaemonNotRunning is returned when the daemon is not running.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Client talks to a daemon. A single reader goroutine routes responses to
// their callers by ID and notifications to the event channel.
type Client struct {
	conn      net.Conn
	encoder   *json.Encoder
	encoderMu sync.Mutex
	idGen     IDGenerator

	pendingMu sync.Mutex
	pending   map[int64]chan *message
	err       error

	events    chan *Notification
	done      chan struct{}
	closeOnce sync.Once
}

// Connect connects to the daemon at the given socket path.
func Connect(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		if isConnectionRefused(err) {
			return nil, ErrDaemonNotRunning
		}
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	return newClient(conn), nil
}

func newClient(conn net.Conn) *Client {
	c := &Client{
		conn:    conn,
		encoder: json.NewEncoder(conn),
		pending: make(map[int64]chan *message),
		events:  make(chan *Notification, 100),
		done:    make(chan struct{}),
	}
	go c.readLoop(json.NewDecoder(bufio.NewReader(conn)))
	return c
}

// isConnectionRefused reports whether nobody is listening on the socket.
func isConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENOENT)
}

// Close closes the connection. Pending calls fail with ErrNotConnected.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	<-c.done
	return err
}

func (c *Client) readLoop(dec *json.Decoder) {
	defer func() {
		c.pendingMu.Lock()
		if c.err == nil {
			c.err = ErrNotConnected
		}
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.pendingMu.Unlock()
		close(c.events)
		close(c.done)
	}()

	for {
		var msg message
		if err := dec.Decode(&msg); err != nil {
			return
		}
		if msg.ID == nil {
			if msg.Method == "" {
				continue
			}
			select {
			case c.events <- &Notification{JSONRPC: msg.JSONRPC, Method: msg.Method, Params: msg.Params}:
			default:
				// Slow consumers lose events rather than stall responses.
			}
			continue
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[*msg.ID]
		delete(c.pending, *msg.ID)
		c.pendingMu.Unlock()
		if ok {
			ch <- &msg
		}
	}
}

// call sends a request and waits for its response.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	id := c.idGen.Next()
	req, err := NewRequest(id, method, params)
	if err != nil {
		return err
	}

	ch := make(chan *message, 1)
	c.pendingMu.Lock()
	if c.err != nil {
		c.pendingMu.Unlock()
		return c.err
	}
	c.pending[id] = ch
	c.pendingMu.Unlock()

	c.encoderMu.Lock()
	err = c.encoder.Encode(req)
	c.encoderMu.Unlock()
	if err != nil {
		c.forget(id)
		return fmt.Errorf("failed to send request: %w", err)
	}

	var msg *message
	select {
	case m, ok := <-ch:
		if !ok {
			return ErrNotConnected
		}
		msg = m
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	}

	if msg.Error != nil {
		return msg.Error
	}
	if result != nil && len(msg.Result) > 0 {
		if err := json.Unmarshal(msg.Result, result); err != nil {
			return fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}
	return nil
}

func (c *Client) forget(id int64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// Ping checks the daemon is alive.
func (c *Client) Ping(ctx context.Context) (*PingResult, error) {
	var result PingResult
	if err := c.call(ctx, MethodPing, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Shutdown asks the daemon to stop.
func (c *Client) Shutdown(ctx context.Context) (*ShutdownResult, error) {
	var result ShutdownResult
	if err := c.call(ctx, MethodShutdown, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SourceChanged reports a change to one source path.
func (c *Client) SourceChanged(ctx context.Context, params SourceChangedParams) error {
	return c.call(ctx, MethodSourceChanged, params, nil)
}

// ContentChanged reports changed content paths. No paths asks for a full
// rescan.
func (c *Client) ContentChanged(ctx context.Context, paths ...string) (*AckResult, error) {
	var result AckResult
	if err := c.call(ctx, MethodContentChanged, ContentChangedParams{Paths: paths}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// NeedsRebuild asks whether an output is stale.
func (c *Client) NeedsRebuild(ctx context.Context, output string) (bool, error) {
	var result NeedsRebuildResult
	if err := c.call(ctx, MethodNeedsRebuild, NeedsRebuildParams{Output: output}, &result); err != nil {
		return false, err
	}
	return result.NeedsRebuild, nil
}

// BuildRun runs a build pass.
func (c *Client) BuildRun(ctx context.Context, force bool) (*BuildRunResult, error) {
	var result BuildRunResult
	if err := c.call(ctx, MethodBuildRun, BuildRunParams{Force: force}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StatusGet returns the daemon's view of mounts and targets.
func (c *Client) StatusGet(ctx context.Context) (*StatusGetResult, error) {
	var result StatusGetResult
	if err := c.call(ctx, MethodStatusGet, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Resolve resolves a logical path on the daemon.
func (c *Client) Resolve(ctx context.Context, params ResolveParams) (*ResolveResult, error) {
	var result ResolveResult
	if err := c.call(ctx, MethodResolve, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Subscribe asks for notifications. The returned channel is closed when
// the connection ends.
func (c *Client) Subscribe(ctx context.Context) (<-chan *Notification, error) {
	if err := c.call(ctx, MethodEventsSubscribe, nil, nil); err != nil {
		return nil, err
	}
	return c.events, nil
}

// IsDaemonRunningAt checks if the daemon is running at the given paths.
func IsDaemonRunningAt(paths *Paths) bool {
	return GetStatus(paths).Running
}
