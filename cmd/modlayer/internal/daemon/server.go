package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/albertocavalcante/modlayer/internal/log"
)

// Server accepts host connections on a Unix socket.
type Server struct {
	paths     *Paths
	listener  net.Listener
	handler   *Handler
	startTime time.Time
	version   string

	clients   map[*ClientConn]struct{}
	clientsMu sync.RWMutex

	shutdown    chan struct{}
	shutdownMu  sync.Mutex
	requested   bool
	isShutdown  bool
	wg          sync.WaitGroup
	shutdownErr error
}

// ClientConn is one connected host.
type ClientConn struct {
	conn       net.Conn
	encoder    *json.Encoder
	decoder    *json.Decoder
	encoderMu  sync.Mutex
	subscribed atomic.Bool
	closed     atomic.Bool
}

// ServerConfig configures the server.
type ServerConfig struct {
	Paths   *Paths
	Version string
	Handler *Handler
}

// NewServer creates a server. The handler is bound to it.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		paths:     cfg.Paths,
		version:   cfg.Version,
		handler:   cfg.Handler,
		clients:   make(map[*ClientConn]struct{}),
		shutdown:  make(chan struct{}),
		startTime: time.Now(),
	}
	if s.handler == nil {
		s.handler = NewHandler(nil)
	}
	s.handler.server = s
	return s
}

// Listen creates the socket and writes the PID file. Leftovers of a
// crashed daemon are removed first.
func (s *Server) Listen() error {
	logger := log.Component("daemon")

	if _, err := CleanupStale(s.paths); err != nil {
		logger.Warnw("failed to clean up stale files", "error", err)
	}
	if err := s.paths.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create daemon directory: %w", err)
	}

	listener, err := net.Listen("unix", s.paths.Socket)
	if err != nil {
		return fmt.Errorf("failed to create socket: %w", err)
	}
	if err := os.Chmod(s.paths.Socket, 0o600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}
	if err := s.paths.WritePID(); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	s.listener = listener

	logger.Infow("daemon listening", "pid", os.Getpid(), "socket", s.paths.Socket, "version", s.version)
	return nil
}

// Serve accepts connections until ctx is cancelled or a shutdown is
// requested, then shuts down. Listen must have succeeded.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}
	logger := log.Component("daemon")

	s.wg.Add(1)
	go s.acceptLoop(ctx)

	select {
	case <-ctx.Done():
		logger.Infow("context cancelled, shutting down")
	case <-s.shutdown:
		logger.Infow("shutdown requested via RPC")
	}
	return s.Shutdown()
}

// Start is Listen followed by Serve.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Done is closed once a shutdown was requested over RPC.
func (s *Server) Done() <-chan struct{} {
	return s.shutdown
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()
	logger := log.Component("daemon")

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closing() || errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Warnw("accept error", "error", err)
			continue
		}

		client := &ClientConn{
			conn:    conn,
			encoder: json.NewEncoder(conn),
			decoder: json.NewDecoder(bufio.NewReader(conn)),
		}
		s.clientsMu.Lock()
		s.clients[client] = struct{}{}
		n := len(s.clients)
		s.clientsMu.Unlock()
		logger.Debugw("client connected", "client_count", n)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleClient(ctx, client)
		}()
	}
}

func (s *Server) closing() bool {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	return s.isShutdown
}

// handleClient serves requests from one connection in order.
func (s *Server) handleClient(ctx context.Context, client *ClientConn) {
	logger := log.Component("daemon")
	defer func() {
		client.Close()
		s.clientsMu.Lock()
		delete(s.clients, client)
		n := len(s.clients)
		s.clientsMu.Unlock()
		logger.Debugw("client disconnected", "client_count", n)
	}()

	for {
		var req Request
		if err := client.decoder.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || client.closed.Load() {
				return
			}
			var syntaxErr *json.SyntaxError
			if !errors.As(err, &syntaxErr) {
				// The stream is unusable after a read error.
				logger.Debugw("read failed", "error", err)
				return
			}
			_ = client.Send(NewErrorResponse(nil, ErrCodeParseError, "Parse error", nil))
			return
		}

		if req.JSONRPC != JSONRPCVersion {
			if err := client.Send(NewErrorResponse(req.ID, ErrCodeInvalidRequest, "Invalid Request: unsupported JSON-RPC version", nil)); err != nil {
				return
			}
			continue
		}

		if resp := s.handler.HandleRequest(ctx, client, &req); resp != nil {
			if err := client.Send(resp); err != nil {
				logger.Debugw("failed to send response", "error", err)
				return
			}
		}
	}
}

// Shutdown stops accepting, tells subscribers, closes every connection and
// removes the socket and PID file. It is safe to call more than once.
func (s *Server) Shutdown() error {
	s.shutdownMu.Lock()
	if s.isShutdown {
		s.shutdownMu.Unlock()
		return s.shutdownErr
	}
	s.isShutdown = true
	s.shutdownMu.Unlock()

	logger := log.Component("daemon")
	logger.Infow("shutting down daemon")

	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Warnw("failed to close listener", "error", err)
		}
	}

	if notif, err := NewNotification(MethodDaemonEvent, DaemonEventParams{
		Type:      "shutdown",
		Message:   "daemon is shutting down",
		Timestamp: timestamp(),
	}); err == nil {
		s.Broadcast(notif)
	}

	s.clientsMu.Lock()
	for client := range s.clients {
		client.Close()
	}
	s.clientsMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warnw("shutdown timed out waiting for clients")
	}

	err := s.paths.Cleanup()
	if err != nil {
		logger.Warnw("failed to clean up daemon files", "error", err)
	}
	s.shutdownMu.Lock()
	s.shutdownErr = err
	s.shutdownMu.Unlock()
	logger.Infow("daemon stopped")
	return err
}

// RequestShutdown asks Serve to return.
func (s *Server) RequestShutdown() {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	if !s.requested {
		s.requested = true
		close(s.shutdown)
	}
}

// Broadcast sends a notification to every subscribed client.
func (s *Server) Broadcast(notif *Notification) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for client := range s.clients {
		if client.subscribed.Load() {
			_ = client.Send(notif)
		}
	}
}

// Info describes the running server.
func (s *Server) Info() *DaemonInfo {
	s.clientsMu.RLock()
	n := len(s.clients)
	s.clientsMu.RUnlock()
	return &DaemonInfo{
		PID:         os.Getpid(),
		SocketPath:  s.paths.Socket,
		StartTime:   s.startTime,
		Version:     s.version,
		ClientCount: n,
	}
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Send writes a message to the client. Safe for concurrent use.
func (c *ClientConn) Send(msg any) error {
	if c.closed.Load() {
		return net.ErrClosed
	}
	c.encoderMu.Lock()
	defer c.encoderMu.Unlock()
	return c.encoder.Encode(msg)
}

// Close closes the connection.
func (c *ClientConn) Close() {
	if c.closed.CompareAndSwap(false, true) {
		_ = c.conn.Close()
	}
}

// Subscribe enables notifications for this client.
func (c *ClientConn) Subscribe() {
	c.subscribed.Store(true)
}
