// Package server implements the single-client TCP control server. Each
// request carries one actuator command; each reply carries the current
// sensor snapshot.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"aisim/internal/config"
	"aisim/internal/logging"
	"aisim/internal/mailbox"
	"aisim/internal/protocol"
)

// ErrServerClosed is returned by Serve when called after Shutdown.
var ErrServerClosed = errors.New("server: closed")

// SnapshotSource provides the sensor readings sent back to the client.
type SnapshotSource interface {
	Snapshot() protocol.Snapshot
}

// Server accepts one client at a time and serves its requests serially.
// Exported fields must be set before Serve.
type Server struct {
	Addr         string
	Mailbox      *mailbox.Mailbox
	Source       SnapshotSource
	Decoder      protocol.Decoder
	ReadBuffer   int
	ReplyMode    string
	ReplyTimeout time.Duration
	Logger       *slog.Logger

	mu       sync.Mutex
	ln       net.Listener
	conn     net.Conn
	closing  bool
	ready    chan struct{}
	readyOne sync.Once
}

// New creates a server with the default buffer sizes and reply mode.
func New(addr string, mb *mailbox.Mailbox, src SnapshotSource) *Server {
	return &Server{
		Addr:         addr,
		Mailbox:      mb,
		Source:       src,
		Decoder:      protocol.Decoder{MaxNameLen: config.DefaultMaxNameLen},
		ReadBuffer:   config.DefaultReadBuffer,
		ReplyMode:    config.ReplyImmediate,
		ReplyTimeout: config.DefaultReplyTimeout,
		ready:        make(chan struct{}),
	}
}

// NewFromConfig creates a server from the harness configuration.
func NewFromConfig(cfg *config.Config, mb *mailbox.Mailbox, src SnapshotSource) *Server {
	s := New(cfg.ListenAddr, mb, src)
	s.Decoder = protocol.Decoder{MaxNameLen: cfg.MaxNameLen}
	s.ReadBuffer = cfg.ReadBuffer
	s.ReplyMode = cfg.ReplyMode
	s.ReplyTimeout = cfg.ReplyTimeout
	return s
}

// Ready is closed once the listening socket is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// ListenAddr returns the bound address, or nil before the socket is created.
func (s *Server) ListenAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// listenConfig sets SO_REUSEADDR and SO_REUSEPORT before bind so a restarted
// harness can rebind the port while old connections linger in TIME_WAIT.
func listenConfig() net.ListenConfig {
	return net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var serr error
			err := c.Control(func(fd uintptr) {
				if serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); serr != nil {
					return
				}
				serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return serr
		},
	}
}

// Serve binds the listening socket and serves clients one at a time until
// Shutdown is called or ctx is done, in which case it returns nil. Socket
// setup and accept failures are returned without retry.
func (s *Server) Serve(ctx context.Context) error {
	log := s.Logger
	if log == nil {
		log = logging.FromContext(ctx)
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return ErrServerClosed
	}
	if s.ln != nil {
		s.mu.Unlock()
		return errors.New("server: already serving")
	}
	lc := listenConfig()
	ln, err := lc.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen %s: %w", s.Addr, err)
	}
	s.ln = ln
	s.mu.Unlock()
	s.readyOne.Do(func() { close(s.ready) })
	log.Info("control server listening", "addr", ln.Addr().String())

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.Shutdown()
		case <-stop:
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosing() {
				log.Info("control server stopped")
				return nil
			}
			log.Error("accept failed", "err", err)
			ln.Close()
			return fmt.Errorf("accept: %w", err)
		}
		if !s.track(conn) {
			conn.Close()
			log.Info("control server stopped")
			return nil
		}
		s.serveConn(ctx, conn, log)
		s.untrack(conn)
	}
}

// serveConn handles requests from one client until it disconnects, an I/O
// error occurs or the server shuts down.
func (s *Server) serveConn(ctx context.Context, conn net.Conn, log *slog.Logger) {
	defer conn.Close()
	log = log.With("session", uuid.NewString(), "remote", conn.RemoteAddr().String())
	log.Info("client connected")

	size := s.ReadBuffer
	if size < 2 {
		size = config.DefaultReadBuffer
	}
	// One byte is reserved for the terminator of a fixed-size request buffer.
	buf := make([]byte, size-1)
	var out []byte
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			out = s.handle(ctx, buf[:n], out[:0], log)
			if _, werr := conn.Write(out); werr != nil {
				s.logConnErr(log, "write failed", werr)
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Info("client disconnected")
			} else {
				s.logConnErr(log, "read failed", err)
			}
			return
		}
		if n == 0 {
			log.Info("client disconnected")
			return
		}
	}
}

// handle decodes one request, hands the command to the stepping loop and
// renders the reply into dst.
func (s *Server) handle(ctx context.Context, req, dst []byte, log *slog.Logger) []byte {
	cmd, err := s.Decoder.Decode(req)
	if err != nil {
		log.Warn("malformed command", "err", err)
	} else {
		seq, overwritten := s.Mailbox.Put(cmd)
		log.Debug("command queued", "seq", seq, "actuator", cmd.Name, "value", cmd.Value, "overwritten", overwritten)
		if s.ReplyMode == config.ReplyAfterApply {
			s.awaitApply(ctx, seq, log)
		}
	}
	return protocol.AppendSnapshot(dst, s.Source.Snapshot())
}

func (s *Server) awaitApply(ctx context.Context, seq uint64, log *slog.Logger) {
	timeout := s.ReplyTimeout
	if timeout <= 0 {
		timeout = config.DefaultReplyTimeout
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.Mailbox.WaitTaken(wctx, seq); err != nil && !errors.Is(err, mailbox.ErrTerminated) {
		log.Warn("replying before command was applied", "seq", seq, "err", err)
	}
}

func (s *Server) logConnErr(log *slog.Logger, msg string, err error) {
	if s.isClosing() {
		log.Debug(msg, "err", err)
		return
	}
	log.Warn(msg, "err", err)
}

// Shutdown sets the termination flag and unblocks a pending Accept or Read by
// closing the listener and the active connection. It is safe to call more
// than once and from any goroutine.
func (s *Server) Shutdown() {
	s.Mailbox.Terminate()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closing = true
	if s.ln != nil {
		s.ln.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing || s.Mailbox.Terminated()
}

// track records conn as the active client unless shutdown has begun.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conn = conn
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == conn {
		s.conn = nil
	}
}
