// Package server implements the ping-pong server: an accept loop that
// gives every connection its own worker goroutine running the protocol
// loop until the peer disconnects, violates the protocol, or the server
// shuts down. Workers share nothing beyond the connection registry and
// the synchronized counters kept for observability.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fathomline/sounder/iox"
	"github.com/fathomline/sounder/log"
	"github.com/fathomline/sounder/observability"
	"github.com/fathomline/sounder/types"
	"github.com/fathomline/sounder/wire"
)

// Config carries the bind address and per-connection bounds.
type Config struct {
	Host string
	Port int

	// MaxPayload bounds accepted request payloads; 0 applies the wire
	// default. "Ping" needs 4 bytes; anything larger is tolerance for
	// measurement payload experiments, not protocol surface.
	MaxPayload uint32
	// ReadTimeout and WriteTimeout arm per-frame deadlines; 0 disables,
	// letting a silent peer hold its worker indefinitely.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Addr returns the host:port bind target.
func (c Config) Addr() string { return net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) }

// Server owns the listener and the connection registry.
type Server struct {
	cfg Config
	log *log.Logger

	ln       net.Listener
	accepted atomic.Uint64

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// New creates an unstarted Server.
func New(cfg Config, logger *log.Logger) *Server {
	return &Server{
		cfg:   cfg,
		log:   logger,
		conns: make(map[net.Conn]struct{}),
	}
}

// Listen binds the configured address. Separate from Serve so callers can
// learn the bound address (port 0 in tests) before serving.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr(), err)
	}
	s.ln = ln
	s.log.Info("listening", map[string]any{"addr": ln.Addr().String()})
	return nil
}

// Addr returns the bound address, nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections until ctx is done or the listener fails,
// spawning one worker goroutine per connection. Returns nil on a
// context-driven shutdown.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	// Close the listener when the context is done so Accept returns.
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}
		s.accepted.Add(1)
		go s.handle(conn)
	}
}

// ListenAndServe binds and serves in one call.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	return s.Serve(ctx)
}

// Active returns the number of connections currently served.
func (s *Server) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Accepted returns the number of connections accepted since start.
func (s *Server) Accepted() uint64 { return s.accepted.Load() }

// Close shuts the listener and every live connection, unblocking all
// worker reads and writes. Safe to call more than once.
func (s *Server) Close() {
	if s.ln != nil {
		iox.DiscardClose(s.ln)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		iox.DiscardClose(conn)
	}
}

func (s *Server) register(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	observability.IncServerConnection()
}

func (s *Server) unregister(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	observability.DecServerConnection()
}

// handle is the connection worker: it owns conn end-to-end and runs the
// protocol loop until termination. All exit paths converge on close.
func (s *Server) handle(conn net.Conn) {
	s.register(conn)
	defer s.unregister(conn)
	defer iox.DiscardClose(conn)

	remote := conn.RemoteAddr().String()
	clog := s.log.With(map[string]any{"remote": remote})
	clog.Debug("connection accepted", nil)

	fc := wire.NewConn(conn, wire.ConnConfig{
		MaxPayload:   s.cfg.MaxPayload,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	})

	for {
		payload, err := fc.ReadFrame()
		if err != nil {
			// A stream that ends exactly on a frame boundary is the
			// peer hanging up between cycles, not a broken frame.
			if errors.Is(err, io.EOF) {
				clog.Debug("connection closed by peer", nil)
			} else {
				clog.Warn("read failed", map[string]any{"error": err.Error()})
				observability.RecordServerFrame(observability.FrameResultReadError)
			}
			return
		}

		if string(payload) != types.MessagePing {
			// Terminate without replying.
			clog.Warn("unrecognized protocol", map[string]any{
				"error":       types.ErrUnrecognizedProtocol.Error(),
				"payload_len": len(payload),
			})
			observability.RecordServerFrame(observability.FrameResultUnrecognized)
			return
		}

		if err := fc.WriteFrame([]byte(types.MessagePong)); err != nil {
			clog.Warn("write failed", map[string]any{"error": err.Error()})
			observability.RecordServerFrame(observability.FrameResultWriteError)
			return
		}
		observability.RecordServerFrame(observability.FrameResultPong)
	}
}
