// Package client implements the measuring side of the ping-pong protocol:
// one Client owns one connection and exposes the two operations a simulated
// client performs, Connect and PingPong. Every operation attempt emits
// exactly one Outcome through the wired Reporter, success or failure.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/fathomline/sounder/iox"
	"github.com/fathomline/sounder/log"
	"github.com/fathomline/sounder/types"
	"github.com/fathomline/sounder/wire"
)

// Config carries the dial target and the per-connection bounds.
type Config struct {
	Host string
	Port int

	// DialTimeout bounds connection establishment; 0 leaves the dial
	// unbounded (the context still applies).
	DialTimeout time.Duration
	// ReadTimeout and WriteTimeout arm per-frame deadlines; 0 disables.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// MaxPayload bounds accepted reply payloads; 0 applies the wire default.
	MaxPayload uint32
}

// Addr returns the host:port dial target.
func (c Config) Addr() string { return net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) }

// ErrNotConnected reports a ping-pong attempt before a successful Connect.
var ErrNotConnected = errors.New("not connected")

// Client is one simulated client's protocol handler. Not safe for
// concurrent operation calls: the owning driver runs Connect and PingPong
// sequentially. Close may be called from another goroutine to abort an
// in-flight operation.
type Client struct {
	cfg      Config
	id       string
	reporter types.Reporter
	log      *log.Logger
	conn     *wire.Conn
}

// New creates a Client identified by id, reporting outcomes to reporter.
// A nil reporter drops outcomes; a nil logger is not supported.
func New(cfg Config, id string, reporter types.Reporter, logger *log.Logger) *Client {
	return &Client{
		cfg:      cfg,
		id:       id,
		reporter: reporter,
		log:      logger.With(map[string]any{"client_id": id}),
	}
}

// ID returns the client identity used in outcomes and logs.
func (c *Client) ID() string { return c.id }

func (c *Client) report(o types.Outcome) {
	if c.reporter != nil {
		c.reporter.Record(o)
	}
}

// Connect establishes the connection, measuring elapsed time from attempt
// start to success or failure and emitting one "connect" Outcome. On
// failure the error is returned so the caller permanently retires this
// simulated client; there is no retry.
func (c *Client) Connect(ctx context.Context) error {
	addr := c.cfg.Addr()
	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}

	start := time.Now()
	nc, err := dialer.DialContext(ctx, "tcp", addr)
	elapsed := time.Since(start)

	if err != nil {
		c.report(types.Outcome{
			Op:       types.OpConnect,
			ClientID: c.id,
			At:       time.Now(),
			Elapsed:  elapsed,
			Err:      err.Error(),
		})
		c.log.Debug("connect failed", map[string]any{"target": addr, "error": err.Error()})
		return fmt.Errorf("connect %s: %w", addr, err)
	}

	c.conn = wire.NewConn(nc, wire.ConnConfig{
		MaxPayload:   c.cfg.MaxPayload,
		ReadTimeout:  c.cfg.ReadTimeout,
		WriteTimeout: c.cfg.WriteTimeout,
	})
	c.report(types.Outcome{
		Op:       types.OpConnect,
		ClientID: c.id,
		At:       time.Now(),
		Elapsed:  elapsed,
		OK:       true,
	})
	c.log.Debug("connected", map[string]any{"target": addr, "elapsed_ms": elapsed.Milliseconds()})
	return nil
}

// PingPong runs one request/reply cycle: write a "Ping" frame, read one
// frame, require the reply payload to be exactly "Pong". Elapsed time is
// measured from just before the write to completion, on failure too. Any
// failure closes the connection, emits a failed Outcome, and returns the
// error; the caller retires this simulated client.
func (c *Client) PingPong(ctx context.Context) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	length, err := c.exchange()
	elapsed := time.Since(start)

	if err != nil {
		iox.DiscardClose(c.conn)
		c.report(types.Outcome{
			Op:       types.OpPingPong,
			ClientID: c.id,
			At:       time.Now(),
			Elapsed:  elapsed,
			Err:      err.Error(),
		})
		c.log.Debug("ping-pong failed", map[string]any{"elapsed_ms": elapsed.Milliseconds(), "error": err.Error()})
		return err
	}

	c.report(types.Outcome{
		Op:       types.OpPingPong,
		ClientID: c.id,
		At:       time.Now(),
		Elapsed:  elapsed,
		OK:       true,
		Length:   length,
	})
	return nil
}

func (c *Client) exchange() (int, error) {
	if err := c.conn.WriteFrame([]byte(types.MessagePing)); err != nil {
		return 0, err
	}
	reply, err := c.conn.ReadFrame()
	if err != nil {
		return 0, err
	}
	if string(reply) != types.MessagePong {
		return 0, types.ErrUnrecognizedProtocol
	}
	return len(reply), nil
}

// Close closes the connection if one is established. Safe to call whether
// or not Connect succeeded, and again after a failed cycle already closed
// the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
