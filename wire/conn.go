package wire

import (
	"fmt"
	"net"
	"time"
)

// ConnConfig bounds a framed connection. Zero values select the defaults:
// DefaultMaxPayload for MaxPayload, no deadline for the timeouts.
type ConnConfig struct {
	// MaxPayload bounds the payload length accepted from the peer and the
	// payload length this side will send.
	MaxPayload uint32
	// ReadTimeout arms a deadline on each frame read when > 0. An expired
	// deadline surfaces as a FrameErrorIO frame error whose cause reports
	// Timeout() true.
	ReadTimeout time.Duration
	// WriteTimeout arms a deadline on each frame write when > 0.
	WriteTimeout time.Duration
}

// Conn is a framed channel over one net.Conn. A Conn is owned by a single
// connection worker: reads and writes alternate in one goroutine, so no
// locking is applied. Destroying the Conn (Close) is safe from any
// goroutine and unblocks an in-flight read or write.
type Conn struct {
	nc           net.Conn
	dec          *Decoder
	maxPayload   uint32
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewConn wraps nc in a framed channel.
func NewConn(nc net.Conn, cfg ConnConfig) *Conn {
	max := cfg.MaxPayload
	if max == 0 {
		max = DefaultMaxPayload
	}
	return &Conn{
		nc:           nc,
		dec:          NewDecoder(nc, max),
		maxPayload:   max,
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
	}
}

// ReadFrame reads one frame from the peer, arming the read deadline first
// when configured. Error classification follows Decoder.ReadFrame.
func (c *Conn) ReadFrame() ([]byte, error) {
	if c.readTimeout > 0 {
		if err := c.nc.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return nil, &FrameError{Kind: FrameErrorIO, Msg: "error arming read deadline", Err: err}
		}
	}
	return c.dec.ReadFrame()
}

// WriteFrame writes one frame to the peer, arming the write deadline first
// when configured. Payloads above the configured bound are rejected before
// touching the stream.
func (c *Conn) WriteFrame(payload []byte) error {
	if exceedsMax(len(payload), c.maxPayload) {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload length %d exceeds maximum %d", len(payload), c.maxPayload),
		}
	}
	if c.writeTimeout > 0 {
		if err := c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return &FrameError{Kind: FrameErrorIO, Msg: "error arming write deadline", Err: err}
		}
	}
	return WriteFrame(c.nc, payload)
}

// exceedsMax reports whether a payload of n bytes exceeds max. Lengths are
// widened to uint64 before comparing: on 64-bit platforms a payload past
// 4 GiB must be rejected here, not wrapped by the header's uint32 encoding.
func exceedsMax(n int, max uint32) bool {
	return uint64(n) > uint64(max)
}

// Close closes the underlying connection. Closing unblocks any in-flight
// read or write on the Conn.
func (c *Conn) Close() error { return c.nc.Close() }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// LocalAddr returns the local address.
func (c *Conn) LocalAddr() net.Addr { return c.nc.LocalAddr() }
