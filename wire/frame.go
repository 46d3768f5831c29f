// Package wire implements the framed channel: length-prefixed messages over
// a byte stream. A frame is a 4-byte little-endian payload length followed
// by exactly that many payload bytes. Framing is symmetric in both
// directions and shared by the network path and the outcome journal.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

const (
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
	// DefaultMaxPayload is the payload bound applied when a decoder is
	// built with max 0. The length field arrives from an untrusted peer;
	// the bound fails oversized frames before any allocation.
	DefaultMaxPayload = 1 << 20
)

// FrameErrorKind classifies frame read/write errors.
type FrameErrorKind int

const (
	// FrameErrorIO indicates a transport failure on an established
	// stream, including an expired read or write deadline.
	FrameErrorIO FrameErrorKind = iota
	// FrameErrorShortRead indicates the stream ended before a complete
	// frame was obtained. This includes a stream that ends exactly on a
	// frame boundary: a reader of this protocol always expects another
	// frame, so end-of-stream is a violation, not a clean stop.
	FrameErrorShortRead
	// FrameErrorTooLarge indicates a declared payload length above the
	// decoder's bound.
	FrameErrorTooLarge
)

// FrameError represents a frame read/write failure.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsProtocol reports whether err is a frame error in the protocol class:
// a premature end of stream or an oversized length field. Both terminate
// the connection that produced them.
func IsProtocol(err error) bool {
	var fe *FrameError
	if errors.As(err, &fe) {
		return fe.Kind == FrameErrorShortRead || fe.Kind == FrameErrorTooLarge
	}
	return false
}

// IsIO reports whether err is a frame error in the transport class.
func IsIO(err error) bool {
	var fe *FrameError
	return errors.As(err, &fe) && fe.Kind == FrameErrorIO
}

// IsTimeout reports whether err carries an expired I/O deadline. Timeouts
// classify as FrameErrorIO; this helper distinguishes them for diagnostics.
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Decoder reads length-prefixed frames from a stream.
type Decoder struct {
	reader     io.Reader
	maxPayload uint32
}

// NewDecoder creates a frame decoder reading from r. maxPayload bounds the
// accepted payload length; 0 applies DefaultMaxPayload.
func NewDecoder(r io.Reader, maxPayload uint32) *Decoder {
	if maxPayload == 0 {
		maxPayload = DefaultMaxPayload
	}
	return &Decoder{reader: r, maxPayload: maxPayload}
}

// ReadFrame reads a single frame and returns its payload. It blocks until
// the full frame is available, looping on partial reads.
//
// Errors:
//   - *FrameError with Kind=FrameErrorShortRead: the stream ended before
//     the required bytes were obtained. The wrapped cause is io.EOF only
//     when the stream ended exactly on a frame boundary (0 header bytes),
//     io.ErrUnexpectedEOF otherwise, so stream consumers that treat a
//     boundary as termination can tell the two apart.
//   - *FrameError with Kind=FrameErrorTooLarge: declared length exceeds
//     the decoder's bound. No payload bytes are consumed or allocated.
//   - *FrameError with Kind=FrameErrorIO: the underlying read failed.
func (d *Decoder) ReadFrame() ([]byte, error) {
	var header [LengthPrefixSize]byte
	if _, err := io.ReadFull(d.reader, header[:]); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return nil, &FrameError{Kind: FrameErrorShortRead, Msg: "error reading bytes", Err: io.EOF}
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, &FrameError{Kind: FrameErrorShortRead, Msg: "error reading bytes", Err: io.ErrUnexpectedEOF}
		default:
			return nil, &FrameError{Kind: FrameErrorIO, Msg: "error reading frame header", Err: err}
		}
	}

	length := binary.LittleEndian.Uint32(header[:])
	if length > d.maxPayload {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload length %d exceeds maximum %d", length, d.maxPayload),
		}
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(d.reader, payload); err != nil {
		// A stream that ends inside a payload is truncated even when the
		// payload read itself got 0 bytes: the header promised more.
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &FrameError{Kind: FrameErrorShortRead, Msg: "error reading bytes", Err: io.ErrUnexpectedEOF}
		}
		return nil, &FrameError{Kind: FrameErrorIO, Msg: "error reading frame payload", Err: err}
	}

	return payload, nil
}

// AppendFrame appends the framed encoding of payload to dst and returns the
// extended slice.
func AppendFrame(dst, payload []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...)
}

// WriteFrame writes one frame to w. Header and payload are assembled into
// a single buffer and issued as one Write call, so a frame's header and
// payload never interleave with another writer's bytes on the stream.
func WriteFrame(w io.Writer, payload []byte) error {
	buf := AppendFrame(make([]byte, 0, LengthPrefixSize+len(payload)), payload)
	if _, err := w.Write(buf); err != nil {
		return &FrameError{Kind: FrameErrorIO, Msg: "error writing frame", Err: err}
	}
	return nil
}
