package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"testing/iotest"
)

func TestReadFrame_RoundTrip(t *testing.T) {
	sizes := []int{0, 1, 3, 4, 5, 64, 1024, 70000}

	var stream bytes.Buffer
	want := make([][]byte, 0, len(sizes))
	for _, n := range sizes {
		payload := bytes.Repeat([]byte{byte(n % 251)}, n)
		want = append(want, payload)
		if err := WriteFrame(&stream, payload); err != nil {
			t.Fatalf("WriteFrame(%d bytes): %v", n, err)
		}
	}

	dec := NewDecoder(&stream, 0)
	for i, exp := range want {
		got, err := dec.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame #%d: %v", i, err)
		}
		if !bytes.Equal(got, exp) {
			t.Errorf("frame #%d: got %d bytes, want %d bytes byte-for-byte", i, len(got), len(exp))
		}
	}
}

func TestReadFrame_AssemblesFromSingleByteReads(t *testing.T) {
	var stream bytes.Buffer
	if err := WriteFrame(&stream, []byte("Ping")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := WriteFrame(&stream, []byte("Pong")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	dec := NewDecoder(iotest.OneByteReader(&stream), 0)
	for _, want := range []string{"Ping", "Pong"} {
		got, err := dec.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if string(got) != want {
			t.Errorf("ReadFrame = %q, want %q", got, want)
		}
	}
}

func TestReadFrame_LittleEndianHeader(t *testing.T) {
	// 4-byte payload: header must be 04 00 00 00, least significant first.
	frame := AppendFrame(nil, []byte("Ping"))
	wantHeader := []byte{0x04, 0x00, 0x00, 0x00}
	if !bytes.Equal(frame[:LengthPrefixSize], wantHeader) {
		t.Fatalf("header = %x, want %x", frame[:LengthPrefixSize], wantHeader)
	}

	// A big-endian reading of that header would be 67 MB; the decoder must
	// read it as 4.
	got, err := NewDecoder(bytes.NewReader(frame), 0).ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if string(got) != "Ping" {
		t.Errorf("ReadFrame = %q, want %q", got, "Ping")
	}
}

func TestReadFrame_EndOfStream(t *testing.T) {
	whole := AppendFrame(nil, []byte("Ping"))

	tests := []struct {
		name      string
		stream    []byte
		wantCause error
	}{
		{"empty stream", nil, io.EOF},
		{"one header byte", whole[:1], io.ErrUnexpectedEOF},
		{"three header bytes", whole[:3], io.ErrUnexpectedEOF},
		{"header only", whole[:LengthPrefixSize], io.ErrUnexpectedEOF},
		{"partial payload", whole[:LengthPrefixSize+2], io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder(bytes.NewReader(tt.stream), 0).ReadFrame()
			if err == nil {
				t.Fatal("ReadFrame succeeded on truncated stream")
			}

			var fe *FrameError
			if !errors.As(err, &fe) {
				t.Fatalf("error type = %T, want *FrameError", err)
			}
			if fe.Kind != FrameErrorShortRead {
				t.Errorf("kind = %d, want FrameErrorShortRead", fe.Kind)
			}
			if fe.Msg != "error reading bytes" {
				t.Errorf("msg = %q, want %q", fe.Msg, "error reading bytes")
			}
			if !IsProtocol(err) {
				t.Error("IsProtocol = false, want true")
			}
			if !errors.Is(err, tt.wantCause) {
				t.Errorf("cause = %v, want %v", fe.Err, tt.wantCause)
			}
		})
	}
}

func TestReadFrame_RejectsOversizedLength(t *testing.T) {
	// Header declares 9 bytes against a bound of 8; payload follows but
	// must not be consumed.
	stream := bytes.NewBuffer(nil)
	if err := WriteFrame(stream, bytes.Repeat([]byte{0xAB}, 9)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	dec := NewDecoder(stream, 8)
	_, err := dec.ReadFrame()
	if err == nil {
		t.Fatal("ReadFrame accepted oversized frame")
	}

	var fe *FrameError
	if !errors.As(err, &fe) || fe.Kind != FrameErrorTooLarge {
		t.Fatalf("error = %v, want FrameErrorTooLarge", err)
	}
	if !IsProtocol(err) {
		t.Error("IsProtocol = false, want true")
	}
	if stream.Len() != 9 {
		t.Errorf("decoder consumed payload bytes: %d left, want 9", stream.Len())
	}
}

func TestReadFrame_MaxZeroAppliesDefault(t *testing.T) {
	var header [LengthPrefixSize]byte
	binary.LittleEndian.PutUint32(header[:], DefaultMaxPayload+1)

	_, err := NewDecoder(bytes.NewReader(header[:]), 0).ReadFrame()
	var fe *FrameError
	if !errors.As(err, &fe) || fe.Kind != FrameErrorTooLarge {
		t.Fatalf("error = %v, want FrameErrorTooLarge at default bound", err)
	}
}

type countingWriter struct {
	writes int
	buf    bytes.Buffer
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.buf.Write(p)
}

func TestWriteFrame_SingleWrite(t *testing.T) {
	w := &countingWriter{}
	if err := WriteFrame(w, []byte("Ping")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if w.writes != 1 {
		t.Errorf("write calls = %d, want 1", w.writes)
	}
	if got := w.buf.Len(); got != LengthPrefixSize+4 {
		t.Errorf("bytes written = %d, want %d", got, LengthPrefixSize+4)
	}
}

type failingWriter struct{ err error }

func (w *failingWriter) Write([]byte) (int, error) { return 0, w.err }

func TestWriteFrame_WrapsWriteFailure(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := WriteFrame(&failingWriter{err: cause}, []byte("Ping"))
	if err == nil {
		t.Fatal("WriteFrame succeeded on failing writer")
	}
	if !IsIO(err) {
		t.Errorf("IsIO = false, want true (err = %v)", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("cause not preserved: %v", err)
	}
	if IsProtocol(err) {
		t.Error("IsProtocol = true for a transport failure")
	}
}

func TestFrameError_Messages(t *testing.T) {
	bare := &FrameError{Kind: FrameErrorTooLarge, Msg: "payload length 9 exceeds maximum 8"}
	if bare.Error() != "payload length 9 exceeds maximum 8" {
		t.Errorf("Error() = %q", bare.Error())
	}

	wrapped := &FrameError{Kind: FrameErrorShortRead, Msg: "error reading bytes", Err: io.ErrUnexpectedEOF}
	if wrapped.Error() != "error reading bytes: unexpected EOF" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
	if !errors.Is(wrapped, io.ErrUnexpectedEOF) {
		t.Error("Unwrap chain broken")
	}
}

func TestIsHelpers_NonFrameErrors(t *testing.T) {
	plain := errors.New("boom")
	if IsProtocol(plain) {
		t.Error("IsProtocol(plain) = true")
	}
	if IsIO(plain) {
		t.Error("IsIO(plain) = true")
	}
	if IsTimeout(plain) {
		t.Error("IsTimeout(plain) = true")
	}
}
