// Package journal persists outcome events as length-prefixed msgpack
// records, using the same framing the protocol puts on the wire. A journal
// file is the durable record of one run and can be re-read later for
// aggregate statistics or exported to object storage.
package journal

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/fathomline/sounder/log"
	"github.com/fathomline/sounder/types"
	"github.com/fathomline/sounder/wire"
)

// SchemaVersion identifies the record layout. Bump on breaking changes.
const SchemaVersion = 1

// Record is the storage form of one outcome event.
type Record struct {
	SchemaVersion int     `msgpack:"schema_version"`
	RunID         string  `msgpack:"run_id"`
	Seq           int64   `msgpack:"seq"`
	ClientID      string  `msgpack:"client_id"`
	Op            string  `msgpack:"op"`
	OK            bool    `msgpack:"ok"`
	ElapsedMs     float64 `msgpack:"elapsed_ms"`
	Length        int     `msgpack:"length"`
	Error         string  `msgpack:"error,omitempty"`
	Ts            string  `msgpack:"ts"`
}

// Writer appends outcome records to a file. Appends are serialized, so a
// single Writer can be shared by every client in a run.
type Writer struct {
	mu      sync.Mutex
	f       *os.File
	path    string
	runID   string
	seq     int64
	dropped atomic.Int64
	log     *log.Logger
}

// NewWriter creates (or truncates) the journal file at path.
func NewWriter(path, runID string, logger *log.Logger) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	return &Writer{f: f, path: path, runID: runID, log: logger}, nil
}

// Path returns the journal file location.
func (w *Writer) Path() string { return w.path }

// Append encodes one outcome and writes it as the next record.
func (w *Writer) Append(o types.Outcome) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return errors.New("journal: writer is closed")
	}

	w.seq++
	rec := Record{
		SchemaVersion: SchemaVersion,
		RunID:         w.runID,
		Seq:           w.seq,
		ClientID:      o.ClientID,
		Op:            string(o.Op),
		OK:            o.OK,
		ElapsedMs:     float64(o.Elapsed) / float64(time.Millisecond),
		Length:        o.Length,
		Error:         o.Err,
		Ts:            o.At.UTC().Format(time.RFC3339Nano),
	}
	payload, err := msgpack.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("journal: encode record %d: %w", w.seq, err)
	}
	if err := wire.WriteFrame(w.f, payload); err != nil {
		return fmt.Errorf("journal: append record %d: %w", w.seq, err)
	}
	return nil
}

// Record implements types.Reporter. Append failures are logged and counted
// rather than propagated, so a full disk degrades the journal without
// aborting the run it is observing.
func (w *Writer) Record(o types.Outcome) {
	if err := w.Append(o); err != nil {
		w.dropped.Add(1)
		w.log.Warn("journal append failed", map[string]any{"error": err.Error()})
	}
}

// Dropped reports how many outcomes could not be journaled.
func (w *Writer) Dropped() int64 { return w.dropped.Load() }

// Close flushes and closes the journal file. Further appends fail.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	f := w.f
	w.f = nil
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("journal: sync %s: %w", w.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("journal: close %s: %w", w.path, err)
	}
	return nil
}

// Verify Writer can stand in wherever outcomes are reported.
var _ types.Reporter = (*Writer)(nil)
