package journal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/fathomline/sounder/iox"
	"github.com/fathomline/sounder/wire"
)

// ReadFile loads every record from a journal file. A truncated trailing
// record is reported as an error alongside the complete records read
// before it, so a journal cut off mid-write still yields its good prefix.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	defer iox.DiscardClose(f)
	return readAll(bufio.NewReader(f))
}

func readAll(r io.Reader) ([]Record, error) {
	dec := wire.NewDecoder(r, 0)
	var records []Record
	for {
		payload, err := dec.ReadFrame()
		if err != nil {
			// The decoder wraps io.EOF only when the stream ends exactly
			// on a record boundary.
			if errors.Is(err, io.EOF) {
				return records, nil
			}
			return records, fmt.Errorf("journal: record %d: %w", len(records)+1, err)
		}
		var rec Record
		if err := msgpack.Unmarshal(payload, &rec); err != nil {
			return records, fmt.Errorf("journal: decode record %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
}
