package types

import "time"

// OpKind identifies which client operation an Outcome describes.
type OpKind string

const (
	// OpConnect is the initial transport establishment attempt.
	OpConnect OpKind = "connect"
	// OpPingPong is one request/reply cycle on an established connection.
	OpPingPong OpKind = "ping-pong"
)

// Outcome records exactly one operation attempt: one per connect, one per
// ping-pong cycle, emitted on success and failure alike. Outcomes are
// immutable once emitted.
type Outcome struct {
	Op       OpKind
	ClientID string
	At       time.Time
	Elapsed  time.Duration
	OK       bool
	// Length is the byte length of the reply payload received.
	// 0 on failure and for connect attempts.
	Length int
	// Err carries the error detail on failure, empty on success.
	Err string
}

// ElapsedMs reports the attempt duration in whole milliseconds, the unit
// outcome consumers aggregate in.
func (o Outcome) ElapsedMs() int64 { return o.Elapsed.Milliseconds() }

// Reporter consumes Outcome events. Implementations must be safe for
// concurrent use: many simulated clients report through one Reporter.
type Reporter interface {
	Record(Outcome)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(Outcome)

// Record calls f(o).
func (f ReporterFunc) Record(o Outcome) { f(o) }

// MultiReporter fans each Outcome out to every non-nil reporter in order.
type MultiReporter []Reporter

// Record delivers o to each reporter.
func (m MultiReporter) Record(o Outcome) {
	for _, r := range m {
		if r != nil {
			r.Record(o)
		}
	}
}
