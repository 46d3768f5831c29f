// Package metrics accumulates outcome statistics for one load run.
//
// The Collector consumes Outcome events as a types.Reporter and exposes an
// immutable Snapshot for progress reporting, the end-of-run summary, and
// the run-summary adapters.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/fathomline/sounder/types"
)

// OpStats is the aggregate view of one operation kind. Elapsed aggregates
// cover every attempt: failed attempts report latency too.
type OpStats struct {
	Attempts  int64
	Successes int64
	Failures  int64

	// BytesReceived sums reply payload lengths over successful attempts.
	BytesReceived int64

	TotalElapsed time.Duration
	MinElapsed   time.Duration // 0 until the first attempt is recorded
	MaxElapsed   time.Duration

	// FailureDetails counts failures by error detail string.
	FailureDetails map[string]int64
}

// MeanElapsed returns the mean attempt duration, 0 with no attempts.
func (s OpStats) MeanElapsed() time.Duration {
	if s.Attempts == 0 {
		return 0
	}
	return s.TotalElapsed / time.Duration(s.Attempts)
}

// Snapshot is an immutable point-in-time view of a run's statistics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	RunID     string
	Target    string
	StartedAt time.Time

	Connect  OpStats
	PingPong OpStats
}

// Attempts returns total attempts across both operations.
func (s Snapshot) Attempts() int64 { return s.Connect.Attempts + s.PingPong.Attempts }

// Failures returns total failures across both operations.
func (s Snapshot) Failures() int64 { return s.Connect.Failures + s.PingPong.Failures }

// FailureDetail is one distinct failure with its occurrence count.
type FailureDetail struct {
	Detail string
	Count  int64
}

// FailureBreakdown merges both operations' failure details, most frequent
// first, ties broken by detail string. Empty with no failures.
func (s Snapshot) FailureBreakdown() []FailureDetail {
	counts := make(map[string]int64)
	for detail, n := range s.Connect.FailureDetails {
		counts[detail] += n
	}
	for detail, n := range s.PingPong.FailureDetails {
		counts[detail] += n
	}
	if len(counts) == 0 {
		return nil
	}

	list := make([]FailureDetail, 0, len(counts))
	for detail, n := range counts {
		list = append(list, FailureDetail{Detail: detail, Count: n})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Count != list[j].Count {
			return list[i].Count > list[j].Count
		}
		return list[i].Detail < list[j].Detail
	})
	return list
}

// Collector accumulates outcome statistics during a single run.
// Thread-safe via sync.Mutex. All recording methods are nil-receiver safe,
// so wiring a collector is optional for callers that only want journal or
// observability reporting.
type Collector struct {
	mu sync.Mutex

	runID     string
	target    string
	startedAt time.Time

	connect  opAggregate
	pingPong opAggregate
}

type opAggregate struct {
	attempts  int64
	successes int64
	failures  int64
	bytes     int64

	total time.Duration
	min   time.Duration
	max   time.Duration

	failureDetails map[string]int64
}

func (a *opAggregate) record(o types.Outcome) {
	a.attempts++
	a.total += o.Elapsed
	if a.attempts == 1 || o.Elapsed < a.min {
		a.min = o.Elapsed
	}
	if o.Elapsed > a.max {
		a.max = o.Elapsed
	}
	if o.OK {
		a.successes++
		a.bytes += int64(o.Length)
		return
	}
	a.failures++
	if a.failureDetails == nil {
		a.failureDetails = make(map[string]int64)
	}
	a.failureDetails[o.Err]++
}

func (a *opAggregate) snapshot() OpStats {
	details := make(map[string]int64, len(a.failureDetails))
	for k, v := range a.failureDetails {
		details[k] = v
	}
	return OpStats{
		Attempts:       a.attempts,
		Successes:      a.successes,
		Failures:       a.failures,
		BytesReceived:  a.bytes,
		TotalElapsed:   a.total,
		MinElapsed:     a.min,
		MaxElapsed:     a.max,
		FailureDetails: details,
	}
}

// NewCollector creates a Collector labeled with the run id and target
// address. The run start time is captured at construction.
func NewCollector(runID, target string) *Collector {
	return &Collector{
		runID:     runID,
		target:    target,
		startedAt: time.Now(),
	}
}

// Record absorbs one Outcome. Implements types.Reporter.
func (c *Collector) Record(o types.Outcome) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch o.Op {
	case types.OpConnect:
		c.connect.record(o)
	case types.OpPingPong:
		c.pingPong.record(o)
	}
}

// Snapshot returns an immutable point-in-time view of the run statistics.
// The Collector can continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		RunID:     c.runID,
		Target:    c.target,
		StartedAt: c.startedAt,
		Connect:   c.connect.snapshot(),
		PingPong:  c.pingPong.snapshot(),
	}
}
