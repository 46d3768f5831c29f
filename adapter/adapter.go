// Package adapter defines the boundary for publishing run summaries to
// downstream systems.
//
// Adapters publish one summary event when a load run finishes. The run
// command owns adapter lifecycle; users provide configuration only.
package adapter

import "context"

// SchemaVersion identifies the summary event layout.
const SchemaVersion = "1.0"

// EventTypeRunSummary is the event_type value carried by every summary.
const EventTypeRunSummary = "run_summary"

// Run outcome values.
const (
	// OutcomeCompleted means the run ended on its own: the duration
	// elapsed or every user retired.
	OutcomeCompleted = "completed"
	// OutcomeAborted means the run was interrupted before finishing.
	OutcomeAborted = "aborted"
)

// OpTotals aggregates one operation kind for the summary payload.
type OpTotals struct {
	Attempts  int64   `json:"attempts"`
	Successes int64   `json:"successes"`
	Failures  int64   `json:"failures"`
	MeanMs    float64 `json:"mean_ms"`
}

// RunSummaryEvent is the payload published when a run finishes.
type RunSummaryEvent struct {
	SchemaVersion string   `json:"schema_version"`
	EventType     string   `json:"event_type"` // always "run_summary"
	RunID         string   `json:"run_id"`
	Target        string   `json:"target"`
	StartedAt     string   `json:"started_at"`  // RFC 3339
	FinishedAt    string   `json:"finished_at"` // RFC 3339
	Outcome       string   `json:"outcome"`     // completed or aborted
	Users         int      `json:"users"`
	Connects      OpTotals `json:"connects"`
	PingPongs     OpTotals `json:"ping_pongs"`
	DurationMs    int64    `json:"duration_ms"`
	JournalPath   string   `json:"journal_path,omitempty"`
}

// Adapter publishes run summary events to a downstream system.
// Implementations must be safe for single-use per run.
type Adapter interface {
	// Publish sends a run summary event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *RunSummaryEvent) error

	// Close releases adapter resources.
	Close() error
}
