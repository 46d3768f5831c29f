package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/fathomline/sounder/cli/render"
	"github.com/fathomline/sounder/cli/tui"
	"github.com/fathomline/sounder/journal"
	"github.com/fathomline/sounder/metrics"
	"github.com/fathomline/sounder/types"
)

// StatsCommand aggregates a run journal into per-operation statistics.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Aggregate statistics from a run journal",
		ArgsUsage: "<journal>",
		Flags:     ReadOnlyFlags(),
		Action:    statsAction,
	}
}

func statsAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("missing journal path. Usage: sounder stats <journal>. Journals are written by sounder run --journal <path>")
	}

	records, err := journal.ReadFile(path)
	if err != nil {
		if len(records) == 0 {
			return fmt.Errorf("reading journal %s: %w", path, err)
		}
		// A torn tail still leaves every whole record readable.
		fmt.Fprintf(os.Stderr, "Warning: journal truncated after %d records: %v\n", len(records), err)
	}

	snap := replayRecords(records).Snapshot()
	report := buildJournalReport(path, records, snap)

	if c.Bool("tui") {
		prog := tui.NewReplayProgram(tui.ReplayConfig{
			RunID:   report.RunID,
			Journal: path,
			Clients: report.Clients,
			Elapsed: time.Duration(report.DurationMs) * time.Millisecond,
			Snap:    snap,
		})
		_, err := prog.Run()
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(report)
}

// OpReport aggregates one operation's attempts for display.
type OpReport struct {
	Attempts  int64   `json:"attempts" yaml:"attempts"`
	Successes int64   `json:"successes" yaml:"successes"`
	Failures  int64   `json:"failures" yaml:"failures"`
	MeanMs    float64 `json:"mean_ms" yaml:"mean_ms"`
	MinMs     float64 `json:"min_ms" yaml:"min_ms"`
	MaxMs     float64 `json:"max_ms" yaml:"max_ms"`
	Bytes     int64   `json:"bytes_received" yaml:"bytes_received"`
}

// FailureCount is one distinct failure detail with its occurrence count.
type FailureCount struct {
	Detail string `json:"detail" yaml:"detail"`
	Count  int64  `json:"count" yaml:"count"`
}

// JournalReport is the stats command's output payload.
type JournalReport struct {
	RunID      string         `json:"run_id" yaml:"run_id"`
	Journal    string         `json:"journal" yaml:"journal"`
	Records    int            `json:"records" yaml:"records"`
	Clients    int            `json:"clients" yaml:"clients"`
	StartedAt  string         `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	FinishedAt string         `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	DurationMs int64          `json:"duration_ms" yaml:"duration_ms"`
	Connects   OpReport       `json:"connects" yaml:"connects"`
	PingPongs  OpReport       `json:"ping_pongs" yaml:"ping_pongs"`
	Failures   []FailureCount `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// RenderTable implements render.Table.
func (r JournalReport) RenderTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Run:\t%s\n", r.RunID)
	fmt.Fprintf(tw, "Journal:\t%s\n", r.Journal)
	fmt.Fprintf(tw, "Records:\t%d\n", r.Records)
	fmt.Fprintf(tw, "Clients:\t%d\n", r.Clients)
	if r.StartedAt != "" {
		fmt.Fprintf(tw, "Started:\t%s\n", r.StartedAt)
		fmt.Fprintf(tw, "Duration:\t%s\n", (time.Duration(r.DurationMs) * time.Millisecond).String())
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "OP\tATTEMPTS\tOK\tFAIL\tMEAN MS\tMIN MS\tMAX MS\tBYTES")
	writeOpReportRow(tw, "connect", r.Connects)
	writeOpReportRow(tw, "ping-pong", r.PingPongs)
	if len(r.Failures) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "FAILURE\tCOUNT")
		for _, f := range r.Failures {
			fmt.Fprintf(tw, "%s\t%d\n", f.Detail, f.Count)
		}
	}
	return tw.Flush()
}

func writeOpReportRow(w io.Writer, name string, r OpReport) {
	fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.1f\t%.1f\t%.1f\t%d\n",
		name, r.Attempts, r.Successes, r.Failures, r.MeanMs, r.MinMs, r.MaxMs, r.Bytes)
}

// replayRecords feeds stored records back through a fresh collector, so the
// stats command aggregates exactly the way the live run did.
func replayRecords(records []journal.Record) *metrics.Collector {
	runID := ""
	if len(records) > 0 {
		runID = records[0].RunID
	}
	collector := metrics.NewCollector(runID, "")
	for _, r := range records {
		collector.Record(recordOutcome(r))
	}
	return collector
}

// recordOutcome converts a stored record back into the outcome it was
// written from. A timestamp that fails to parse is left zero; the span
// computation skips it.
func recordOutcome(r journal.Record) types.Outcome {
	at, _ := time.Parse(time.RFC3339Nano, r.Ts)
	return types.Outcome{
		Op:       types.OpKind(r.Op),
		ClientID: r.ClientID,
		At:       at,
		Elapsed:  time.Duration(r.ElapsedMs * float64(time.Millisecond)),
		OK:       r.OK,
		Length:   r.Length,
		Err:      r.Error,
	}
}

// journalSpan reports the wall-clock window the records cover: earliest
// attempt start to latest completion.
func journalSpan(records []journal.Record) (started, finished time.Time) {
	for _, r := range records {
		at, err := time.Parse(time.RFC3339Nano, r.Ts)
		if err != nil {
			continue
		}
		end := at.Add(time.Duration(r.ElapsedMs * float64(time.Millisecond)))
		if started.IsZero() || at.Before(started) {
			started = at
		}
		if finished.IsZero() || end.After(finished) {
			finished = end
		}
	}
	return started, finished
}

func buildJournalReport(path string, records []journal.Record, snap metrics.Snapshot) JournalReport {
	started, finished := journalSpan(records)

	clients := make(map[string]struct{}, len(records))
	for _, r := range records {
		clients[r.ClientID] = struct{}{}
	}

	report := JournalReport{
		RunID:     snap.RunID,
		Journal:   path,
		Records:   len(records),
		Clients:   len(clients),
		Connects:  opReport(snap.Connect),
		PingPongs: opReport(snap.PingPong),
	}
	if !started.IsZero() {
		report.StartedAt = started.UTC().Format(time.RFC3339Nano)
		report.FinishedAt = finished.UTC().Format(time.RFC3339Nano)
		report.DurationMs = finished.Sub(started).Milliseconds()
	}
	for _, f := range snap.FailureBreakdown() {
		report.Failures = append(report.Failures, FailureCount{Detail: f.Detail, Count: f.Count})
	}
	return report
}

func opReport(s metrics.OpStats) OpReport {
	return OpReport{
		Attempts:  s.Attempts,
		Successes: s.Successes,
		Failures:  s.Failures,
		MeanMs:    ms(s.MeanElapsed()),
		MinMs:     ms(s.MinElapsed),
		MaxMs:     ms(s.MaxElapsed),
		Bytes:     s.BytesReceived,
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
