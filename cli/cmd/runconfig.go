package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/fathomline/sounder/adapter"
	"github.com/fathomline/sounder/cli/config"
	"github.com/fathomline/sounder/journal"
	"github.com/fathomline/sounder/loadgen"
	"github.com/fathomline/sounder/metrics"
	"github.com/fathomline/sounder/types"
	"github.com/fathomline/sounder/wire"
)

// Default socket deadlines for a run. Zero disables a deadline, so the
// defaults live here rather than in the flag zero values.
const (
	defaultDialTimeout  = 10 * time.Second
	defaultFrameTimeout = 30 * time.Second
)

// runSettings is the resolved configuration of one load run, after
// defaults, config file, and flags have been merged in that order.
type runSettings struct {
	Host string
	Port int

	Users     int
	MinWait   time.Duration
	MaxWait   time.Duration
	SpawnRate float64
	Duration  time.Duration
	Weight    int
	Seed      int64

	MaxPayload   uint32
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Journal     string
	S3Path      string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool

	MetricsAddr    string
	ReportInterval time.Duration

	Adapter config.AdapterConfig
}

func defaultRunSettings() runSettings {
	return runSettings{
		Host:           types.DefaultTargetHost,
		Port:           types.DefaultPort,
		Users:          1,
		MinWait:        loadgen.DefaultMinWait,
		MaxWait:        loadgen.DefaultMaxWait,
		Weight:         1,
		MaxPayload:     wire.DefaultMaxPayload,
		DialTimeout:    defaultDialTimeout,
		ReadTimeout:    defaultFrameTimeout,
		WriteTimeout:   defaultFrameTimeout,
		ReportInterval: metrics.DefaultReportInterval,
	}
}

// loadRunSettings resolves the run configuration: defaults, then the
// config file named by --config, then any explicitly set flags.
func loadRunSettings(c *cli.Context) (runSettings, error) {
	s := defaultRunSettings()

	if path := c.String("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return runSettings{}, err
		}
		s.applyFile(cfg)
	}
	s.applyFlags(c)

	if err := s.validate(); err != nil {
		return runSettings{}, err
	}
	return s, nil
}

// applyFile overlays non-zero config file values. A file cannot express
// "explicitly zero" for durations; use flags to disable a deadline.
func (s *runSettings) applyFile(cfg *config.Config) {
	if cfg.Target.Host != "" {
		s.Host = cfg.Target.Host
	}
	if cfg.Target.Port != 0 {
		s.Port = cfg.Target.Port
	}

	if cfg.Load.Users != 0 {
		s.Users = cfg.Load.Users
	}
	if cfg.Load.MinWait.Duration != 0 {
		s.MinWait = cfg.Load.MinWait.Duration
	}
	if cfg.Load.MaxWait.Duration != 0 {
		s.MaxWait = cfg.Load.MaxWait.Duration
	}
	if cfg.Load.SpawnRate != 0 {
		s.SpawnRate = cfg.Load.SpawnRate
	}
	if cfg.Load.Duration.Duration != 0 {
		s.Duration = cfg.Load.Duration.Duration
	}
	if cfg.Load.Weight != 0 {
		s.Weight = cfg.Load.Weight
	}
	if cfg.Load.Seed != 0 {
		s.Seed = cfg.Load.Seed
	}

	if cfg.Wire.MaxPayload != 0 {
		s.MaxPayload = cfg.Wire.MaxPayload
	}
	if cfg.Wire.DialTimeout.Duration != 0 {
		s.DialTimeout = cfg.Wire.DialTimeout.Duration
	}
	if cfg.Wire.ReadTimeout.Duration != 0 {
		s.ReadTimeout = cfg.Wire.ReadTimeout.Duration
	}
	if cfg.Wire.WriteTimeout.Duration != 0 {
		s.WriteTimeout = cfg.Wire.WriteTimeout.Duration
	}

	if cfg.Results.Journal != "" {
		s.Journal = cfg.Results.Journal
	}
	if cfg.Results.S3Path != "" {
		s.S3Path = cfg.Results.S3Path
	}
	s.S3Region = cfg.Results.S3Region
	s.S3Endpoint = cfg.Results.S3Endpoint
	s.S3PathStyle = cfg.Results.S3PathStyle

	if cfg.Observability.Listen != "" {
		s.MetricsAddr = cfg.Observability.Listen
	}

	s.Adapter = cfg.Adapter
}

// applyFlags overlays flags the caller set explicitly, so flag defaults
// never shadow config file values.
func (s *runSettings) applyFlags(c *cli.Context) {
	if c.IsSet("host") {
		s.Host = c.String("host")
	}
	if c.IsSet("port") {
		s.Port = c.Int("port")
	}
	if c.IsSet("users") {
		s.Users = c.Int("users")
	}
	if c.IsSet("min-wait") {
		s.MinWait = c.Duration("min-wait")
	}
	if c.IsSet("max-wait") {
		s.MaxWait = c.Duration("max-wait")
	}
	if c.IsSet("spawn-rate") {
		s.SpawnRate = c.Float64("spawn-rate")
	}
	if c.IsSet("duration") {
		s.Duration = c.Duration("duration")
	}
	if c.IsSet("weight") {
		s.Weight = c.Int("weight")
	}
	if c.IsSet("seed") {
		s.Seed = c.Int64("seed")
	}
	if c.IsSet("max-payload") {
		s.MaxPayload = uint32(c.Uint("max-payload"))
	}
	if c.IsSet("dial-timeout") {
		s.DialTimeout = c.Duration("dial-timeout")
	}
	if c.IsSet("read-timeout") {
		s.ReadTimeout = c.Duration("read-timeout")
	}
	if c.IsSet("write-timeout") {
		s.WriteTimeout = c.Duration("write-timeout")
	}
	if c.IsSet("journal") {
		s.Journal = c.String("journal")
	}
	if c.IsSet("s3-path") {
		s.S3Path = c.String("s3-path")
	}
	if c.IsSet("metrics-addr") {
		s.MetricsAddr = c.String("metrics-addr")
	}
	if c.IsSet("report-interval") {
		s.ReportInterval = c.Duration("report-interval")
	}
}

func (s runSettings) validate() error {
	if s.Host == "" {
		return fmt.Errorf("target host must not be empty")
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("target port %d out of range 1-65535", s.Port)
	}
	if s.Users < 1 {
		return fmt.Errorf("users must be positive, got %d", s.Users)
	}
	if s.MinWait < 0 {
		return fmt.Errorf("min-wait must not be negative, got %s", s.MinWait)
	}
	if s.MaxWait < s.MinWait {
		return fmt.Errorf("max-wait %s is shorter than min-wait %s", s.MaxWait, s.MinWait)
	}
	if s.SpawnRate < 0 {
		return fmt.Errorf("spawn-rate must not be negative, got %g", s.SpawnRate)
	}
	if s.Duration < 0 {
		return fmt.Errorf("duration must not be negative, got %s", s.Duration)
	}
	if s.Weight < 1 {
		return fmt.Errorf("weight must be positive, got %d", s.Weight)
	}
	if s.S3Path != "" {
		if s.Journal == "" {
			return fmt.Errorf("s3-path requires a journal file to export")
		}
		if _, _, err := journal.ParseS3Path(s.S3Path); err != nil {
			return err
		}
	}
	switch s.Adapter.Type {
	case "", "redis", "webhook":
	default:
		return fmt.Errorf("unknown adapter type %q (must be redis or webhook)", s.Adapter.Type)
	}
	if s.Adapter.Type != "" && s.Adapter.URL == "" {
		return fmt.Errorf("adapter type %q requires a URL", s.Adapter.Type)
	}
	return nil
}

// RunReport is the run command's end-of-run output payload.
type RunReport struct {
	RunID      string         `json:"run_id" yaml:"run_id"`
	Target     string         `json:"target" yaml:"target"`
	Outcome    string         `json:"outcome" yaml:"outcome"`
	Users      int            `json:"users" yaml:"users"`
	Spawned    int            `json:"spawned" yaml:"spawned"`
	DurationMs int64          `json:"duration_ms" yaml:"duration_ms"`
	Connects   OpReport       `json:"connects" yaml:"connects"`
	PingPongs  OpReport       `json:"ping_pongs" yaml:"ping_pongs"`
	Failures   []FailureCount `json:"failures,omitempty" yaml:"failures,omitempty"`
	Journal    string         `json:"journal,omitempty" yaml:"journal,omitempty"`
}

func buildRunReport(summary *adapter.RunSummaryEvent, res loadgen.Result, snap metrics.Snapshot) RunReport {
	report := RunReport{
		RunID:      summary.RunID,
		Target:     summary.Target,
		Outcome:    summary.Outcome,
		Users:      summary.Users,
		Spawned:    res.Spawned,
		DurationMs: summary.DurationMs,
		Connects:   opReport(snap.Connect),
		PingPongs:  opReport(snap.PingPong),
		Journal:    summary.JournalPath,
	}
	for _, f := range snap.FailureBreakdown() {
		report.Failures = append(report.Failures, FailureCount{Detail: f.Detail, Count: f.Count})
	}
	return report
}

// RenderTable implements render.Table.
func (r RunReport) RenderTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Run:\t%s\n", r.RunID)
	fmt.Fprintf(tw, "Target:\t%s\n", r.Target)
	fmt.Fprintf(tw, "Outcome:\t%s\n", r.Outcome)
	fmt.Fprintf(tw, "Users:\t%d spawned of %d\n", r.Spawned, r.Users)
	fmt.Fprintf(tw, "Duration:\t%s\n", (time.Duration(r.DurationMs) * time.Millisecond).String())
	if r.Journal != "" {
		fmt.Fprintf(tw, "Journal:\t%s\n", r.Journal)
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
