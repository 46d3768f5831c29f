package config

import (
	"fmt"
	"time"
)

// Config represents a sounder.yaml configuration file.
// All values are optional and act as defaults for sounder run flags.
// CLI flags always override config values.
type Config struct {
	Target        TargetConfig        `yaml:"target"`
	Load          LoadConfig          `yaml:"load"`
	Wire          WireConfig          `yaml:"wire"`
	Results       ResultsConfig       `yaml:"results"`
	Observability ObservabilityConfig `yaml:"observability"`
	Adapter       AdapterConfig       `yaml:"adapter"`
}

// TargetConfig names the server a run drives load against.
type TargetConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoadConfig holds load-shape defaults from the config file.
type LoadConfig struct {
	Users     int      `yaml:"users"`
	MinWait   Duration `yaml:"min_wait"`
	MaxWait   Duration `yaml:"max_wait"`
	SpawnRate float64  `yaml:"spawn_rate"`
	Duration  Duration `yaml:"duration"`
	Weight    int      `yaml:"weight"`
	Seed      int64    `yaml:"seed"`
}

// WireConfig holds framing and socket deadline defaults.
type WireConfig struct {
	MaxPayload   uint32   `yaml:"max_payload"`
	DialTimeout  Duration `yaml:"dial_timeout"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

// ResultsConfig holds journal and export defaults.
type ResultsConfig struct {
	Journal     string `yaml:"journal"`
	S3Path      string `yaml:"s3_path"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// ObservabilityConfig holds the metrics/health listener defaults.
type ObservabilityConfig struct {
	Listen string `yaml:"listen"`
}

// AdapterConfig holds run-summary adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
