package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `target:
  host: load-target.internal
  port: 50000

load:
  users: 40
  min_wait: 5s
  max_wait: 9s
  spawn_rate: 4
  duration: 2m
  weight: 1
  seed: 1234

wire:
  max_payload: 1048576
  dial_timeout: 10s
  read_timeout: 30s
  write_timeout: 30s

results:
  journal: outcomes.mpk
  s3_path: s3://loads/sounder
  s3_region: us-east-1
  s3_endpoint: https://example.com
  s3_path_style: true

observability:
  listen: 127.0.0.1:9100

adapter:
  type: webhook
  url: https://hooks.example.com/sounder
  headers:
    Authorization: Bearer token123
  timeout: 10s
  retries: 3
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Target
	assertEqual(t, "target.host", cfg.Target.Host, "load-target.internal")
	if cfg.Target.Port != 50000 {
		t.Errorf("expected target.port=50000, got %d", cfg.Target.Port)
	}

	// Load shape
	if cfg.Load.Users != 40 {
		t.Errorf("expected load.users=40, got %d", cfg.Load.Users)
	}
	if cfg.Load.MinWait.Duration != 5*time.Second {
		t.Errorf("expected load.min_wait=5s, got %v", cfg.Load.MinWait.Duration)
	}
	if cfg.Load.MaxWait.Duration != 9*time.Second {
		t.Errorf("expected load.max_wait=9s, got %v", cfg.Load.MaxWait.Duration)
	}
	if cfg.Load.SpawnRate != 4 {
		t.Errorf("expected load.spawn_rate=4, got %v", cfg.Load.SpawnRate)
	}
	if cfg.Load.Duration.Duration != 2*time.Minute {
		t.Errorf("expected load.duration=2m, got %v", cfg.Load.Duration.Duration)
	}
	if cfg.Load.Weight != 1 {
		t.Errorf("expected load.weight=1, got %d", cfg.Load.Weight)
	}
	if cfg.Load.Seed != 1234 {
		t.Errorf("expected load.seed=1234, got %d", cfg.Load.Seed)
	}

	// Wire
	if cfg.Wire.MaxPayload != 1048576 {
		t.Errorf("expected wire.max_payload=1048576, got %d", cfg.Wire.MaxPayload)
	}
	if cfg.Wire.DialTimeout.Duration != 10*time.Second {
		t.Errorf("expected wire.dial_timeout=10s, got %v", cfg.Wire.DialTimeout.Duration)
	}
	if cfg.Wire.ReadTimeout.Duration != 30*time.Second {
		t.Errorf("expected wire.read_timeout=30s, got %v", cfg.Wire.ReadTimeout.Duration)
	}

	// Results
	assertEqual(t, "results.journal", cfg.Results.Journal, "outcomes.mpk")
	assertEqual(t, "results.s3_path", cfg.Results.S3Path, "s3://loads/sounder")
	assertEqual(t, "results.s3_region", cfg.Results.S3Region, "us-east-1")
	assertEqual(t, "results.s3_endpoint", cfg.Results.S3Endpoint, "https://example.com")
	if !cfg.Results.S3PathStyle {
		t.Error("expected results.s3_path_style=true")
	}

	// Observability
	assertEqual(t, "observability.listen", cfg.Observability.Listen, "127.0.0.1:9100")

	// Adapter
	assertEqual(t, "adapter.type", cfg.Adapter.Type, "webhook")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "https://hooks.example.com/sounder")
	if cfg.Adapter.Timeout.Duration != 10*time.Second {
		t.Errorf("expected adapter.timeout=10s, got %v", cfg.Adapter.Timeout.Duration)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 3 {
		t.Errorf("expected adapter.retries=3")
	}
	if cfg.Adapter.Headers["Authorization"] != "Bearer token123" {
		t.Errorf("expected Authorization header")
	}
}

func TestLoad_EmptyConfig(t *testing.T) {
	path := writeTemp(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Target.Host != "" {
		t.Errorf("expected empty target.host, got %q", cfg.Target.Host)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/sounder.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "{{invalid yaml")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_TARGET_HOST", "expanded-host")

	yaml := `target:
  host: ${TEST_TARGET_HOST}
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "target.host", cfg.Target.Host, "expanded-host")
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	yaml := `target:
  host: my-host
bogus_key: should_fail
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	if !strings.Contains(err.Error(), "bogus_key") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_UnknownNestedKeyRejected(t *testing.T) {
	yaml := `load:
  users: 10
  unknown_field: bad
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown nested key, got nil")
	}
	if !strings.Contains(err.Error(), "unknown_field") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_WhitespaceOnlyConfig(t *testing.T) {
	path := writeTemp(t, "   \n  \n  \n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed for whitespace-only config: %v", err)
	}
	if cfg.Load.Users != 0 {
		t.Errorf("expected zero users, got %d", cfg.Load.Users)
	}
}

func TestLoad_CommentsOnlyConfig(t *testing.T) {
	path := writeTemp(t, "# This is a comment\n# Another comment\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed for comments-only config: %v", err)
	}
	if cfg.Target.Host != "" {
		t.Errorf("expected empty target.host, got %q", cfg.Target.Host)
	}
}

func TestLoad_RetriesZeroDistinctFromNil(t *testing.T) {
	// retries: 0 should parse as *int(0), not nil.
	yaml := `adapter:
  type: webhook
  url: https://example.com
  retries: 0
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries == nil {
		t.Fatal("expected retries to be non-nil (*int(0)), got nil")
	}
	if *cfg.Adapter.Retries != 0 {
		t.Errorf("expected retries=0, got %d", *cfg.Adapter.Retries)
	}
}

func TestLoad_RetriesOmittedIsNil(t *testing.T) {
	// Omitting retries should leave the pointer nil.
	yaml := `adapter:
  type: webhook
  url: https://example.com
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries != nil {
		t.Errorf("expected retries to be nil, got %d", *cfg.Adapter.Retries)
	}
}

func TestDuration_InvalidFormat(t *testing.T) {
	yaml := `load:
  min_wait: not-a-duration
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("error should mention invalid duration, got: %v", err)
	}
}

func TestDuration_EmptyIsZero(t *testing.T) {
	yaml := `load:
  min_wait: ""
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Load.MinWait.Duration != 0 {
		t.Errorf("expected zero duration, got %v", cfg.Load.MinWait.Duration)
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	yaml := `wire:
  read_timeout: 30s
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Wire.ReadTimeout.Duration != 30*time.Second {
		t.Errorf("expected 30s, got %v", cfg.Wire.ReadTimeout.Duration)
	}
}

func TestLoad_RedisAdapterConfig(t *testing.T) {
	yaml := `adapter:
  type: redis
  url: redis://localhost:6379/0
  channel: sounder:run_summary
  timeout: 5s
  retries: 3
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "adapter.type", cfg.Adapter.Type, "redis")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "redis://localhost:6379/0")
	assertEqual(t, "adapter.channel", cfg.Adapter.Channel, "sounder:run_summary")
	if cfg.Adapter.Timeout.Duration != 5*time.Second {
		t.Errorf("expected adapter.timeout=5s, got %v", cfg.Adapter.Timeout.Duration)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 3 {
		t.Errorf("expected adapter.retries=3")
	}
}

func TestLoad_RedisAdapterChannelOmitted(t *testing.T) {
	yaml := `adapter:
  type: redis
  url: redis://localhost:6379/0
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "adapter.type", cfg.Adapter.Type, "redis")
	assertEqual(t, "adapter.channel", cfg.Adapter.Channel, "")
}

// writeTemp writes content to a temp file and returns the path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sounder.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
