package journal

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type stubS3 struct {
	mu    sync.Mutex
	calls []*s3.PutObjectInput
	err   error
}

func (s *stubS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, params)
	if s.err != nil {
		return nil, s.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3ExporterExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outcomes.mpk")
	if err := os.WriteFile(path, []byte("journal-bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	stub := &stubS3{}
	e := newS3ExporterWithClient(stub, "loads", "sounder/dev", testLogger())

	loc, err := e.Export(t.Context(), "run-42", path)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if want := "s3://loads/sounder/dev/run_id=run-42/outcomes.mpk"; loc != want {
		t.Errorf("location = %q, want %q", loc, want)
	}

	if len(stub.calls) != 1 {
		t.Fatalf("PutObject called %d times, want 1", len(stub.calls))
	}
	in := stub.calls[0]
	if *in.Bucket != "loads" {
		t.Errorf("Bucket = %q, want %q", *in.Bucket, "loads")
	}
	if want := "sounder/dev/run_id=run-42/outcomes.mpk"; *in.Key != want {
		t.Errorf("Key = %q, want %q", *in.Key, want)
	}
	if *in.ContentType != "application/x-msgpack" {
		t.Errorf("ContentType = %q", *in.ContentType)
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "journal-bytes" {
		t.Errorf("body = %q, want the journal file contents", body)
	}
}

func TestS3ExporterNoPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outcomes.mpk")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	stub := &stubS3{}
	e := newS3ExporterWithClient(stub, "loads", "", testLogger())

	loc, err := e.Export(t.Context(), "run-42", path)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if want := "s3://loads/run_id=run-42/outcomes.mpk"; loc != want {
		t.Errorf("location = %q, want %q", loc, want)
	}
}

func TestS3ExporterUploadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outcomes.mpk")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	stub := &stubS3{err: errors.New("access denied")}
	e := newS3ExporterWithClient(stub, "loads", "", testLogger())

	_, err := e.Export(t.Context(), "run-42", path)
	if err == nil {
		t.Fatal("Export returned nil error after upload failure")
	}
	if !strings.Contains(err.Error(), "s3://loads/") {
		t.Errorf("error = %q, want it to name the object location", err)
	}
}

func TestS3ExporterMissingFile(t *testing.T) {
	stub := &stubS3{}
	e := newS3ExporterWithClient(stub, "loads", "", testLogger())

	if _, err := e.Export(t.Context(), "run-42", filepath.Join(t.TempDir(), "absent.mpk")); err == nil {
		t.Fatal("Export of a missing journal returned nil error")
	}
	if len(stub.calls) != 0 {
		t.Errorf("PutObject called %d times for a missing file, want 0", len(stub.calls))
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		path    string
		bucket  string
		prefix  string
		wantErr bool
	}{
		{"s3://loads/sounder/dev", "loads", "sounder/dev", false},
		{"s3://loads", "loads", "", false},
		{"s3://loads/", "loads", "", false},
		{"loads/sounder", "", "", true},
		{"s3://", "", "", true},
	}
	for _, tt := range tests {
		bucket, prefix, err := ParseS3Path(tt.path)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseS3Path(%q): want error", tt.path)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseS3Path(%q): %v", tt.path, err)
			continue
		}
		if bucket != tt.bucket || prefix != tt.prefix {
			t.Errorf("ParseS3Path(%q) = (%q, %q), want (%q, %q)", tt.path, bucket, prefix, tt.bucket, tt.prefix)
		}
	}
}

func TestS3ConfigValidate(t *testing.T) {
	cfg := &S3Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("empty bucket accepted")
	}
	cfg.Bucket = "loads"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
