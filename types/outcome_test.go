package types

import (
	"testing"
	"time"
)

func TestOutcome_ElapsedMs(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    int64
	}{
		{"zero", 0, 0},
		{"sub-millisecond truncates", 900 * time.Microsecond, 0},
		{"exact", 42 * time.Millisecond, 42},
		{"truncates fraction", 42*time.Millisecond + 700*time.Microsecond, 42},
		{"seconds", 3 * time.Second, 3000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Outcome{Elapsed: tt.elapsed}
			if got := o.ElapsedMs(); got != tt.want {
				t.Errorf("ElapsedMs() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestReporterFunc_Record(t *testing.T) {
	var got Outcome
	r := ReporterFunc(func(o Outcome) { got = o })

	r.Record(Outcome{Op: OpConnect, OK: true})

	if got.Op != OpConnect {
		t.Errorf("recorded op = %q, want %q", got.Op, OpConnect)
	}
	if !got.OK {
		t.Error("recorded outcome not OK")
	}
}

func TestMultiReporter_FansOut(t *testing.T) {
	var first, second []Outcome
	m := MultiReporter{
		ReporterFunc(func(o Outcome) { first = append(first, o) }),
		nil, // nil entries must be skipped, not panic
		ReporterFunc(func(o Outcome) { second = append(second, o) }),
	}

	m.Record(Outcome{Op: OpPingPong, Length: 4})
	m.Record(Outcome{Op: OpPingPong, OK: false, Err: "unrecognized protocol"})

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("fan-out counts = %d, %d, want 2, 2", len(first), len(second))
	}
	if first[0].Length != 4 {
		t.Errorf("first[0].Length = %d, want 4", first[0].Length)
	}
	if second[1].Err != "unrecognized protocol" {
		t.Errorf("second[1].Err = %q, want %q", second[1].Err, "unrecognized protocol")
	}
}

func TestMultiReporter_Empty(t *testing.T) {
	var m MultiReporter
	// Must not panic.
	m.Record(Outcome{Op: OpConnect})
}
