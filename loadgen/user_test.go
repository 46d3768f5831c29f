package loadgen

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fathomline/sounder/log"
)

func testLogger() *log.Logger {
	return log.NewLogger("test", false).WithOutput(io.Discard)
}

type stubSession struct {
	connectErr error
	connects   atomic.Int32
	closes     atomic.Int32
}

func (s *stubSession) Connect(ctx context.Context) error {
	s.connects.Add(1)
	return s.connectErr
}

func (s *stubSession) Close() error {
	s.closes.Add(1)
	return nil
}

// runUser drives u.run in a goroutine and fails the test if it does not
// retire within the deadline.
func runUser(t *testing.T, ctx context.Context, u *User, seed int64) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		u.run(ctx, rand.New(rand.NewSource(seed)), testLogger())
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("user did not retire")
	}
}

func TestUserPaceWithinBounds(t *testing.T) {
	u := &User{MinWait: 10 * time.Millisecond, MaxWait: 20 * time.Millisecond}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		d := u.pace(rng)
		if d < u.MinWait || d > u.MaxWait {
			t.Fatalf("pace = %v, want within [%v, %v]", d, u.MinWait, u.MaxWait)
		}
	}

	fixed := &User{MinWait: 5 * time.Millisecond, MaxWait: 5 * time.Millisecond}
	if d := fixed.pace(rng); d != 5*time.Millisecond {
		t.Errorf("pace with min == max = %v, want 5ms", d)
	}
}

func TestUserRetiresOnConnectFailure(t *testing.T) {
	sess := &stubSession{connectErr: errors.New("connection refused")}
	var ran atomic.Int32
	u := &User{
		ID:      "u1",
		Session: sess,
		Tasks: []Task{{Name: "op", Weight: 1, Run: func(context.Context) error {
			ran.Add(1)
			return nil
		}}},
		MinWait: time.Millisecond,
		MaxWait: time.Millisecond,
	}

	runUser(t, t.Context(), u, 1)

	if got := sess.connects.Load(); got != 1 {
		t.Errorf("connects = %d, want 1", got)
	}
	if got := ran.Load(); got != 0 {
		t.Errorf("task ran %d times after failed connect, want 0", got)
	}
	if sess.closes.Load() == 0 {
		t.Error("session not closed after retirement")
	}
}

func TestUserRetiresOnTaskFailure(t *testing.T) {
	sess := &stubSession{}
	var ran atomic.Int32
	u := &User{
		ID:      "u1",
		Session: sess,
		Tasks: []Task{{Name: "op", Weight: 1, Run: func(context.Context) error {
			if ran.Add(1) == 3 {
				return errors.New("wire: read frame: error reading bytes")
			}
			return nil
		}}},
		MinWait: time.Millisecond,
		MaxWait: 2 * time.Millisecond,
	}

	runUser(t, t.Context(), u, 2)

	if got := ran.Load(); got != 3 {
		t.Errorf("task ran %d times, want 3 (retire on first failure)", got)
	}
	if sess.connects.Load() != 1 {
		t.Errorf("connects = %d, want 1 (no reconnect)", sess.connects.Load())
	}
	if sess.closes.Load() == 0 {
		t.Error("session not closed after retirement")
	}
}

func TestUserStopsAndClosesSessionOnCancel(t *testing.T) {
	sess := &stubSession{}
	u := &User{
		ID:      "u1",
		Session: sess,
		Tasks: []Task{{Name: "block", Weight: 1, Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}}},
	}

	ctx, cancel := context.WithCancel(t.Context())
	time.AfterFunc(20*time.Millisecond, cancel)
	runUser(t, ctx, u, 3)

	if sess.closes.Load() == 0 {
		t.Error("session not closed on cancellation")
	}
}

func TestUserInvalidTasksRetireImmediately(t *testing.T) {
	sess := &stubSession{}
	u := &User{ID: "u1", Session: sess}

	runUser(t, t.Context(), u, 4)

	if got := sess.connects.Load(); got != 0 {
		t.Errorf("connects = %d, want 0 for a user with no tasks", got)
	}
}
