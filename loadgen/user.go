package loadgen

import (
	"context"
	"math/rand"
	"time"

	"github.com/fathomline/sounder/iox"
	"github.com/fathomline/sounder/log"
)

// Default pacing bounds for a user's wait between tasks.
const (
	DefaultMinWait = 5 * time.Second
	DefaultMaxWait = 9 * time.Second
)

// Session is the connection-owning protocol handler a User drives. Connect
// is called exactly once, before the task loop starts; Close must be safe
// to call at any point after that, including concurrently with a running
// task, so a canceled run can unblock in-flight network reads.
type Session interface {
	Connect(ctx context.Context) error
	Close() error
}

// User is one simulated client. It connects once, then alternates between a
// pacing wait drawn uniformly from [MinWait, MaxWait] and a weighted task.
// The first failure of either phase retires the user for good.
type User struct {
	ID      string
	Session Session
	Tasks   []Task
	MinWait time.Duration
	MaxWait time.Duration
}

// run executes the user's lifecycle until retirement or cancellation. The
// rng is owned by this user alone, so task selection and pacing draws need
// no locking.
func (u *User) run(ctx context.Context, rng *rand.Rand, logger *log.Logger) {
	ulog := logger.With(map[string]any{"user_id": u.ID})

	pickTask, err := newChooser(u.Tasks)
	if err != nil {
		ulog.Error("invalid task set", map[string]any{"error": err.Error()})
		return
	}

	// Closing the session from the cancellation path unblocks any network
	// call the task loop is sitting in.
	stop := context.AfterFunc(ctx, func() {
		iox.DiscardClose(u.Session)
	})
	defer stop()
	defer iox.DiscardClose(u.Session)

	if err := u.Session.Connect(ctx); err != nil {
		ulog.Warn("connect failed, retiring user", map[string]any{"error": err.Error()})
		return
	}

	for {
		if !u.wait(ctx, rng) {
			ulog.Debug("user stopped", nil)
			return
		}
		task := pickTask.pick(rng)
		if err := task.Run(ctx); err != nil {
			if ctx.Err() != nil {
				ulog.Debug("user stopped", nil)
			} else {
				ulog.Warn("task failed, retiring user", map[string]any{
					"task":  task.Name,
					"error": err.Error(),
				})
			}
			return
		}
	}
}

// wait sleeps for a duration drawn uniformly from [MinWait, MaxWait]. It
// returns false if the context was canceled before the wait elapsed.
func (u *User) wait(ctx context.Context, rng *rand.Rand) bool {
	d := u.pace(rng)
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (u *User) pace(rng *rand.Rand) time.Duration {
	if u.MaxWait <= u.MinWait {
		return u.MinWait
	}
	return u.MinWait + time.Duration(rng.Int63n(int64(u.MaxWait-u.MinWait)+1))
}
