package loadgen

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fathomline/sounder/log"
	"github.com/fathomline/sounder/observability"
)

// Config shapes a swarm run.
type Config struct {
	// Users is the number of simulated clients to spawn. Required.
	Users int

	// SpawnRate is how many users to start per second. Zero starts them
	// all at once.
	SpawnRate float64

	// Duration stops the run after a fixed time. Zero runs until the
	// context is canceled or every user has retired.
	Duration time.Duration

	// Seed makes task selection and pacing reproducible. Zero derives a
	// seed from the clock.
	Seed int64
}

// Factory builds one User per spawn. The id is unique within the run.
type Factory func(id string) (*User, error)

// Swarm spawns a population of Users and supervises them until they retire
// or the run is stopped. A Swarm is single-shot: call Run once.
type Swarm struct {
	cfg     Config
	factory Factory
	log     *log.Logger

	active  atomic.Int64
	spawned atomic.Int64
}

func New(cfg Config, factory Factory, logger *log.Logger) *Swarm {
	return &Swarm{cfg: cfg, factory: factory, log: logger}
}

// Active reports how many users are currently running.
func (s *Swarm) Active() int64 {
	return s.active.Load()
}

// Result summarizes a finished run.
type Result struct {
	// Spawned is how many users were actually started.
	Spawned int

	// Elapsed is the wall time from the first spawn to the last retirement.
	Elapsed time.Duration

	// Canceled reports whether the run was cut short by the caller's
	// context rather than by Duration elapsing or users retiring.
	Canceled bool
}

// Run spawns cfg.Users users, paced by cfg.SpawnRate, and blocks until all
// of them have retired. Canceling ctx stops the run: spawning halts and
// live users are told to stop. A factory error aborts the run and is
// returned after the already-spawned users have wound down.
func (s *Swarm) Run(ctx context.Context) (Result, error) {
	if s.cfg.Users <= 0 {
		return Result{}, fmt.Errorf("swarm: user count must be positive, got %d", s.cfg.Users)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if s.cfg.Duration > 0 {
		var stop context.CancelFunc
		runCtx, stop = context.WithTimeout(runCtx, s.cfg.Duration)
		defer stop()
	}

	seed := s.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	root := rand.New(rand.NewSource(seed))

	var spawnEvery time.Duration
	if s.cfg.SpawnRate > 0 {
		spawnEvery = time.Duration(float64(time.Second) / s.cfg.SpawnRate)
	}

	s.log.Info("spawning users", map[string]any{
		"users":      s.cfg.Users,
		"spawn_rate": s.cfg.SpawnRate,
		"seed":       seed,
	})

	start := time.Now()
	var wg sync.WaitGroup
	var buildErr error
	for i := 0; i < s.cfg.Users; i++ {
		if i > 0 && spawnEvery > 0 && !sleepCtx(runCtx, spawnEvery) {
			break
		}
		if runCtx.Err() != nil {
			break
		}
		user, err := s.factory(uuid.NewString())
		if err != nil {
			buildErr = fmt.Errorf("build user %d of %d: %w", i+1, s.cfg.Users, err)
			cancel()
			break
		}
		rng := rand.New(rand.NewSource(root.Int63()))
		wg.Add(1)
		s.spawned.Add(1)
		observability.SetUsersActive(s.active.Add(1))
		go func() {
			defer wg.Done()
			defer func() { observability.SetUsersActive(s.active.Add(-1)) }()
			user.run(runCtx, rng, s.log)
		}()
	}
	wg.Wait()

	res := Result{
		Spawned:  int(s.spawned.Load()),
		Elapsed:  time.Since(start),
		Canceled: ctx.Err() != nil,
	}
	s.log.Info("run finished", map[string]any{
		"spawned":    res.Spawned,
		"elapsed_ms": res.Elapsed.Milliseconds(),
		"canceled":   res.Canceled,
	})
	return res, buildErr
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
