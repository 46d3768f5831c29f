// Package loadgen drives simulated clients: each User owns one protocol
// session and loops between a randomized pacing wait and one weighted task,
// retiring permanently on the first failure. A Swarm spawns and supervises
// many Users.
package loadgen

import (
	"context"
	"fmt"
	"math/rand"
)

// Task is one operation a simulated client can perform after a pacing
// wait. Selection probability is proportional to Weight; zero-weight tasks
// are registered but never selected.
type Task struct {
	Name   string
	Weight int
	Run    func(ctx context.Context) error
}

// chooser picks tasks with probability proportional to weight.
type chooser struct {
	tasks []Task
	total int
}

func newChooser(tasks []Task) (*chooser, error) {
	kept := make([]Task, 0, len(tasks))
	total := 0
	for _, t := range tasks {
		if t.Weight < 0 {
			return nil, fmt.Errorf("task %q: negative weight %d", t.Name, t.Weight)
		}
		if t.Weight == 0 {
			continue
		}
		kept = append(kept, t)
		total += t.Weight
	}
	if total == 0 {
		return nil, fmt.Errorf("no runnable tasks: all weights are zero")
	}
	return &chooser{tasks: kept, total: total}, nil
}

func (c *chooser) pick(rng *rand.Rand) Task {
	n := rng.Intn(c.total)
	for _, t := range c.tasks {
		if n < t.Weight {
			return t
		}
		n -= t.Weight
	}
	return c.tasks[len(c.tasks)-1]
}
