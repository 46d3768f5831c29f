package metrics

import (
	"context"
	"time"

	"github.com/fathomline/sounder/log"
)

// DefaultReportInterval spaces the periodic progress entries.
const DefaultReportInterval = 10 * time.Second

// StartReporter spawns a goroutine that logs a progress line from the
// collector every interval until ctx is done. active supplies the current
// simulated-client count; pass nil when no swarm is attached.
func StartReporter(ctx context.Context, logger *log.Logger, c *Collector, interval time.Duration, active func() int64) {
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s := c.Snapshot()
				fields := map[string]any{
					"connects":        s.Connect.Attempts,
					"connect_fails":   s.Connect.Failures,
					"ping_pongs":      s.PingPong.Attempts,
					"ping_pong_fails": s.PingPong.Failures,
					"mean_ms":         s.PingPong.MeanElapsed().Milliseconds(),
				}
				if active != nil {
					fields["active_users"] = active()
				}
				logger.Info("progress", fields)
			}
		}
	}()
}
