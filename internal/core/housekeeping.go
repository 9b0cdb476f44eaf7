package core

import (
	"context"
	"time"

	"github.com/oceanplexian/livestatus/internal/api"
)

// HousekeepingInterval is how often Run starts and ends downtimes and
// drops expired comments.
const HousekeepingInterval = 15 * time.Second

// Run calls Expire every interval until ctx is done.
func (c *Core) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Expire(c.now())
		}
	}
}

// Expire applies the passage of time to downtimes and comments.
func (c *Core) Expire(now time.Time) {
	c.mu.Lock()
	started, stopped := c.store.UpdateDowntimes(now)
	for _, d := range started {
		c.logDowntime(d, "STARTED")
	}
	for _, d := range stopped {
		c.logDowntime(d, "STOPPED")
	}
	expired := c.store.ExpireComments(now)
	c.mu.Unlock()

	if len(started)+len(stopped) > 0 {
		c.triggers.Notify(api.TriggerDowntime)
		c.triggers.Notify(api.TriggerState)
	}
	if len(stopped)+expired > 0 {
		c.triggers.Notify(api.TriggerComment)
	}
	if expired > 0 {
		c.log.Debugf("expired %d comments", expired)
	}
}
