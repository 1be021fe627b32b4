package scanner

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler invokes fn every interval until Stop. Implementations may call fn
// concurrently; the controller skips a tick while the previous one runs.
type Scheduler interface {
	Start(interval time.Duration, fn func()) error
	Stop()
}

// cronScheduler runs the tick on a gocron scheduler. Overlapping runs are
// not limited here so the controller sees, and counts, every due tick.
type cronScheduler struct {
	s *gocron.Scheduler
}

// NewCronScheduler returns the default Scheduler.
func NewCronScheduler() Scheduler {
	return &cronScheduler{s: gocron.NewScheduler(time.UTC)}
}

func (c *cronScheduler) Start(interval time.Duration, fn func()) error {
	if _, err := c.s.Every(interval).Do(fn); err != nil {
		return fmt.Errorf("schedule scan tick: %w", err)
	}
	c.s.StartAsync()
	return nil
}

func (c *cronScheduler) Stop() {
	c.s.Clear()
	// Stop waits for a running job, which may sit in a slow extractor call
	go c.s.Stop()
}
