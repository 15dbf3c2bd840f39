// Package worker runs the background jobs that keep the window set tidy.
package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

const sweepTimeout = 30 * time.Second

// Purger deletes expired offers and reports how many went away.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically purges unclaimed windows whose end date has passed.
// Claimed windows are never touched.
type Sweeper struct {
	purger Purger
	cron   *cron.Cron
}

// NewSweeper schedules the purge job with a cron expression.
func NewSweeper(purger Purger, schedule string) (*Sweeper, error) {
	s := &Sweeper{purger: purger, cron: cron.New()}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start launches the cron loop in its own goroutine.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	removed, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		log.Printf("[ERROR] sweep expired windows: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("[INFO] sweep removed %d expired windows", removed)
	}
}
