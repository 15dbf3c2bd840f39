package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingPurger struct {
	calls atomic.Int64
}

func (p *countingPurger) PurgeExpired(context.Context) (int64, error) {
	p.calls.Add(1)
	return 1, nil
}

func TestNewSweeperRejectsBadSchedule(t *testing.T) {
	if _, err := NewSweeper(&countingPurger{}, "not a schedule"); err == nil {
		t.Fatal("expected error for malformed schedule")
	}
}

func TestSweeperRunsOnSchedule(t *testing.T) {
	purger := &countingPurger{}
	s, err := NewSweeper(purger, "@every 10ms")
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}

	s.Start()
	deadline := time.After(2 * time.Second)
	for purger.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("sweep never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
	s.Stop()

	after := purger.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if purger.calls.Load() != after {
		t.Fatal("sweep still running after Stop")
	}
}
