package sched

import (
	"context"

	"github.com/spotshare/spotshare/internal/civil"
	"github.com/spotshare/spotshare/internal/store"
)

// findOverlap returns the first window on the space whose inclusive range
// intersects [start, end], or nil when the range is free. Two inclusive
// ranges intersect when start <= w.End && end >= w.Start.
//
// Only the first match is reported. Under the per-space no-overlap
// invariant at most one window can conflict with a well-formed request, so
// enumerating the rest buys nothing; if the invariant were ever broken by
// outside writes, later overlapping windows would go unreported.
func findOverlap(ctx context.Context, windows store.WindowRepo, spaceID int64, start, end civil.Date) (*store.Window, error) {
	existing, err := windows.ListBySpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		w := &existing[i]
		if !start.After(w.End) && !end.Before(w.Start) {
			return w, nil
		}
	}
	return nil, nil
}
