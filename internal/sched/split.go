package sched

import (
	"context"

	"github.com/spotshare/spotshare/internal/civil"
	"github.com/spotshare/spotshare/internal/store"
)

// ReplacementSet is the outcome of carving a claimed day out of a window.
// Claimed is always set. Before/After hold the unclaimed remainder segments
// when the claimed day was not flush with the corresponding edge. The union
// of days across the set always equals the original window's days exactly.
type ReplacementSet struct {
	Before  *store.Window `json:"before,omitempty"`
	Claimed *store.Window `json:"claimed"`
	After   *store.Window `json:"after,omitempty"`
}

// Windows returns the non-nil members in calendar order.
func (r ReplacementSet) Windows() []store.Window {
	var out []store.Window
	for _, w := range []*store.Window{r.Before, r.Claimed, r.After} {
		if w != nil {
			out = append(out, *w)
		}
	}
	return out
}

// applySplit replaces w with day-granular segments, claiming day for
// claimant. A single-day window is claimed in place, keeping its id;
// otherwise the original is deleted and two or three windows replace it
// within the same transaction. The caller has already verified that w is
// unclaimed and contains day.
func applySplit(ctx context.Context, windows store.WindowRepo, w store.Window, day civil.Date, claimant int64, out *ReplacementSet) error {
	if w.Start == day && w.End == day {
		claimed, err := windows.SetClaimant(ctx, w.ID, w.Version, &claimant)
		if err != nil {
			return err
		}
		out.Claimed = claimed
		return nil
	}

	if err := windows.Delete(ctx, w.ID, w.Version); err != nil {
		return err
	}

	if w.Start.Before(day) {
		before, err := windows.Create(ctx, store.Window{
			SpaceID: w.SpaceID,
			Start:   w.Start,
			End:     day.AddDays(-1),
		})
		if err != nil {
			return err
		}
		out.Before = before
	}

	claimed, err := windows.Create(ctx, store.Window{
		SpaceID:    w.SpaceID,
		Start:      day,
		End:        day,
		ClaimantID: &claimant,
	})
	if err != nil {
		return err
	}
	out.Claimed = claimed

	if day.Before(w.End) {
		after, err := windows.Create(ctx, store.Window{
			SpaceID: w.SpaceID,
			Start:   day.AddDays(1),
			End:     w.End,
		})
		if err != nil {
			return err
		}
		out.After = after
	}
	return nil
}
