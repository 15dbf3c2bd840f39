// Package sched implements the availability-window engine: per-space
// date-range offers, overlap arbitration, day-granular claim splitting, and
// the transactional write path that keeps the window set consistent under
// concurrent callers.
package sched

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/spotshare/spotshare/internal/civil"
	"github.com/spotshare/spotshare/internal/store"
)

// Service is the engine facade. All mutations go through its coordinator;
// callers never touch the store's collections directly.
type Service struct {
	co        *Coordinator
	clock     civil.Clock
	proposals *proposalTable
}

// New builds a Service on top of the store.
func New(st store.Store, clock civil.Clock) *Service {
	if clock == nil {
		clock = civil.RealClock{}
	}
	return &Service{
		co:        NewCoordinator(st),
		clock:     clock,
		proposals: newProposalTable(),
	}
}

// MarkOutcome is the decision of a mark-available proposal.
type MarkOutcome string

const (
	// MarkApplied means the window was inserted; no conflict existed.
	MarkApplied MarkOutcome = "applied"
	// MarkNeedsConfirmation means an unclaimed window overlaps the range.
	// The caller must confirm before the old window is replaced.
	MarkNeedsConfirmation MarkOutcome = "needs_confirmation"
)

// MarkDecision carries the result of ProposeMarkAvailable. Window is set
// when applied; ProposalID and Conflict when confirmation is required.
type MarkDecision struct {
	Outcome    MarkOutcome   `json:"outcome"`
	Window     *store.Window `json:"window,omitempty"`
	ProposalID uuid.UUID     `json:"proposal_id,omitempty"`
	Conflict   *store.Window `json:"conflict,omitempty"`
}

// ProposeMarkAvailable offers [start, end] on the space. With no overlap the
// window is inserted immediately. Overlap with a claimed window fails with
// ErrOverlapWithClaimed and no mutation. Overlap with an unclaimed window
// parks a single-use proposal and asks the caller to confirm; only
// ConfirmReplace mutates in that case. The actor must be the space's owner.
func (s *Service) ProposeMarkAvailable(ctx context.Context, spaceID, actor int64, start, end civil.Date) (*MarkDecision, error) {
	if end.Before(start) {
		return nil, ErrInvalidRange
	}

	var decision MarkDecision
	var pending proposal
	err := s.co.Mutate(ctx, func(tx store.Tx) error {
		decision = MarkDecision{}

		space, err := tx.Spaces().Get(ctx, spaceID)
		if err != nil {
			return err
		}
		if space.OwnerID == nil || *space.OwnerID != actor {
			return fmt.Errorf("%w: only the owner may offer the space", ErrNotEligible)
		}

		conflict, err := findOverlap(ctx, tx.Windows(), spaceID, start, end)
		if err != nil {
			return err
		}
		if conflict == nil {
			created, err := tx.Windows().Create(ctx, store.Window{SpaceID: spaceID, Start: start, End: end})
			if err != nil {
				return err
			}
			decision = MarkDecision{Outcome: MarkApplied, Window: created}
			return nil
		}
		if conflict.Claimed() {
			return ErrOverlapWithClaimed
		}

		decision = MarkDecision{Outcome: MarkNeedsConfirmation, Conflict: conflict}
		pending = proposal{
			SpaceID:         spaceID,
			Actor:           actor,
			Start:           start,
			End:             end,
			ConflictID:      conflict.ID,
			ConflictVersion: conflict.Version,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if decision.Outcome == MarkNeedsConfirmation {
		decision.ProposalID = s.proposals.put(pending)
	}
	return &decision, nil
}

// ConfirmReplace completes a NeedsConfirmation proposal: the conflicting
// window is deleted and the proposed range inserted in one transaction. Any
// date coverage the old window had outside the proposed range is discarded,
// not merged. If the conflicting window was mutated since the proposal the
// confirm fails with ErrConflict; if it became claimed, with
// ErrOverlapWithClaimed.
func (s *Service) ConfirmReplace(ctx context.Context, proposalID uuid.UUID, actor int64) (*store.Window, error) {
	p, ok := s.proposals.take(proposalID)
	if !ok {
		return nil, fmt.Errorf("proposal %s: %w", proposalID, ErrNotFound)
	}
	if p.Actor != actor {
		return nil, fmt.Errorf("%w: proposal belongs to another principal", ErrNotEligible)
	}

	var replacement *store.Window
	err := s.co.Mutate(ctx, func(tx store.Tx) error {
		conflict, err := tx.Windows().Get(ctx, p.ConflictID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: conflicting window no longer exists", ErrConflict)
		}
		if err != nil {
			return err
		}
		if conflict.Claimed() {
			return ErrOverlapWithClaimed
		}
		if conflict.Version != p.ConflictVersion {
			return fmt.Errorf("%w: conflicting window changed since proposal", ErrConflict)
		}

		if err := tx.Windows().Delete(ctx, conflict.ID, conflict.Version); err != nil {
			return err
		}
		created, err := tx.Windows().Create(ctx, store.Window{SpaceID: p.SpaceID, Start: p.Start, End: p.End})
		if err != nil {
			return err
		}
		replacement = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return replacement, nil
}

// ClaimDay claims a single day inside an unclaimed window for claimant,
// splitting the window as needed. See ReplacementSet for the shapes. The
// delete and inserts commit atomically; two racing claims on one window
// resolve to exactly one winner, the loser seeing ErrAlreadyClaimed or
// ErrConflict.
func (s *Service) ClaimDay(ctx context.Context, windowID uuid.UUID, day civil.Date, claimant int64) (*ReplacementSet, error) {
	var out ReplacementSet
	err := s.co.Mutate(ctx, func(tx store.Tx) error {
		out = ReplacementSet{}

		w, err := tx.Windows().Get(ctx, windowID)
		if err != nil {
			return err
		}
		if w.Claimed() {
			return ErrAlreadyClaimed
		}
		if !w.Contains(day) {
			return ErrDayOutOfRange
		}
		if err := canClaim(ctx, tx, claimant); err != nil {
			return err
		}
		return applySplit(ctx, tx.Windows(), *w, day, claimant, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Unclaim releases the actor's claim on a window. The window survives as an
// unclaimed single-day offer; it is not deleted. Unclaiming a window that
// is not claimed, or claimed by someone else, fails with ErrNotEligible and
// mutates nothing.
func (s *Service) Unclaim(ctx context.Context, windowID uuid.UUID, actor int64) (*store.Window, error) {
	var released *store.Window
	err := s.co.Mutate(ctx, func(tx store.Tx) error {
		w, err := tx.Windows().Get(ctx, windowID)
		if err != nil {
			return err
		}
		if !w.Claimed() {
			return fmt.Errorf("%w: window is not claimed", ErrNotEligible)
		}
		if *w.ClaimantID != actor {
			return fmt.Errorf("%w: claim belongs to another principal", ErrNotEligible)
		}
		updated, err := tx.Windows().SetClaimant(ctx, w.ID, w.Version, nil)
		if err != nil {
			return err
		}
		released = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

// UndoAvailability retracts an unclaimed window outright; only the space's
// owner may do this. A claimed window cannot be retracted and fails with
// ErrAlreadyClaimed.
func (s *Service) UndoAvailability(ctx context.Context, windowID uuid.UUID, actor int64) error {
	return s.co.Mutate(ctx, func(tx store.Tx) error {
		w, err := tx.Windows().Get(ctx, windowID)
		if err != nil {
			return err
		}
		if w.Claimed() {
			return ErrAlreadyClaimed
		}
		space, err := tx.Spaces().Get(ctx, w.SpaceID)
		if err != nil {
			return err
		}
		if space.OwnerID == nil || *space.OwnerID != actor {
			return fmt.Errorf("%w: only the owner may retract an offer", ErrNotEligible)
		}
		return tx.Windows().Delete(ctx, w.ID, w.Version)
	})
}

// SpaceWindows pairs a space with its windows for read-side listings.
type SpaceWindows struct {
	Space   store.Space    `json:"space"`
	Windows []store.Window `json:"windows"`
}

// ListSpaces returns every space and its windows from one committed
// snapshot.
func (s *Service) ListSpaces(ctx context.Context) ([]SpaceWindows, error) {
	var out []SpaceWindows
	err := s.co.Read(ctx, func(tx store.Tx) error {
		spaces, err := tx.Spaces().List(ctx)
		if err != nil {
			return err
		}
		out = make([]SpaceWindows, 0, len(spaces))
		for _, sp := range spaces {
			ws, err := tx.Windows().ListBySpace(ctx, sp.ID)
			if err != nil {
				return err
			}
			out = append(out, SpaceWindows{Space: sp, Windows: ws})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListOpenWindows returns unclaimed windows intersecting [from, to] across
// all spaces, for "available this week" style views.
func (s *Service) ListOpenWindows(ctx context.Context, from, to civil.Date) ([]store.Window, error) {
	if to.Before(from) {
		return nil, ErrInvalidRange
	}
	var out []store.Window
	err := s.co.Read(ctx, func(tx store.Tx) error {
		all, err := tx.Windows().ListAll(ctx)
		if err != nil {
			return err
		}
		for _, w := range all {
			if w.Claimed() {
				continue
			}
			if !from.After(w.End) && !to.Before(w.Start) {
				out = append(out, w)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetWindow fetches one window from a committed snapshot.
func (s *Service) GetWindow(ctx context.Context, id uuid.UUID) (*store.Window, error) {
	var found *store.Window
	err := s.co.Read(ctx, func(tx store.Tx) error {
		w, err := tx.Windows().Get(ctx, id)
		if err != nil {
			return err
		}
		found = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// PurgeExpired deletes unclaimed windows that ended before today and
// reports how many were removed. Claimed windows are kept for history.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	var n int64
	err := s.co.Mutate(ctx, func(tx store.Tx) error {
		removed, err := tx.Windows().DeleteExpired(ctx, s.clock.Today())
		if err != nil {
			return err
		}
		n = removed
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
