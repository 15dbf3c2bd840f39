package sched

import (
	"errors"

	"github.com/spotshare/spotshare/internal/store"
)

// Typed failures surfaced by scheduling operations. Overlap with an
// unclaimed window is deliberately absent: it is a confirmation-required
// decision (MarkNeedsConfirmation), not an error.
var (
	// ErrInvalidRange means the start date is after the end date.
	ErrInvalidRange = errors.New("start date after end date")

	// ErrOverlapWithClaimed means the proposed range overlaps a claimed
	// window. There is no retry path; the caller must pick another range.
	ErrOverlapWithClaimed = errors.New("range overlaps a claimed window")

	// ErrDayOutOfRange means the requested day falls outside the window.
	ErrDayOutOfRange = errors.New("day outside window range")

	// ErrAlreadyClaimed means the window has (or acquired) a claimant.
	ErrAlreadyClaimed = errors.New("window already claimed")

	// ErrNotEligible means the claim gate rejected the principal: they own
	// a space, already hold a claim, or are not the actor the operation
	// requires.
	ErrNotEligible = errors.New("principal not eligible")

	// ErrAlreadyOwnsSpace means the principal already owns another space.
	ErrAlreadyOwnsSpace = errors.New("principal already owns a space")

	// ErrConflict means a write collided with a concurrent mutation even
	// after a retry; the caller should refetch and try again.
	ErrConflict = errors.New("write conflict, refetch and retry")

	// ErrNotFound aliases the store sentinel so callers can errors.Is
	// against either package.
	ErrNotFound = store.ErrNotFound
)
