package sched

import (
	"context"
	"errors"
	"fmt"

	"github.com/spotshare/spotshare/internal/store"
)

// canClaim enforces the claim gate: a principal may claim only if they own
// no space and hold no other claimed window anywhere. Space owners offer
// days, they do not consume them.
func canClaim(ctx context.Context, tx store.Tx, principalID int64) error {
	_, err := tx.Spaces().OwnedBy(ctx, principalID)
	switch {
	case err == nil:
		return fmt.Errorf("%w: owner of a space cannot claim", ErrNotEligible)
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("check ownership: %w", err)
	}

	held, err := tx.Windows().ListClaimedBy(ctx, principalID)
	if err != nil {
		return fmt.Errorf("check existing claims: %w", err)
	}
	if len(held) > 0 {
		return fmt.Errorf("%w: already holds a claimed day", ErrNotEligible)
	}
	return nil
}
