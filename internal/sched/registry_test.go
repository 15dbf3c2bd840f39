package sched

import (
	"context"
	"errors"
	"testing"

	"github.com/spotshare/spotshare/internal/store"
)

func TestAssignOwnerRejectsSecondSpace(t *testing.T) {
	f := newFixture(t)
	owner := f.addPrincipal(t, "owner")
	spaceA := f.addOwnedSpace(t, "space-a", owner)

	spaceB, err := f.svc.CreateSpace(context.Background(), "space-b")
	if err != nil {
		t.Fatalf("create space: %v", err)
	}
	if err := f.svc.AssignOwner(context.Background(), spaceB.ID, owner); !errors.Is(err, ErrAlreadyOwnsSpace) {
		t.Errorf("expected ErrAlreadyOwnsSpace, got %v", err)
	}

	// Re-assigning the space they already own is a no-op, not an error.
	if err := f.svc.AssignOwner(context.Background(), spaceA, owner); err != nil {
		t.Errorf("idempotent reassign: %v", err)
	}
}

func TestAssignOwnerUnknownSpace(t *testing.T) {
	f := newFixture(t)
	owner := f.addPrincipal(t, "owner")

	if err := f.svc.AssignOwner(context.Background(), 999, owner); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClearOwnerAllowsNewAssignment(t *testing.T) {
	f := newFixture(t)
	owner := f.addPrincipal(t, "owner")
	next := f.addPrincipal(t, "next")
	spaceID := f.addOwnedSpace(t, "space-5", owner)

	if err := f.svc.ClearOwner(context.Background(), spaceID); err != nil {
		t.Fatalf("clear owner: %v", err)
	}
	if _, err := f.svc.OwnedSpaceOf(context.Background(), owner); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected no owned space, got %v", err)
	}
	if err := f.svc.AssignOwner(context.Background(), spaceID, next); err != nil {
		t.Errorf("assign after clear: %v", err)
	}
}

func TestOwnedSpaceOf(t *testing.T) {
	f := newFixture(t)
	owner := f.addPrincipal(t, "owner")
	spaceID := f.addOwnedSpace(t, "space-5", owner)

	sp, err := f.svc.OwnedSpaceOf(context.Background(), owner)
	if err != nil {
		t.Fatalf("owned space of: %v", err)
	}
	if sp.ID != spaceID {
		t.Errorf("expected space %d, got %d", spaceID, sp.ID)
	}
}

func TestDeleteSpaceRemovesItsWindows(t *testing.T) {
	f := newFixture(t)
	owner := f.addPrincipal(t, "owner")
	claimant := f.addPrincipal(t, "claimant")
	spaceID := f.addOwnedSpace(t, "space-5", owner)
	f.markApplied(t, spaceID, owner, mon, tue)
	w := f.markApplied(t, spaceID, owner, thu, thu)
	if _, err := f.svc.ClaimDay(context.Background(), w.ID, thu, claimant); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := f.svc.DeleteSpace(context.Background(), spaceID); err != nil {
		t.Fatalf("delete space: %v", err)
	}

	err := f.st.View(context.Background(), func(tx store.Tx) error {
		ws, err := tx.Windows().ListAll(context.Background())
		if err != nil {
			return err
		}
		if len(ws) != 0 {
			t.Errorf("expected no windows after space deletion, got %d", len(ws))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}

	// The cascade frees the claimant for a new claim elsewhere.
	otherSpace := f.addOwnedSpace(t, "space-6", owner)
	ow := f.markApplied(t, otherSpace, owner, fri, fri)
	if _, err := f.svc.ClaimDay(context.Background(), ow.ID, fri, claimant); err != nil {
		t.Errorf("claim after cascade: %v", err)
	}
}
