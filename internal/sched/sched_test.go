package sched

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/spotshare/spotshare/internal/civil"
	"github.com/spotshare/spotshare/internal/store"
)

func newUUID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}

// Fixture dates: 2026-03-09 is a Monday.
var (
	mon = civil.MustParse("2026-03-09")
	tue = civil.MustParse("2026-03-10")
	wed = civil.MustParse("2026-03-11")
	thu = civil.MustParse("2026-03-12")
	fri = civil.MustParse("2026-03-13")
)

type fixedClock struct{ today civil.Date }

func (c fixedClock) Today() civil.Date { return c.today }

type fixture struct {
	svc *Service
	st  *store.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	return &fixture{svc: New(st, fixedClock{today: mon}), st: st}
}

// addPrincipal registers a principal directly against the store and returns
// its id. The first registered principal becomes admin.
func (f *fixture) addPrincipal(t *testing.T, name string) int64 {
	t.Helper()
	var id int64
	err := f.st.Update(context.Background(), func(tx store.Tx) error {
		p, err := tx.Principals().UpsertBySubject(context.Background(), name, name)
		if err != nil {
			return err
		}
		id = p.ID
		return nil
	})
	if err != nil {
		t.Fatalf("add principal %s: %v", name, err)
	}
	return id
}

// addOwnedSpace creates a space and assigns owner to it.
func (f *fixture) addOwnedSpace(t *testing.T, label string, owner int64) int64 {
	t.Helper()
	sp, err := f.svc.CreateSpace(context.Background(), label)
	if err != nil {
		t.Fatalf("create space: %v", err)
	}
	if err := f.svc.AssignOwner(context.Background(), sp.ID, owner); err != nil {
		t.Fatalf("assign owner: %v", err)
	}
	return sp.ID
}

// markApplied marks [start,end] available and requires the applied outcome.
func (f *fixture) markApplied(t *testing.T, spaceID, actor int64, start, end civil.Date) store.Window {
	t.Helper()
	d, err := f.svc.ProposeMarkAvailable(context.Background(), spaceID, actor, start, end)
	if err != nil {
		t.Fatalf("mark available: %v", err)
	}
	if d.Outcome != MarkApplied {
		t.Fatalf("expected applied outcome, got %s", d.Outcome)
	}
	return *d.Window
}

// windowsOf lists the committed windows of a space.
func (f *fixture) windowsOf(t *testing.T, spaceID int64) []store.Window {
	t.Helper()
	var out []store.Window
	err := f.st.View(context.Background(), func(tx store.Tx) error {
		ws, err := tx.Windows().ListBySpace(context.Background(), spaceID)
		if err != nil {
			return err
		}
		out = ws
		return nil
	})
	if err != nil {
		t.Fatalf("list windows: %v", err)
	}
	return out
}

// dayset expands windows into the set of days they cover and fails on any
// overlap between two windows.
func dayset(t *testing.T, ws []store.Window) map[civil.Date]bool {
	t.Helper()
	days := make(map[civil.Date]bool)
	for _, w := range ws {
		for d := w.Start; !d.After(w.End); d = d.AddDays(1) {
			if days[d] {
				t.Fatalf("day %s covered by two windows", d)
			}
			days[d] = true
		}
	}
	return days
}
