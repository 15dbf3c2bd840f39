package sched

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spotshare/spotshare/internal/civil"
)

// proposalTTL bounds how long a pending overlap-replace may await its
// confirmation call.
const proposalTTL = 5 * time.Minute

// proposal is a pending mark-available that hit an unclaimed overlap and
// awaits explicit confirmation. The conflicting window's version is pinned
// so a confirm after any intervening mutation fails instead of silently
// replacing different data.
type proposal struct {
	ID              uuid.UUID
	SpaceID         int64
	Actor           int64
	Start, End      civil.Date
	ConflictID      uuid.UUID
	ConflictVersion int64
	Expires         time.Time
}

// proposalTable holds pending proposals in memory. Proposals are single
// use: take removes them whether or not the confirm later succeeds.
type proposalTable struct {
	mu   sync.Mutex
	byID map[uuid.UUID]proposal
}

func newProposalTable() *proposalTable {
	return &proposalTable{byID: make(map[uuid.UUID]proposal)}
}

func (t *proposalTable) put(p proposal) uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for id, existing := range t.byID {
		if existing.Expires.Before(now) {
			delete(t.byID, id)
		}
	}

	p.ID = uuid.New()
	p.Expires = now.Add(proposalTTL)
	t.byID[p.ID] = p
	return p.ID
}

func (t *proposalTable) take(id uuid.UUID) (proposal, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.byID[id]
	if !ok {
		return proposal{}, false
	}
	delete(t.byID, id)
	if p.Expires.Before(time.Now()) {
		return proposal{}, false
	}
	return p, true
}
