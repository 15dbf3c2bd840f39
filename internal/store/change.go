package store

import (
	"strconv"
	"sync"
)

// Collection identifies which record set a change touched.
type Collection string

const (
	CollectionSpaces     Collection = "spaces"
	CollectionWindows    Collection = "windows"
	CollectionPrincipals Collection = "principals"
)

// Op describes what happened to a record.
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Change is a committed-mutation notification. ID is the record's id in
// string form (windows use their UUID, spaces and principals their decimal
// id).
type Change struct {
	Collection Collection `json:"collection"`
	Op         Op         `json:"op"`
	ID         string     `json:"id"`
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }

const subscriberBuffer = 64

// changeHub fans committed changes out to subscribers. Sends never block:
// a subscriber whose buffer is full misses the event and is expected to
// refetch state when it catches up.
type changeHub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Change
}

func newChangeHub() *changeHub {
	return &changeHub{subs: make(map[int]chan Change)}
}

func (h *changeHub) subscribe() (<-chan Change, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Change, subscriberBuffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (h *changeHub) publish(changes []Change) {
	if len(changes) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		for _, c := range changes {
			select {
			case ch <- c:
			default:
			}
		}
	}
}
