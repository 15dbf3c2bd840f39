package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spotshare/spotshare/internal/civil"
)

// Memory is an in-process Store. Update clones the whole data set, applies
// the closure to the clone, and swaps it in on success, so failed closures
// roll back and readers only ever observe committed snapshots. A single
// mutex serializes writers, which trivially satisfies the serializable
// contract.
type Memory struct {
	mu   sync.Mutex
	data *memData
	hub  *changeHub
}

type memData struct {
	spaces     map[int64]Space
	windows    map[uuid.UUID]Window
	principals map[int64]Principal
	tokens     map[int64]APIToken

	nextSpaceID     int64
	nextPrincipalID int64
	nextTokenID     int64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data: &memData{
			spaces:          make(map[int64]Space),
			windows:         make(map[uuid.UUID]Window),
			principals:      make(map[int64]Principal),
			tokens:          make(map[int64]APIToken),
			nextSpaceID:     1,
			nextPrincipalID: 1,
			nextTokenID:     1,
		},
		hub: newChangeHub(),
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		spaces:          make(map[int64]Space, len(d.spaces)),
		windows:         make(map[uuid.UUID]Window, len(d.windows)),
		principals:      make(map[int64]Principal, len(d.principals)),
		tokens:          make(map[int64]APIToken, len(d.tokens)),
		nextSpaceID:     d.nextSpaceID,
		nextPrincipalID: d.nextPrincipalID,
		nextTokenID:     d.nextTokenID,
	}
	for k, v := range d.spaces {
		c.spaces[k] = v
	}
	for k, v := range d.windows {
		c.windows[k] = v
	}
	for k, v := range d.principals {
		c.principals[k] = v
	}
	for k, v := range d.tokens {
		c.tokens[k] = v
	}
	return c
}

type memTx struct {
	data    *memData
	changes *[]Change
}

func (t *memTx) Spaces() SpaceRepo         { return &memSpaces{t} }
func (t *memTx) Windows() WindowRepo       { return &memWindows{t} }
func (t *memTx) Principals() PrincipalRepo { return &memPrincipals{t} }
func (t *memTx) Tokens() TokenRepo         { return &memTokens{t} }

func (t *memTx) record(col Collection, op Op, id string) {
	if t.changes != nil {
		*t.changes = append(*t.changes, Change{Collection: col, Op: op, ID: id})
	}
}

func (m *Memory) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	snapshot := m.data.clone()
	m.mu.Unlock()

	return fn(&memTx{data: snapshot})
}

func (m *Memory) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.data.clone()
	var changes []Change
	if err := fn(&memTx{data: work, changes: &changes}); err != nil {
		return err
	}
	m.data = work
	m.hub.publish(changes)
	return nil
}

func (m *Memory) Subscribe() (<-chan Change, func()) { return m.hub.subscribe() }

func (m *Memory) HealthCheck(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Close() {}

// memSpaces

type memSpaces struct{ tx *memTx }

func (r *memSpaces) Create(ctx context.Context, label string) (*Space, error) {
	d := r.tx.data
	s := Space{ID: d.nextSpaceID, Label: label, CreatedAt: time.Now()}
	d.nextSpaceID++
	d.spaces[s.ID] = s
	r.tx.record(CollectionSpaces, OpCreated, formatID(s.ID))
	return &s, nil
}

func (r *memSpaces) Get(ctx context.Context, id int64) (*Space, error) {
	s, ok := r.tx.data.spaces[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *memSpaces) List(ctx context.Context) ([]Space, error) {
	out := make([]Space, 0, len(r.tx.data.spaces))
	for _, s := range r.tx.data.spaces {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memSpaces) SetOwner(ctx context.Context, id int64, ownerID *int64) error {
	d := r.tx.data
	s, ok := d.spaces[id]
	if !ok {
		return ErrNotFound
	}
	s.OwnerID = ownerID
	d.spaces[id] = s
	r.tx.record(CollectionSpaces, OpUpdated, formatID(id))
	return nil
}

func (r *memSpaces) OwnedBy(ctx context.Context, principalID int64) (*Space, error) {
	for _, s := range r.tx.data.spaces {
		if s.OwnerID != nil && *s.OwnerID == principalID {
			match := s
			return &match, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memSpaces) Delete(ctx context.Context, id int64) error {
	d := r.tx.data
	if _, ok := d.spaces[id]; !ok {
		return ErrNotFound
	}
	delete(d.spaces, id)
	r.tx.record(CollectionSpaces, OpDeleted, formatID(id))
	for wid, w := range d.windows {
		if w.SpaceID == id {
			delete(d.windows, wid)
			r.tx.record(CollectionWindows, OpDeleted, wid.String())
		}
	}
	return nil
}

// memWindows

type memWindows struct{ tx *memTx }

func (r *memWindows) Create(ctx context.Context, w Window) (*Window, error) {
	d := r.tx.data
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	w.Version = 1
	w.CreatedAt = time.Now()
	d.windows[w.ID] = w
	r.tx.record(CollectionWindows, OpCreated, w.ID.String())
	return &w, nil
}

func (r *memWindows) Get(ctx context.Context, id uuid.UUID) (*Window, error) {
	w, ok := r.tx.data.windows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &w, nil
}

func (r *memWindows) ListBySpace(ctx context.Context, spaceID int64) ([]Window, error) {
	var out []Window
	for _, w := range r.tx.data.windows {
		if w.SpaceID == spaceID {
			out = append(out, w)
		}
	}
	sortWindows(out)
	return out, nil
}

func (r *memWindows) ListAll(ctx context.Context) ([]Window, error) {
	out := make([]Window, 0, len(r.tx.data.windows))
	for _, w := range r.tx.data.windows {
		out = append(out, w)
	}
	sortWindows(out)
	return out, nil
}

func (r *memWindows) ListClaimedBy(ctx context.Context, principalID int64) ([]Window, error) {
	var out []Window
	for _, w := range r.tx.data.windows {
		if w.ClaimantID != nil && *w.ClaimantID == principalID {
			out = append(out, w)
		}
	}
	sortWindows(out)
	return out, nil
}

func (r *memWindows) SetClaimant(ctx context.Context, id uuid.UUID, version int64, claimantID *int64) (*Window, error) {
	d := r.tx.data
	w, ok := d.windows[id]
	if !ok {
		return nil, ErrNotFound
	}
	if w.Version != version {
		return nil, ErrVersionMismatch
	}
	w.ClaimantID = claimantID
	w.Version++
	d.windows[id] = w
	r.tx.record(CollectionWindows, OpUpdated, id.String())
	return &w, nil
}

func (r *memWindows) Delete(ctx context.Context, id uuid.UUID, version int64) error {
	d := r.tx.data
	w, ok := d.windows[id]
	if !ok {
		return ErrNotFound
	}
	if w.Version != version {
		return ErrVersionMismatch
	}
	delete(d.windows, id)
	r.tx.record(CollectionWindows, OpDeleted, id.String())
	return nil
}

func (r *memWindows) DeleteExpired(ctx context.Context, before civil.Date) (int64, error) {
	d := r.tx.data
	var n int64
	for id, w := range d.windows {
		if w.ClaimantID == nil && w.End.Before(before) {
			delete(d.windows, id)
			r.tx.record(CollectionWindows, OpDeleted, id.String())
			n++
		}
	}
	return n, nil
}

// memPrincipals

type memPrincipals struct{ tx *memTx }

func (r *memPrincipals) UpsertBySubject(ctx context.Context, subject, displayName string) (*Principal, error) {
	d := r.tx.data
	now := time.Now()
	for id, p := range d.principals {
		if p.Subject == subject {
			p.DisplayName = displayName
			p.LastLoginAt = now
			d.principals[id] = p
			r.tx.record(CollectionPrincipals, OpUpdated, formatID(id))
			return &p, nil
		}
	}

	role := RoleMember
	if len(d.principals) == 0 {
		role = RoleAdmin
	}
	p := Principal{
		ID:          d.nextPrincipalID,
		Subject:     subject,
		DisplayName: displayName,
		Role:        role,
		CreatedAt:   now,
		LastLoginAt: now,
	}
	d.nextPrincipalID++
	d.principals[p.ID] = p
	r.tx.record(CollectionPrincipals, OpCreated, formatID(p.ID))
	return &p, nil
}

func (r *memPrincipals) Get(ctx context.Context, id int64) (*Principal, error) {
	p, ok := r.tx.data.principals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *memPrincipals) List(ctx context.Context) ([]Principal, error) {
	out := make([]Principal, 0, len(r.tx.data.principals))
	for _, p := range r.tx.data.principals {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// memTokens

type memTokens struct{ tx *memTx }

func (r *memTokens) Create(ctx context.Context, t APIToken) (*APIToken, error) {
	d := r.tx.data
	t.ID = d.nextTokenID
	d.nextTokenID++
	t.CreatedAt = time.Now()
	d.tokens[t.ID] = t
	return &t, nil
}

func (r *memTokens) Get(ctx context.Context, id int64) (*APIToken, error) {
	t, ok := r.tx.data.tokens[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (r *memTokens) ListByPrincipal(ctx context.Context, principalID int64) ([]APIToken, error) {
	var out []APIToken
	for _, t := range r.tx.data.tokens {
		if t.PrincipalID == principalID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memTokens) Revoke(ctx context.Context, id int64) error {
	d := r.tx.data
	t, ok := d.tokens[id]
	if !ok {
		return ErrNotFound
	}
	if t.RevokedAt == nil {
		now := time.Now()
		t.RevokedAt = &now
		d.tokens[id] = t
	}
	return nil
}

func sortWindows(ws []Window) {
	sort.Slice(ws, func(i, j int) bool {
		if ws[i].Start != ws[j].Start {
			return ws[i].Start.Before(ws[j].Start)
		}
		return ws[i].ID.String() < ws[j].ID.String()
	})
}
