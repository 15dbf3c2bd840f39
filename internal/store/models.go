package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/spotshare/spotshare/internal/civil"
)

// Principal is an authenticated actor. Spaces and windows reference
// principals by id only; the record itself is maintained by the auth layer.
type Principal struct {
	ID          int64
	Subject     string
	DisplayName string
	Role        Role
	CreatedAt   time.Time
	LastLoginAt time.Time
}

// Role controls access to administrative operations.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Space is a parking space with at most one assigned owner. OwnerID is a
// weak reference to a principal; nil means unassigned.
type Space struct {
	ID        int64
	Label     string
	OwnerID   *int64
	CreatedAt time.Time
}

// Window is a contiguous inclusive date range during which a space is
// offered. A non-nil ClaimantID means the window is claimed, and a claimed
// window always spans exactly one day. Version increments on every mutation
// and guards optimistic updates.
type Window struct {
	ID         uuid.UUID
	SpaceID    int64
	Start      civil.Date
	End        civil.Date
	ClaimantID *int64
	Version    int64
	CreatedAt  time.Time
}

// Claimed reports whether the window has a claimant.
func (w Window) Claimed() bool { return w.ClaimantID != nil }

// Contains reports whether day falls inside the window's inclusive range.
func (w Window) Contains(day civil.Date) bool {
	return !day.Before(w.Start) && !day.After(w.End)
}

// Days returns the number of calendar days the window spans.
func (w Window) Days() int { return w.Start.DaysUntil(w.End) + 1 }

// APIToken is a bearer credential for non-browser clients. Only the bcrypt
// hash of the secret is stored.
type APIToken struct {
	ID          int64
	PrincipalID int64
	Label       string
	SecretHash  string
	CreatedAt   time.Time
	RevokedAt   *time.Time
}

// Active reports whether the token can still authenticate.
func (t APIToken) Active() bool { return t.RevokedAt == nil }
