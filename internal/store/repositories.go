package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/spotshare/spotshare/internal/civil"
)

// Store is the persistence collaborator. All reads happen through View and
// all writes through Update; Update runs its closure inside a serializable
// transaction, so concurrent mutations of the same rows either serialize or
// fail with ErrSerialization. Committed mutations are announced on the
// change feed.
type Store interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, fn func(Tx) error) error

	// Subscribe returns a channel of committed-change notifications and a
	// cancel function. Events carry no ordering guarantee stronger than
	// "eventually reflects latest committed state"; slow consumers lose
	// events rather than block writers.
	Subscribe() (<-chan Change, func())

	HealthCheck(ctx context.Context) error
	Close()
}

// Tx exposes the repositories bound to one transaction (or read snapshot).
type Tx interface {
	Spaces() SpaceRepo
	Windows() WindowRepo
	Principals() PrincipalRepo
	Tokens() TokenRepo
}

// SpaceRepo manages the fixed pool of parking spaces.
type SpaceRepo interface {
	Create(ctx context.Context, label string) (*Space, error)
	Get(ctx context.Context, id int64) (*Space, error)
	List(ctx context.Context) ([]Space, error)
	// SetOwner assigns or clears (nil) a space's owner.
	SetOwner(ctx context.Context, id int64, ownerID *int64) error
	// OwnedBy returns the space owned by a principal, or ErrNotFound.
	OwnedBy(ctx context.Context, principalID int64) (*Space, error)
	// Delete removes the space and all its windows.
	Delete(ctx context.Context, id int64) error
}

// WindowRepo manages availability windows. Mutations that name a version
// fail with ErrVersionMismatch when the stored version differs.
type WindowRepo interface {
	Create(ctx context.Context, w Window) (*Window, error)
	Get(ctx context.Context, id uuid.UUID) (*Window, error)
	ListBySpace(ctx context.Context, spaceID int64) ([]Window, error)
	ListAll(ctx context.Context) ([]Window, error)
	ListClaimedBy(ctx context.Context, principalID int64) ([]Window, error)
	SetClaimant(ctx context.Context, id uuid.UUID, version int64, claimantID *int64) (*Window, error)
	Delete(ctx context.Context, id uuid.UUID, version int64) error
	// DeleteExpired removes unclaimed windows ending strictly before the
	// given day and reports how many were removed.
	DeleteExpired(ctx context.Context, before civil.Date) (int64, error)
}

// PrincipalRepo manages the principal directory.
type PrincipalRepo interface {
	// UpsertBySubject creates or refreshes a principal keyed by its OIDC
	// subject. The first principal ever created becomes an admin.
	UpsertBySubject(ctx context.Context, subject, displayName string) (*Principal, error)
	Get(ctx context.Context, id int64) (*Principal, error)
	List(ctx context.Context) ([]Principal, error)
}

// TokenRepo manages API bearer tokens.
type TokenRepo interface {
	Create(ctx context.Context, t APIToken) (*APIToken, error)
	Get(ctx context.Context, id int64) (*APIToken, error)
	ListByPrincipal(ctx context.Context, principalID int64) ([]APIToken, error)
	Revoke(ctx context.Context, id int64) error
}
