package sched

import (
	"context"
	"errors"
	"fmt"

	"github.com/spotshare/spotshare/internal/store"
)

// Registry operations manage the space pool and owner assignments. A
// principal may own at most one space at a time.

// CreateSpace adds a space to the pool.
func (s *Service) CreateSpace(ctx context.Context, label string) (*store.Space, error) {
	var created *store.Space
	err := s.co.Mutate(ctx, func(tx store.Tx) error {
		sp, err := tx.Spaces().Create(ctx, label)
		if err != nil {
			return err
		}
		created = sp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// DeleteSpace removes a space and all of its windows in one transaction.
func (s *Service) DeleteSpace(ctx context.Context, spaceID int64) error {
	return s.co.Mutate(ctx, func(tx store.Tx) error {
		return tx.Spaces().Delete(ctx, spaceID)
	})
}

// AssignOwner makes principalID the owner of the space. A principal who
// already owns a space is rejected with ErrAlreadyOwnsSpace.
func (s *Service) AssignOwner(ctx context.Context, spaceID, principalID int64) error {
	return s.co.Mutate(ctx, func(tx store.Tx) error {
		owned, err := tx.Spaces().OwnedBy(ctx, principalID)
		switch {
		case err == nil:
			if owned.ID == spaceID {
				return nil
			}
			return ErrAlreadyOwnsSpace
		case !errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("check ownership: %w", err)
		}
		return tx.Spaces().SetOwner(ctx, spaceID, &principalID)
	})
}

// ClearOwner removes the space's owner assignment.
func (s *Service) ClearOwner(ctx context.Context, spaceID int64) error {
	return s.co.Mutate(ctx, func(tx store.Tx) error {
		return tx.Spaces().SetOwner(ctx, spaceID, nil)
	})
}

// OwnedSpaceOf returns the space a principal owns, or ErrNotFound.
func (s *Service) OwnedSpaceOf(ctx context.Context, principalID int64) (*store.Space, error) {
	var found *store.Space
	err := s.co.Read(ctx, func(tx store.Tx) error {
		sp, err := tx.Spaces().OwnedBy(ctx, principalID)
		if err != nil {
			return err
		}
		found = sp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}
