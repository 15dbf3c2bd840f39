package auth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/spotshare/spotshare/internal/store"
)

const tokenPrefix = "st_"

// MintToken creates an API token for the principal and returns the one-time
// plaintext credential alongside the stored record.
func (s *Service) MintToken(ctx context.Context, principalID int64, label string) (string, *store.APIToken, error) {
	secret, err := randomToken(32)
	if err != nil {
		return "", nil, fmt.Errorf("generate token secret: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash token secret: %w", err)
	}

	var created *store.APIToken
	err = s.st.Update(ctx, func(tx store.Tx) error {
		t, cerr := tx.Tokens().Create(ctx, store.APIToken{
			PrincipalID: principalID,
			Label:       label,
			SecretHash:  string(hash),
		})
		if cerr != nil {
			return cerr
		}
		created = t
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	plaintext := fmt.Sprintf("%s%d.%s", tokenPrefix, created.ID, secret)
	return plaintext, created, nil
}

// RevokeToken revokes one of the principal's own tokens.
func (s *Service) RevokeToken(ctx context.Context, principalID, tokenID int64) error {
	return s.st.Update(ctx, func(tx store.Tx) error {
		t, err := tx.Tokens().Get(ctx, tokenID)
		if err != nil {
			return err
		}
		if t.PrincipalID != principalID {
			return store.ErrNotFound
		}
		return tx.Tokens().Revoke(ctx, tokenID)
	})
}

// ListTokens returns the principal's tokens, revoked ones included.
func (s *Service) ListTokens(ctx context.Context, principalID int64) ([]store.APIToken, error) {
	var tokens []store.APIToken
	err := s.st.View(ctx, func(tx store.Tx) error {
		ts, lerr := tx.Tokens().ListByPrincipal(ctx, principalID)
		if lerr != nil {
			return lerr
		}
		tokens = ts
		return nil
	})
	return tokens, err
}

// principalFromBearer authenticates an Authorization: Bearer header. A nil
// return means the request carried no usable token.
func (s *Service) principalFromBearer(r *http.Request) *store.Principal {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil
	}
	body, ok := strings.CutPrefix(raw, tokenPrefix)
	if !ok {
		return nil
	}
	idPart, secret, ok := strings.Cut(body, ".")
	if !ok {
		return nil
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return nil
	}

	var principal *store.Principal
	verr := s.st.View(r.Context(), func(tx store.Tx) error {
		t, err := tx.Tokens().Get(r.Context(), id)
		if err != nil {
			return err
		}
		if !t.Active() {
			return store.ErrNotFound
		}
		if err := bcrypt.CompareHashAndPassword([]byte(t.SecretHash), []byte(secret)); err != nil {
			return store.ErrNotFound
		}
		p, err := tx.Principals().Get(r.Context(), t.PrincipalID)
		if err != nil {
			return err
		}
		principal = p
		return nil
	})
	if verr != nil {
		return nil
	}
	return principal
}
