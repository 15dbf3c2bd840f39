// Package api serves the JSON surface over the scheduling engine. Handlers
// translate HTTP into engine calls and typed engine errors back into
// statuses; they hold no domain logic of their own.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	httperrors "github.com/spotshare/spotshare/internal/http/errors"
	"github.com/spotshare/spotshare/internal/sched"
	"github.com/spotshare/spotshare/internal/store"
)

// TokenService is the slice of the auth layer the token endpoints use.
type TokenService interface {
	MintToken(ctx context.Context, principalID int64, label string) (string, *store.APIToken, error)
	RevokeToken(ctx context.Context, principalID, tokenID int64) error
	ListTokens(ctx context.Context, principalID int64) ([]store.APIToken, error)
}

// Handler carries the collaborators the JSON endpoints need.
type Handler struct {
	svc    *sched.Service
	tokens TokenService
	st     store.Store
}

// NewHandler builds the API handler set.
func NewHandler(svc *sched.Service, tokens TokenService, st store.Store) *Handler {
	return &Handler{svc: svc, tokens: tokens, st: st}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainError maps engine errors onto HTTP statuses. Anything not in
// the taxonomy is a 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sched.ErrNotFound):
		httperrors.JSON(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, sched.ErrNotEligible):
		httperrors.JSON(w, http.StatusForbidden, "not_eligible", err.Error())
	case errors.Is(err, sched.ErrInvalidRange):
		httperrors.JSON(w, http.StatusUnprocessableEntity, "invalid_range", err.Error())
	case errors.Is(err, sched.ErrDayOutOfRange):
		httperrors.JSON(w, http.StatusUnprocessableEntity, "day_out_of_range", err.Error())
	case errors.Is(err, sched.ErrOverlapWithClaimed):
		httperrors.JSON(w, http.StatusConflict, "overlap_with_claimed", err.Error())
	case errors.Is(err, sched.ErrAlreadyClaimed):
		httperrors.JSON(w, http.StatusConflict, "already_claimed", err.Error())
	case errors.Is(err, sched.ErrAlreadyOwnsSpace):
		httperrors.JSON(w, http.StatusConflict, "already_owns_space", err.Error())
	case errors.Is(err, sched.ErrConflict):
		httperrors.JSON(w, http.StatusConflict, "conflict", err.Error())
	default:
		httperrors.InternalError(w, r, err, "request failed")
	}
}

// decodeBody reads a small JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		httperrors.BadRequest(w, r, err, "malformed request body")
		return false
	}
	return true
}

type windowView struct {
	ID         string `json:"id"`
	SpaceID    int64  `json:"space_id"`
	Start      string `json:"start"`
	End        string `json:"end"`
	ClaimantID *int64 `json:"claimant_id,omitempty"`
	Version    int64  `json:"version"`
}

func viewWindow(w store.Window) windowView {
	return windowView{
		ID:         w.ID.String(),
		SpaceID:    w.SpaceID,
		Start:      w.Start.String(),
		End:        w.End.String(),
		ClaimantID: w.ClaimantID,
		Version:    w.Version,
	}
}

func viewWindows(ws []store.Window) []windowView {
	out := make([]windowView, 0, len(ws))
	for _, w := range ws {
		out = append(out, viewWindow(w))
	}
	return out
}

type spaceView struct {
	ID      int64        `json:"id"`
	Label   string       `json:"label"`
	OwnerID *int64       `json:"owner_id,omitempty"`
	Windows []windowView `json:"windows"`
}

type principalView struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type tokenView struct {
	ID        int64      `json:"id"`
	Label     string     `json:"label"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}
