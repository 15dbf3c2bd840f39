package api

import (
	"net/http"
	"strings"

	"github.com/spotshare/spotshare/internal/auth"
	httperrors "github.com/spotshare/spotshare/internal/http/errors"
)

// ListTokens returns the caller's API tokens.
func (h *Handler) ListTokens(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httperrors.JSON(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}

	tokens, err := h.tokens.ListTokens(r.Context(), actor.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]tokenView, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, tokenView{ID: t.ID, Label: t.Label, CreatedAt: t.CreatedAt, RevokedAt: t.RevokedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

// MintToken creates an API token and returns the plaintext credential once.
func (h *Handler) MintToken(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httperrors.JSON(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}

	var body struct {
		Label string `json:"label"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	body.Label = strings.TrimSpace(body.Label)
	if body.Label == "" {
		httperrors.JSON(w, http.StatusUnprocessableEntity, "invalid_label", "label is required")
		return
	}

	plaintext, created, err := h.tokens.MintToken(r.Context(), actor.ID, body.Label)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Token string    `json:"token"`
		Meta  tokenView `json:"meta"`
	}{plaintext, tokenView{ID: created.ID, Label: created.Label, CreatedAt: created.CreatedAt}})
}

// RevokeToken revokes one of the caller's tokens.
func (h *Handler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httperrors.JSON(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}

	if err := h.tokens.RevokeToken(r.Context(), actor.ID, id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
