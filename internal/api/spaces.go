package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	httperrors "github.com/spotshare/spotshare/internal/http/errors"
)

// ListSpaces returns every space with its windows.
func (h *Handler) ListSpaces(w http.ResponseWriter, r *http.Request) {
	listing, err := h.svc.ListSpaces(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]spaceView, 0, len(listing))
	for _, sw := range listing {
		out = append(out, spaceView{
			ID:      sw.Space.ID,
			Label:   sw.Space.Label,
			OwnerID: sw.Space.OwnerID,
			Windows: viewWindows(sw.Windows),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateSpace registers a new parking space. Admin only.
func (h *Handler) CreateSpace(w http.ResponseWriter, r *http.Request) {
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

	space, err := h.svc.CreateSpace(r.Context(), body.Label)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, spaceView{ID: space.ID, Label: space.Label, OwnerID: space.OwnerID, Windows: []windowView{}})
}

// DeleteSpace removes a space and all its windows. Admin only.
func (h *Handler) DeleteSpace(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteSpace(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AssignOwner sets a space's owner. Admin only.
func (h *Handler) AssignOwner(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		PrincipalID int64 `json:"principal_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := h.svc.AssignOwner(r.Context(), id, body.PrincipalID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearOwner unassigns a space's owner. Admin only.
func (h *Handler) ClearOwner(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.ClearOwner(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httperrors.JSON(w, http.StatusNotFound, "not_found", "resource not found")
		return 0, false
	}
	return id, true
}
