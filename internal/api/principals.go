package api

import (
	"net/http"

	"github.com/spotshare/spotshare/internal/store"
)

// ListPrincipals returns the principal directory.
func (h *Handler) ListPrincipals(w http.ResponseWriter, r *http.Request) {
	var principals []store.Principal
	err := h.st.View(r.Context(), func(tx store.Tx) error {
		ps, lerr := tx.Principals().List(r.Context())
		if lerr != nil {
			return lerr
		}
		principals = ps
		return nil
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]principalView, 0, len(principals))
	for _, p := range principals {
		out = append(out, principalView{ID: p.ID, DisplayName: p.DisplayName, Role: string(p.Role)})
	}
	writeJSON(w, http.StatusOK, out)
}
