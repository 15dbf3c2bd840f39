package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/spotshare/spotshare/internal/auth"
	"github.com/spotshare/spotshare/internal/civil"
	httperrors "github.com/spotshare/spotshare/internal/http/errors"
	"github.com/spotshare/spotshare/internal/metrics"
	"github.com/spotshare/spotshare/internal/sched"
)

// ProposeWindow offers a date range on a space. A clean range is inserted
// right away; overlap with an unclaimed window comes back as 409 with a
// proposal id the owner can confirm.
func (h *Handler) ProposeWindow(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httperrors.JSON(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}
	spaceID, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}

	var body struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	start, err := civil.Parse(body.Start)
	if err != nil {
		httperrors.BadRequest(w, r, err, "start must be YYYY-MM-DD")
		return
	}
	end, err := civil.Parse(body.End)
	if err != nil {
		httperrors.BadRequest(w, r, err, "end must be YYYY-MM-DD")
		return
	}

	decision, err := h.svc.ProposeMarkAvailable(r.Context(), spaceID, actor.ID, start, end)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if decision.Outcome == sched.MarkNeedsConfirmation {
		writeJSON(w, http.StatusConflict, struct {
			Outcome    sched.MarkOutcome `json:"outcome"`
			ProposalID string            `json:"proposal_id"`
			Conflict   windowView        `json:"conflict"`
		}{decision.Outcome, decision.ProposalID.String(), viewWindow(*decision.Conflict)})
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Outcome sched.MarkOutcome `json:"outcome"`
		Window  windowView        `json:"window"`
	}{decision.Outcome, viewWindow(*decision.Window)})
}

// ConfirmProposal replaces the conflicting window with the proposed range.
func (h *Handler) ConfirmProposal(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httperrors.JSON(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}
	proposalID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	replacement, err := h.svc.ConfirmReplace(r.Context(), proposalID, actor.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewWindow(*replacement))
}

// ListOpenWindows returns unclaimed windows intersecting [from, to].
func (h *Handler) ListOpenWindows(w http.ResponseWriter, r *http.Request) {
	from, err := civil.Parse(r.URL.Query().Get("from"))
	if err != nil {
		httperrors.BadRequest(w, r, err, "from must be YYYY-MM-DD")
		return
	}
	to, err := civil.Parse(r.URL.Query().Get("to"))
	if err != nil {
		httperrors.BadRequest(w, r, err, "to must be YYYY-MM-DD")
		return
	}

	windows, err := h.svc.ListOpenWindows(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewWindows(windows))
}

// ClaimDay claims one day inside a window for the caller, splitting the
// window around the claimed day.
func (h *Handler) ClaimDay(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httperrors.JSON(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}
	windowID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var body struct {
		Day string `json:"day"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	day, err := civil.Parse(body.Day)
	if err != nil {
		httperrors.BadRequest(w, r, err, "day must be YYYY-MM-DD")
		return
	}

	set, err := h.svc.ClaimDay(r.Context(), windowID, day, actor.ID)
	if err != nil {
		metrics.CountClaimOutcome(claimOutcomeLabel(err))
		writeDomainError(w, r, err)
		return
	}
	metrics.CountClaimOutcome("won")

	out := struct {
		Claimed windowView  `json:"claimed"`
		Before  *windowView `json:"before,omitempty"`
		After   *windowView `json:"after,omitempty"`
	}{Claimed: viewWindow(*set.Claimed)}
	if set.Before != nil {
		v := viewWindow(*set.Before)
		out.Before = &v
	}
	if set.After != nil {
		v := viewWindow(*set.After)
		out.After = &v
	}
	writeJSON(w, http.StatusOK, out)
}

// Unclaim releases the caller's claim; the day stays offered.
func (h *Handler) Unclaim(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httperrors.JSON(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}
	windowID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	released, err := h.svc.Unclaim(r.Context(), windowID, actor.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewWindow(*released))
}

// DeleteWindow retracts an unclaimed offer. Owner only.
func (h *Handler) DeleteWindow(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httperrors.JSON(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}
	windowID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.svc.UndoAvailability(r.Context(), windowID, actor.ID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func claimOutcomeLabel(err error) string {
	switch {
	case errors.Is(err, sched.ErrAlreadyClaimed), errors.Is(err, sched.ErrConflict):
		return "lost"
	case errors.Is(err, sched.ErrDayOutOfRange), errors.Is(err, sched.ErrNotEligible), errors.Is(err, sched.ErrNotFound):
		return "rejected"
	default:
		return "error"
	}
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httperrors.JSON(w, http.StatusNotFound, "not_found", "resource not found")
		return uuid.UUID{}, false
	}
	return id, true
}
