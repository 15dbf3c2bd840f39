package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/spotshare/spotshare/internal/auth"
	"github.com/spotshare/spotshare/internal/civil"
	"github.com/spotshare/spotshare/internal/sched"
	"github.com/spotshare/spotshare/internal/store"
)

type fixedClock struct{ day civil.Date }

func (c fixedClock) Today() civil.Date { return c.day }

// fakeTokens satisfies TokenService without bcrypt work; the real token
// logic is covered in the auth package.
type fakeTokens struct {
	minted  []string
	revoked []int64
}

func (f *fakeTokens) MintToken(_ context.Context, principalID int64, label string) (string, *store.APIToken, error) {
	f.minted = append(f.minted, label)
	return "st_1.secret", &store.APIToken{ID: 1, PrincipalID: principalID, Label: label}, nil
}

func (f *fakeTokens) RevokeToken(_ context.Context, _, tokenID int64) error {
	f.revoked = append(f.revoked, tokenID)
	return nil
}

func (f *fakeTokens) ListTokens(_ context.Context, principalID int64) ([]store.APIToken, error) {
	return []store.APIToken{{ID: 1, PrincipalID: principalID, Label: "ci"}}, nil
}

type fixture struct {
	t      *testing.T
	st     *store.Memory
	svc    *sched.Service
	tokens *fakeTokens
	router http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	t.Cleanup(func() { st.Close() })

	f := &fixture{
		t:      t,
		st:     st,
		svc:    sched.New(st, fixedClock{day: civil.MustParse("2026-03-09")}),
		tokens: &fakeTokens{},
	}
	h := NewHandler(f.svc, f.tokens, st)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(f.testAuth)

		r.Get("/spaces", h.ListSpaces)
		r.Get("/windows", h.ListOpenWindows)
		r.Get("/principals", h.ListPrincipals)
		r.Get("/events", h.Events)
		r.Post("/spaces/{id}/windows", h.ProposeWindow)
		r.Post("/proposals/{id}/confirm", h.ConfirmProposal)
		r.Post("/windows/{id}/claim", h.ClaimDay)
		r.Post("/windows/{id}/unclaim", h.Unclaim)
		r.Delete("/windows/{id}", h.DeleteWindow)
		r.Get("/tokens", h.ListTokens)
		r.Post("/tokens", h.MintToken)
		r.Delete("/tokens/{id}", h.RevokeToken)

		r.Group(func(r chi.Router) {
			r.Use((&auth.Service{}).RequireAdmin)
			r.Post("/spaces", h.CreateSpace)
			r.Delete("/spaces/{id}", h.DeleteSpace)
			r.Put("/spaces/{id}/owner", h.AssignOwner)
			r.Delete("/spaces/{id}/owner", h.ClearOwner)
		})
	})
	f.router = r
	return f
}

// testAuth resolves the principal named by the X-Principal-ID header, in
// place of the session and bearer middleware.
func (f *fixture) testAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("X-Principal-ID")
		if header == "" {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}
		id, err := strconv.ParseInt(header, 10, 64)
		if err != nil {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}
		var principal *store.Principal
		verr := f.st.View(r.Context(), func(tx store.Tx) error {
			p, gerr := tx.Principals().Get(r.Context(), id)
			if gerr != nil {
				return gerr
			}
			principal = p
			return nil
		})
		if verr != nil {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	})
}

func (f *fixture) addPrincipal(subject, name string) int64 {
	f.t.Helper()
	var id int64
	err := f.st.Update(context.Background(), func(tx store.Tx) error {
		p, uerr := tx.Principals().UpsertBySubject(context.Background(), subject, name)
		if uerr != nil {
			return uerr
		}
		id = p.ID
		return nil
	})
	if err != nil {
		f.t.Fatalf("add principal %s: %v", subject, err)
	}
	return id
}

func (f *fixture) addOwnedSpace(label string, owner int64) int64 {
	f.t.Helper()
	space, err := f.svc.CreateSpace(context.Background(), label)
	if err != nil {
		f.t.Fatalf("create space %s: %v", label, err)
	}
	if err := f.svc.AssignOwner(context.Background(), space.ID, owner); err != nil {
		f.t.Fatalf("assign owner: %v", err)
	}
	return space.ID
}

func (f *fixture) do(method, path string, principal int64, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			f.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if principal != 0 {
		req.Header.Set("X-Principal-ID", strconv.FormatInt(principal, 10))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[map[string]any](t, rec)
	code, _ := body["error"].(string)
	return code
}

func TestProposeWindowApplied(t *testing.T) {
	f := newFixture(t)
	owner := f.addPrincipal("admin", "Admin")
	spaceID := f.addOwnedSpace("P-01", owner)

	rec := f.do("POST", fmt.Sprintf("/api/spaces/%d/windows", spaceID), owner,
		map[string]string{"start": "2026-03-09", "end": "2026-03-13"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	resp := decode[struct {
		Outcome string     `json:"outcome"`
		Window  windowView `json:"window"`
	}](t, rec)
	if resp.Outcome != "applied" {
		t.Fatalf("outcome = %q", resp.Outcome)
	}
	if resp.Window.Start != "2026-03-09" || resp.Window.End != "2026-03-13" {
		t.Fatalf("window = %+v", resp.Window)
	}
}

func TestProposeWindowValidation(t *testing.T) {
	f := newFixture(t)
	owner := f.addPrincipal("admin", "Admin")
	member := f.addPrincipal("member", "Member")
	spaceID := f.addOwnedSpace("P-01", owner)
	path := fmt.Sprintf("/api/spaces/%d/windows", spaceID)

	if rec := f.do("POST", path, owner, map[string]string{"start": "2026-03-13", "end": "2026-03-09"}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("inverted range status = %d", rec.Code)
	}
	if rec := f.do("POST", path, owner, map[string]string{"start": "bogus", "end": "2026-03-09"}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d", rec.Code)
	}
	if rec := f.do("POST", path, member, map[string]string{"start": "2026-03-09", "end": "2026-03-13"}); rec.Code != http.StatusForbidden {
		t.Errorf("non-owner status = %d", rec.Code)
	}
	if rec := f.do("POST", "/api/spaces/999/windows", owner, map[string]string{"start": "2026-03-09", "end": "2026-03-13"}); rec.Code != http.StatusNotFound {
		t.Errorf("unknown space status = %d", rec.Code)
	}
}

func TestProposeConfirmReplaceFlow(t *testing.T) {
	f := newFixture(t)
	owner := f.addPrincipal("admin", "Admin")
	spaceID := f.addOwnedSpace("P-01", owner)
	path := fmt.Sprintf("/api/spaces/%d/windows", spaceID)

	if rec := f.do("POST", path, owner, map[string]string{"start": "2026-03-09", "end": "2026-03-13"}); rec.Code != http.StatusCreated {
		t.Fatalf("seed window status = %d", rec.Code)
	}

	rec := f.do("POST", path, owner, map[string]string{"start": "2026-03-11", "end": "2026-03-16"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("overlap status = %d, body %s", rec.Code, rec.Body)
	}
	conflictResp := decode[struct {
		Outcome    string     `json:"outcome"`
		ProposalID string     `json:"proposal_id"`
		Conflict   windowView `json:"conflict"`
	}](t, rec)
	if conflictResp.Outcome != "needs_confirmation" || conflictResp.ProposalID == "" {
		t.Fatalf("conflict response = %+v", conflictResp)
	}
	if conflictResp.Conflict.Start != "2026-03-09" {
		t.Fatalf("conflict window = %+v", conflictResp.Conflict)
	}

	confirm := f.do("POST", "/api/proposals/"+conflictResp.ProposalID+"/confirm", owner, nil)
	if confirm.Code != http.StatusCreated {
		t.Fatalf("confirm status = %d, body %s", confirm.Code, confirm.Body)
	}
	replacement := decode[windowView](t, confirm)
	if replacement.Start != "2026-03-11" || replacement.End != "2026-03-16" {
		t.Fatalf("replacement = %+v", replacement)
	}

	// single use
	if rec := f.do("POST", "/api/proposals/"+conflictResp.ProposalID+"/confirm", owner, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("second confirm status = %d", rec.Code)
	}
}

func TestProposeOverClaimedIsRejected(t *testing.T) {
	f := newFixture(t)
	owner := f.addPrincipal("admin", "Admin")
	claimant := f.addPrincipal("member", "Member")
	spaceID := f.addOwnedSpace("P-01", owner)

	decision, err := f.svc.ProposeMarkAvailable(context.Background(), spaceID, owner,
		civil.MustParse("2026-03-09"), civil.MustParse("2026-03-09"))
	if err != nil {
		t.Fatalf("seed window: %v", err)
	}
	if _, err := f.svc.ClaimDay(context.Background(), decision.Window.ID, civil.MustParse("2026-03-09"), claimant); err != nil {
		t.Fatalf("seed claim: %v", err)
	}

	rec := f.do("POST", fmt.Sprintf("/api/spaces/%d/windows", spaceID), owner,
		map[string]string{"start": "2026-03-09", "end": "2026-03-10"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "overlap_with_claimed" {
		t.Fatalf("code = %q", code)
	}
}

func TestClaimDayEndpoint(t *testing.T) {
	f := newFixture(t)
	owner := f.addPrincipal("admin", "Admin")
	claimant := f.addPrincipal("member", "Member")
	rival := f.addPrincipal("rival", "Rival")
	spaceID := f.addOwnedSpace("P-01", owner)

	decision, err := f.svc.ProposeMarkAvailable(context.Background(), spaceID, owner,
		civil.MustParse("2026-03-09"), civil.MustParse("2026-03-13"))
	if err != nil {
		t.Fatalf("seed window: %v", err)
	}
	windowID := decision.Window.ID.String()

	rec := f.do("POST", "/api/windows/"+windowID+"/claim", claimant, map[string]string{"day": "2026-03-11"})
	if rec.Code != http.StatusOK {
		t.Fatalf("claim status = %d, body %s", rec.Code, rec.Body)
	}
	set := decode[struct {
		Claimed windowView  `json:"claimed"`
		Before  *windowView `json:"before"`
		After   *windowView `json:"after"`
	}](t, rec)
	if set.Claimed.Start != "2026-03-11" || set.Claimed.End != "2026-03-11" || set.Claimed.ClaimantID == nil {
		t.Fatalf("claimed = %+v", set.Claimed)
	}
	if set.Before == nil || set.Before.End != "2026-03-10" {
		t.Fatalf("before = %+v", set.Before)
	}
	if set.After == nil || set.After.Start != "2026-03-12" {
		t.Fatalf("after = %+v", set.After)
	}

	rec = f.do("POST", "/api/windows/"+set.Claimed.ID+"/claim", rival, map[string]string{"day": "2026-03-11"})
	if rec.Code != http.StatusConflict {
		t.Errorf("already-claimed status = %d", rec.Code)
	}
	rec = f.do("POST", "/api/windows/"+set.After.ID+"/claim", rival, map[string]string{"day": "2026-03-20"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("out-of-range status = %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "day_out_of_range" {
		t.Errorf("out-of-range code = %q", code)
	}
	rec = f.do("POST", "/api/windows/not-a-uuid/claim", rival, map[string]string{"day": "2026-03-12"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("bad uuid status = %d", rec.Code)
	}
}

func TestUnclaimEndpoint(t *testing.T) {
	f := newFixture(t)
	owner := f.addPrincipal("admin", "Admin")
	claimant := f.addPrincipal("member", "Member")
	rival := f.addPrincipal("rival", "Rival")
	spaceID := f.addOwnedSpace("P-01", owner)

	decision, err := f.svc.ProposeMarkAvailable(context.Background(), spaceID, owner,
		civil.MustParse("2026-03-09"), civil.MustParse("2026-03-09"))
	if err != nil {
		t.Fatalf("seed window: %v", err)
	}
	set, err := f.svc.ClaimDay(context.Background(), decision.Window.ID, civil.MustParse("2026-03-09"), claimant)
	if err != nil {
		t.Fatalf("seed claim: %v", err)
	}
	windowID := set.Claimed.ID.String()

	if rec := f.do("POST", "/api/windows/"+windowID+"/unclaim", rival, nil); rec.Code != http.StatusForbidden {
		t.Errorf("foreign unclaim status = %d", rec.Code)
	}

	rec := f.do("POST", "/api/windows/"+windowID+"/unclaim", claimant, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unclaim status = %d, body %s", rec.Code, rec.Body)
	}
	released := decode[windowView](t, rec)
	if released.ClaimantID != nil {
		t.Fatalf("released window still claimed: %+v", released)
	}
}

func TestDeleteWindowEndpoint(t *testing.T) {
	f := newFixture(t)
	owner := f.addPrincipal("admin", "Admin")
	member := f.addPrincipal("member", "Member")
	spaceID := f.addOwnedSpace("P-01", owner)

	decision, err := f.svc.ProposeMarkAvailable(context.Background(), spaceID, owner,
		civil.MustParse("2026-03-09"), civil.MustParse("2026-03-13"))
	if err != nil {
		t.Fatalf("seed window: %v", err)
	}
	windowID := decision.Window.ID.String()

	if rec := f.do("DELETE", "/api/windows/"+windowID, member, nil); rec.Code != http.StatusForbidden {
		t.Errorf("non-owner delete status = %d", rec.Code)
	}
	if rec := f.do("DELETE", "/api/windows/"+windowID, owner, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("owner delete status = %d", rec.Code)
	}
	if rec := f.do("DELETE", "/api/windows/"+windowID, owner, nil); rec.Code != http.StatusNotFound {
		t.Errorf("repeat delete status = %d", rec.Code)
	}
}

func TestAdminOnlySpaceRoutes(t *testing.T) {
	f := newFixture(t)
	admin := f.addPrincipal("admin", "Admin")
	member := f.addPrincipal("member", "Member")

	if rec := f.do("POST", "/api/spaces", member, map[string]string{"label": "P-02"}); rec.Code != http.StatusForbidden {
		t.Errorf("member create status = %d", rec.Code)
	}

	rec := f.do("POST", "/api/spaces", admin, map[string]string{"label": "P-02"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin create status = %d, body %s", rec.Code, rec.Body)
	}
	created := decode[spaceView](t, rec)

	if rec := f.do("PUT", fmt.Sprintf("/api/spaces/%d/owner", created.ID), admin, map[string]int64{"principal_id": member}); rec.Code != http.StatusNoContent {
		t.Fatalf("assign owner status = %d, body %s", rec.Code, rec.Body)
	}

	list := f.do("GET", "/api/spaces", member, nil)
	spaces := decode[[]spaceView](t, list)
	if len(spaces) != 1 || spaces[0].OwnerID == nil || *spaces[0].OwnerID != member {
		t.Fatalf("spaces = %+v", spaces)
	}

	if rec := f.do("DELETE", fmt.Sprintf("/api/spaces/%d/owner", created.ID), admin, nil); rec.Code != http.StatusNoContent {
		t.Errorf("clear owner status = %d", rec.Code)
	}
	if rec := f.do("DELETE", fmt.Sprintf("/api/spaces/%d", created.ID), member, nil); rec.Code != http.StatusForbidden {
		t.Errorf("member delete status = %d", rec.Code)
	}
	if rec := f.do("DELETE", fmt.Sprintf("/api/spaces/%d", created.ID), admin, nil); rec.Code != http.StatusNoContent {
		t.Errorf("admin delete status = %d", rec.Code)
	}
}

func TestListOpenWindowsEndpoint(t *testing.T) {
	f := newFixture(t)
	owner := f.addPrincipal("admin", "Admin")
	claimant := f.addPrincipal("member", "Member")
	spaceID := f.addOwnedSpace("P-01", owner)

	decision, err := f.svc.ProposeMarkAvailable(context.Background(), spaceID, owner,
		civil.MustParse("2026-03-09"), civil.MustParse("2026-03-13"))
	if err != nil {
		t.Fatalf("seed window: %v", err)
	}
	if _, err := f.svc.ClaimDay(context.Background(), decision.Window.ID, civil.MustParse("2026-03-09"), claimant); err != nil {
		t.Fatalf("seed claim: %v", err)
	}

	rec := f.do("GET", "/api/windows?from=2026-03-09&to=2026-03-09", claimant, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	open := decode[[]windowView](t, rec)
	if len(open) != 0 {
		t.Fatalf("claimed day listed as open: %+v", open)
	}

	rec = f.do("GET", "/api/windows?from=2026-03-10&to=2026-03-13", claimant, nil)
	open = decode[[]windowView](t, rec)
	if len(open) != 1 || open[0].Start != "2026-03-10" {
		t.Fatalf("open windows = %+v", open)
	}

	if rec := f.do("GET", "/api/windows?from=2026-03-13&to=2026-03-09", claimant, nil); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("inverted range status = %d", rec.Code)
	}
}

func TestPrincipalAndTokenEndpoints(t *testing.T) {
	f := newFixture(t)
	admin := f.addPrincipal("admin", "Admin")
	f.addPrincipal("member", "Member")

	rec := f.do("GET", "/api/principals", admin, nil)
	principals := decode[[]principalView](t, rec)
	if len(principals) != 2 || principals[0].Role != "admin" {
		t.Fatalf("principals = %+v", principals)
	}

	rec = f.do("POST", "/api/tokens", admin, map[string]string{"label": "ci"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("mint status = %d", rec.Code)
	}
	minted := decode[struct {
		Token string    `json:"token"`
		Meta  tokenView `json:"meta"`
	}](t, rec)
	if minted.Token == "" || minted.Meta.Label != "ci" {
		t.Fatalf("minted = %+v", minted)
	}
	if len(f.tokens.minted) != 1 {
		t.Fatalf("token service not called")
	}

	if rec := f.do("DELETE", "/api/tokens/1", admin, nil); rec.Code != http.StatusNoContent {
		t.Errorf("revoke status = %d", rec.Code)
	}
	if len(f.tokens.revoked) != 1 || f.tokens.revoked[0] != 1 {
		t.Errorf("revoked = %v", f.tokens.revoked)
	}
}

func TestRequestsWithoutPrincipalAreRejected(t *testing.T) {
	f := newFixture(t)
	if rec := f.do("GET", "/api/spaces", 0, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}
