package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spotshare/spotshare/internal/config"
)

func TestCSRFSkippedForBearerClients(t *testing.T) {
	cfg := &config.Config{BaseURL: "http://localhost:8080"}
	mw := csrfForSessions(cfg)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Cookie session without a CSRF header is rejected.
	rec := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/spaces", nil)
	r.AddCookie(&http.Cookie{Name: "spotshare_csrf", Value: "tok"})
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusForbidden {
		t.Errorf("cookie client status = %d, want 403", rec.Code)
	}

	// Bearer clients carry no ambient credentials and bypass the check.
	rec = httptest.NewRecorder()
	r = httptest.NewRequest("POST", "/api/spaces", nil)
	r.Header.Set("Authorization", "Bearer st_1.secret")
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Errorf("bearer client status = %d, want 200", rec.Code)
	}
}
