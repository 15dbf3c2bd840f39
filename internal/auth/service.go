package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/spotshare/spotshare/internal/config"
	httperrors "github.com/spotshare/spotshare/internal/http/errors"
	"github.com/spotshare/spotshare/internal/store"
)

const stateCookieName = "spotshare_oauth_state"

// Service encapsulates OIDC login, session resolution, and API token
// authentication. It is the identity collaborator: the scheduling core only
// ever sees principal ids resolved here.
type Service struct {
	cfg      *config.Config
	st       store.Store
	sessions *SessionManager
	verifier *oidc.IDTokenVerifier
	oauth    oauth2.Config
}

// NewService discovers the OIDC provider and prepares the OAuth flow.
func NewService(ctx context.Context, cfg *config.Config, st store.Store, sessions *SessionManager) (*Service, error) {
	provider, err := oidc.NewProvider(ctx, cfg.OAuth.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}

	return &Service{
		cfg:      cfg,
		st:       st,
		sessions: sessions,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.OAuth.ClientID}),
		oauth: oauth2.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.BaseURL + cfg.OAuth.RedirectPath,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
	}, nil
}

// BeginOAuth starts the authorization flow with a state nonce.
func (s *Service) BeginOAuth(w http.ResponseWriter, r *http.Request) {
	state, err := randomToken(16)
	if err != nil {
		httperrors.InternalError(w, r, err, "generate oauth state")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   s.sessions.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.oauth.AuthCodeURL(state), http.StatusFound)
}

// HandleOAuthCallback validates state, exchanges the code, upserts the
// principal, and starts a session.
func (s *Service) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		httperrors.JSON(w, http.StatusBadRequest, "oauth_state", "invalid oauth state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1})

	token, err := s.oauth.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		httperrors.InternalError(w, r, err, "exchange oauth code")
		return
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		httperrors.JSON(w, http.StatusBadGateway, "oauth_token", "provider returned no id_token")
		return
	}
	idToken, err := s.verifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		httperrors.InternalError(w, r, err, "verify id token")
		return
	}

	var claims struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		httperrors.InternalError(w, r, err, "parse id token claims")
		return
	}
	displayName := claims.Name
	if displayName == "" {
		displayName = claims.Email
	}
	if displayName == "" {
		displayName = idToken.Subject
	}

	var principal *store.Principal
	err = s.st.Update(r.Context(), func(tx store.Tx) error {
		p, uerr := tx.Principals().UpsertBySubject(r.Context(), idToken.Subject, displayName)
		if uerr != nil {
			return uerr
		}
		principal = p
		return nil
	})
	if err != nil {
		httperrors.InternalError(w, r, err, "upsert principal")
		return
	}

	if err := s.sessions.Issue(w, principal.ID); err != nil {
		httperrors.InternalError(w, r, err, "issue session")
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout clears the session cookie.
func (s *Service) Logout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// RequireAuth resolves the caller's principal from a bearer token or a
// session cookie and rejects unauthenticated requests.
func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := s.principalFromBearer(r); p != nil {
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
			return
		}
		if pid, ok := s.sessions.CurrentPrincipalID(r); ok {
			if p := s.lookupPrincipal(r.Context(), pid); p != nil {
				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
				return
			}
		}
		httperrors.JSON(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
	})
}

// RequireAdmin allows only admin principals through. It must run inside
// RequireAuth.
func (s *Service) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok || p.Role != store.RoleAdmin {
			httperrors.JSON(w, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionUsesCookies reports whether a request authenticated via session
// cookie rather than bearer token; cookie-authenticated mutations need CSRF
// protection, token-authenticated ones do not.
func SessionUsesCookies(r *http.Request) bool {
	return r.Header.Get("Authorization") == ""
}

func (s *Service) lookupPrincipal(ctx context.Context, id int64) *store.Principal {
	var principal *store.Principal
	err := s.st.View(ctx, func(tx store.Tx) error {
		p, verr := tx.Principals().Get(ctx, id)
		if verr != nil {
			return verr
		}
		principal = p
		return nil
	})
	if err != nil {
		return nil
	}
	return principal
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
