package auth

import (
	"crypto/sha256"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/spotshare/spotshare/internal/config"
)

const sessionLifetime = 24 * time.Hour

// SessionManager manages browser sessions backed by an encrypted cookie.
type SessionManager struct {
	cookieName string
	codec      *securecookie.SecureCookie
	secure     bool
}

func NewSessionManager(cfg *config.Config) *SessionManager {
	// Derive both keys from the configured secret; SHA-256 yields an
	// AES-256 sized block key.
	hash := sha256.Sum256([]byte(cfg.Session.Secret))
	sc := securecookie.New(hash[:], hash[:])
	sc.MaxAge(int(sessionLifetime / time.Second))
	sc.SetSerializer(securecookie.JSONEncoder{})

	secure := true
	if base, err := url.Parse(cfg.BaseURL); err == nil && base.Scheme != "https" {
		secure = false
	}

	return &SessionManager{
		cookieName: "spotshare_session",
		codec:      sc,
		secure:     secure,
	}
}

// Issue sets a session cookie for a principal.
func (m *SessionManager) Issue(w http.ResponseWriter, principalID int64) error {
	value := map[string]any{
		"principal_id": principalID,
		"exp":          time.Now().Add(sessionLifetime).Unix(),
	}

	encoded, err := m.codec.Encode(m.cookieName, value)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    encoded,
		Path:     "/",
		Expires:  time.Now().Add(sessionLifetime),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear removes the session cookie.
func (m *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:    m.cookieName,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
		Secure:  m.secure,
	})
}

// CurrentPrincipalID extracts the principal ID from the request session if
// present and unexpired.
func (m *SessionManager) CurrentPrincipalID(r *http.Request) (int64, bool) {
	c, err := r.Cookie(m.cookieName)
	if err != nil {
		return 0, false
	}

	var value map[string]any
	if err := m.codec.Decode(m.cookieName, c.Value, &value); err != nil {
		return 0, false
	}

	exp, ok := value["exp"].(float64)
	if !ok || time.Unix(int64(exp), 0).Before(time.Now()) {
		return 0, false
	}

	pid, ok := value["principal_id"].(float64)
	if !ok {
		return 0, false
	}

	return int64(pid), true
}
