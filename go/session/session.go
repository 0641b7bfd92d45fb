// Package session manages the signed login cookie. The cookie value is an
// HS256 JWT carrying the user's id and email; anything that fails
// verification is treated as logged out.
package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kiddobash/kiddobash.com/go/config"
)

const (
	// CookieName is the session cookie. LoginCookieName carries only the
	// opaque id of an in-flight login.
	CookieName      = "kiddobash_session"
	LoginCookieName = "kiddobash_login"

	sessionTTL = 7 * 24 * time.Hour
)

// Viewer is who is looking at a page: anonymous, or a verified user.
type Viewer struct {
	LoggedIn bool
	UserID   string
	Email    string
	Name     string
}

// Anonymous is the zero viewer.
var Anonymous = Viewer{}

type sessionClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs a session token for a verified user.
func Issue(cfg *config.Config, userID, email, name string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.SessionSecret))
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses a session token and returns its viewer. Invalid, expired, or
// tampered tokens return Anonymous with no error; a bad cookie is not an
// exceptional condition.
func Verify(cfg *config.Config, raw string) Viewer {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.SessionSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil || claims.Subject == "" {
		return Anonymous
	}
	return Viewer{
		LoggedIn: true,
		UserID:   claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
	}
}

// FromRequest returns the request's viewer, Anonymous when there is no valid
// session cookie.
func FromRequest(cfg *config.Config, r *http.Request) Viewer {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return Anonymous
	}
	return Verify(cfg, c.Value)
}

// Set writes the session cookie for a verified user.
func Set(cfg *config.Config, w http.ResponseWriter, userID, email, name string) error {
	token, err := Issue(cfg, userID, email, name)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Production(),
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the session cookie.
func Clear(cfg *config.Config, w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Production(),
		SameSite: http.SameSiteLaxMode,
	})
}

// SetLogin writes the short-lived login cookie carrying the opaque id of the
// server-side login session.
func SetLogin(cfg *config.Config, w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     LoginCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   cfg.Production(),
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearLogin expires the login cookie; a login session is single-use.
func ClearLogin(cfg *config.Config, w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     LoginCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Production(),
		SameSite: http.SameSiteLaxMode,
	})
}
