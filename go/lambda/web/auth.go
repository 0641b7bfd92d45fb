package main

import (
	"log"
	"net/http"

	"github.com/kiddobash/kiddobash.com/go/auth"
	"github.com/kiddobash/kiddobash.com/go/dynamo"
	"github.com/kiddobash/kiddobash.com/go/session"
)

func (a *app) handleLogin(w http.ResponseWriter, r *http.Request) {
	setNoStore(w)

	pkce, err := auth.NewPKCE()
	if err != nil {
		renderServerError(w, session.Anonymous, err)
		return
	}
	state, err := auth.RandomToken()
	if err != nil {
		renderServerError(w, session.Anonymous, err)
		return
	}
	nonce, err := auth.RandomToken()
	if err != nil {
		renderServerError(w, session.Anonymous, err)
		return
	}

	ls, err := dynamo.CreateLoginSession(r.Context(), dynamo.LoginSession{
		State:        state,
		Nonce:        nonce,
		CodeVerifier: pkce.Verifier,
		RedirectTo:   safeRedirectPath(r.URL.Query().Get("redirect")),
	})
	if err != nil {
		renderServerError(w, session.Anonymous, err)
		return
	}

	session.SetLogin(a.cfg, w, ls.SessionID)
	http.Redirect(w, r, auth.BuildAuthorizeURL(a.cfg, state, nonce, pkce.Challenge), http.StatusFound)
}

// failLogin sends every callback failure to the same place. The reasons
// differ (tampered state, expired session, rejected code, bad token) but the
// user-visible outcome never does; the detail goes to the log only.
func (a *app) failLogin(w http.ResponseWriter, r *http.Request, reason string, err error) {
	if err != nil {
		log.Printf("login failed (%s): %v", reason, err)
	} else {
		log.Printf("login failed (%s)", reason)
	}
	session.ClearLogin(a.cfg, w)
	http.Redirect(w, r, "/?error=auth_failed", http.StatusFound)
}

func (a *app) handleCallback(w http.ResponseWriter, r *http.Request) {
	setNoStore(w)

	cookie, err := r.Cookie(session.LoginCookieName)
	if err != nil {
		a.failLogin(w, r, "missing login cookie", nil)
		return
	}

	ls, err := dynamo.GetLoginSession(r.Context(), cookie.Value)
	if err != nil {
		a.failLogin(w, r, "load login session", err)
		return
	}
	if ls == nil {
		a.failLogin(w, r, "login session expired or unknown", nil)
		return
	}

	// Single-use: gone before the code exchange, success or not.
	if err := dynamo.DeleteLoginSession(r.Context(), ls.SessionID); err != nil {
		log.Printf("delete login session: %v", err)
	}

	q := r.URL.Query()
	if q.Get("error") != "" {
		a.failLogin(w, r, "provider error: "+q.Get("error"), nil)
		return
	}
	if q.Get("state") == "" || q.Get("state") != ls.State {
		a.failLogin(w, r, "state mismatch", nil)
		return
	}
	code := q.Get("code")
	if code == "" {
		a.failLogin(w, r, "missing code", nil)
		return
	}

	tok, err := a.exchangeCode(r.Context(), a.cfg, code, ls.CodeVerifier)
	if err != nil {
		a.failLogin(w, r, "code exchange", err)
		return
	}

	claims, err := a.verifyIDToken(r.Context(), a.cfg, tok.IDToken, ls.Nonce)
	if err != nil {
		a.failLogin(w, r, "id token verification", err)
		return
	}

	// Best effort; a failed profile write must not fail the login.
	if err := dynamo.UpsertProfile(r.Context(), dynamo.UserProfile{
		UserID: claims.Sub,
		Email:  claims.Email,
		Name:   claims.Name,
	}); err != nil {
		log.Printf("upsert profile for %s: %v", claims.Sub, err)
	}

	if err := session.Set(a.cfg, w, claims.Sub, claims.Email, claims.Name); err != nil {
		a.failLogin(w, r, "issue session", err)
		return
	}
	session.ClearLogin(a.cfg, w)
	http.Redirect(w, r, safeRedirectPath(ls.RedirectTo), http.StatusFound)
}

func (a *app) handleLogout(w http.ResponseWriter, r *http.Request) {
	setNoStore(w)
	session.Clear(a.cfg, w)
	http.Redirect(w, r, auth.LogoutURL(a.cfg), http.StatusFound)
}
