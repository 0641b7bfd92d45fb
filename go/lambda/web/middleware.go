package main

import (
	"net/http"
	"net/url"
	"time"
)

// securityHeaders applies the site-wide response headers. Every response gets
// them, pages and API alike; HSTS only makes sense behind TLS, so it is
// production-only.
func securityHeaders(next http.Handler, production bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy",
			"default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline' https://www.googletagmanager.com; connect-src 'self' https://www.google-analytics.com")
		if production {
			h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// setPublicCache marks a response CDN-cacheable for five minutes, with
// stale-while-revalidate for ten more. Only anonymous views of public pages
// qualify.
func setPublicCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "public,max-age=0,s-maxage=300,stale-while-revalidate=600")
	w.Header().Set("Expires", time.Now().Add(300*time.Second).UTC().Format(http.TimeFormat))
}

// setNoStore forbids caching. Anything rendered for a logged-in viewer gets
// this so one person's page never lands in a shared cache.
func setNoStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
}

// sameOriginRequest reports whether a state-changing request came from our
// own pages, judged by the Origin header with Referer as fallback. Requests
// with neither header are rejected.
func sameOriginRequest(r *http.Request, baseURL string) bool {
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}

	if origin := r.Header.Get("Origin"); origin != "" {
		u, err := url.Parse(origin)
		return err == nil && u.Host == base.Host
	}
	if referer := r.Header.Get("Referer"); referer != "" {
		u, err := url.Parse(referer)
		return err == nil && u.Host == base.Host
	}
	return false
}

// safeRedirectPath keeps post-login redirects on this site: only absolute
// paths are allowed, and protocol-relative or backslash tricks fall back to
// the home page.
func safeRedirectPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	if len(p) > 1 && (p[1] == '/' || p[1] == '\\') {
		return "/"
	}
	return p
}
