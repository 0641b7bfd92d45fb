package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	_ "time/tzdata"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"

	"github.com/kiddobash/kiddobash.com/go/auth"
	"github.com/kiddobash/kiddobash.com/go/config"
	"github.com/kiddobash/kiddobash.com/go/email"
)

// app bundles the handlers' dependencies so tests can swap the mailer and
// the identity provider calls.
type app struct {
	cfg    *config.Config
	mailer email.Mailer

	exchangeCode  func(ctx context.Context, cfg *config.Config, code, verifier string) (*auth.TokenResponse, error)
	verifyIDToken func(ctx context.Context, cfg *config.Config, rawToken, nonce string) (*auth.IDTokenClaims, error)
}

func newApp(cfg *config.Config) *app {
	return &app{
		cfg:           cfg,
		mailer:        email.New(cfg),
		exchangeCode:  auth.ExchangeCode,
		verifyIDToken: auth.VerifyIDToken,
	}
}

func newMux(a *app) *http.ServeMux {
	mux := http.NewServeMux()

	// Pages
	mux.HandleFunc("GET /{$}", a.handleHome)
	mux.HandleFunc("GET /create-event", a.handleCreateEventForm)
	mux.HandleFunc("POST /create-event", a.handleCreateEventSubmit)
	mux.HandleFunc("GET /event/{eventId}", a.handleEventDetail)
	mux.HandleFunc("GET /event/{eventId}/edit", a.handleEditEventForm)
	mux.HandleFunc("POST /event/{eventId}/edit", a.handleEditEventSubmit)
	mux.HandleFunc("GET /rsvp/{eventId}", a.handleRsvpForm)
	mux.HandleFunc("POST /rsvp/{eventId}", a.handleRsvpSubmit)
	mux.HandleFunc("GET /my-events", a.handleMyEvents)

	// API
	mux.HandleFunc("POST /api/send-invites", a.handleSendInvites)
	mux.HandleFunc("GET /api/track-pixel", a.handleTrackPixel)
	mux.HandleFunc("GET /api/track-click", a.handleTrackClick)

	// Auth
	mux.HandleFunc("GET /auth/login", a.handleLogin)
	mux.HandleFunc("POST /auth/login", a.handleLogin)
	mux.HandleFunc("GET /auth/callback", a.handleCallback)
	mux.HandleFunc("GET /auth/logout", a.handleLogout)
	mux.HandleFunc("POST /auth/logout", a.handleLogout)

	return mux
}

func main() {
	cfg := config.Get()
	a := newApp(cfg)

	handler := securityHeaders(newMux(a), cfg.Production())

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		// The CDN serves /assets/ in front of the function.
		adapter := httpadapter.NewV2(handler)
		lambda.Start(adapter.ProxyWithContext)
	} else {
		local := http.NewServeMux()
		local.Handle("/assets/", http.StripPrefix("/assets/", http.FileServer(http.Dir("site/assets"))))
		local.Handle("/", handler)
		log.Printf("Kiddobash listening on :%s", cfg.Port)
		log.Fatal(http.ListenAndServe(":"+cfg.Port, local))
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
