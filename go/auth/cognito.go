// Package auth implements the Cognito hosted-UI login flow: authorization
// code with PKCE, and RS256 ID-token verification against the user pool's
// JWKS.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kiddobash/kiddobash.com/go/config"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

// PKCE holds one login's proof-key pair. The verifier is stored server-side;
// only the S256 challenge travels to the authorization endpoint.
type PKCE struct {
	Verifier  string
	Challenge string
}

// NewPKCE generates a PKCE pair per RFC 7636 (43-char verifier, S256 method).
func NewPKCE() (PKCE, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return PKCE{}, fmt.Errorf("generate pkce verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(buf)
	sum := sha256.Sum256([]byte(verifier))
	return PKCE{
		Verifier:  verifier,
		Challenge: base64.RawURLEncoding.EncodeToString(sum[:]),
	}, nil
}

// RandomToken returns a URL-safe random string for state and nonce values.
func RandomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CallbackURL is where Cognito redirects after login.
func CallbackURL(cfg *config.Config) string {
	return cfg.BaseURL + "/auth/callback"
}

// BuildAuthorizeURL returns the hosted-UI login URL carrying the state,
// nonce, and PKCE challenge for one login attempt.
func BuildAuthorizeURL(cfg *config.Config, state, nonce, challenge string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", cfg.CognitoClientID)
	q.Set("redirect_uri", CallbackURL(cfg))
	q.Set("scope", "openid email profile")
	q.Set("state", state)
	q.Set("nonce", nonce)
	q.Set("code_challenge", challenge)
	q.Set("code_challenge_method", "S256")
	return cfg.CognitoDomain + "/login?" + q.Encode()
}

// LogoutURL returns the hosted-UI logout URL, which clears the Cognito
// session and sends the user back to the home page.
func LogoutURL(cfg *config.Config) string {
	q := url.Values{}
	q.Set("client_id", cfg.CognitoClientID)
	q.Set("logout_uri", cfg.BaseURL+"/")
	return cfg.CognitoDomain + "/logout?" + q.Encode()
}

// TokenResponse is the subset of the token endpoint's response we use.
type TokenResponse struct {
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// ExchangeCode redeems an authorization code at the token endpoint, proving
// possession of the PKCE verifier. The client secret, when configured, goes
// in a basic auth header per Cognito's confidential-client requirements.
func ExchangeCode(ctx context.Context, cfg *config.Config, code, verifier string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", cfg.CognitoClientID)
	form.Set("code", code)
	form.Set("redirect_uri", CallbackURL(cfg))
	form.Set("code_verifier", verifier)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		cfg.CognitoDomain+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cfg.CognitoClientSecret != "" {
		req.SetBasicAuth(cfg.CognitoClientID, cfg.CognitoClientSecret)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, body)
	}

	var tok TokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tok.IDToken == "" {
		return nil, fmt.Errorf("token response missing id_token")
	}
	return &tok, nil
}
