package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kiddobash/kiddobash.com/go/config"
)

// jwksCacheTTL bounds how long fetched pool keys are reused. Cognito rotates
// signing keys rarely; a stale cache only costs one refetch on a kid miss.
const jwksCacheTTL = time.Hour

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

var (
	jwksMu      sync.Mutex
	jwksKeys    map[string]*rsa.PublicKey
	jwksFetched time.Time

	// jwksURL is overridden by tests to point at a local server.
	jwksURL = func(cfg *config.Config) string { return cfg.JWKSURL() }
)

// poolKey returns the RSA public key for a key id, fetching or refreshing the
// pool's JWKS as needed.
func poolKey(ctx context.Context, cfg *config.Config, kid string) (*rsa.PublicKey, error) {
	jwksMu.Lock()
	defer jwksMu.Unlock()

	if key, ok := jwksKeys[kid]; ok && time.Since(jwksFetched) < jwksCacheTTL {
		return key, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL(cfg), nil)
	if err != nil {
		return nil, fmt.Errorf("build jwks request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks endpoint returned %d", resp.StatusCode)
	}

	var set jwks
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := rsaKey(k)
		if err != nil {
			return nil, fmt.Errorf("parse jwk %s: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}
	jwksKeys = keys
	jwksFetched = time.Now()

	key, ok := keys[kid]
	if !ok {
		return nil, fmt.Errorf("no key %q in pool jwks", kid)
	}
	return key, nil
}

func rsaKey(k jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}, nil
}

// IDTokenClaims are the verified claims Kiddobash uses from a Cognito ID
// token.
type IDTokenClaims struct {
	Sub   string
	Email string
	Name  string
}

// VerifyIDToken validates an ID token's RS256 signature against the pool's
// JWKS and checks issuer, audience, expiry, and the login's nonce. Any
// failure is a hard failure; there is no unverified fallback.
func VerifyIDToken(ctx context.Context, cfg *config.Config, rawToken, nonce string) (*IDTokenClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token missing kid header")
		}
		return poolKey(ctx, cfg, kid)
	},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(cfg.Issuer()),
		jwt.WithAudience(cfg.CognitoClientID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}

	if got, _ := claims["nonce"].(string); got == "" || got != nonce {
		return nil, fmt.Errorf("id token nonce mismatch")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("id token missing sub")
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	return &IDTokenClaims{Sub: sub, Email: email, Name: name}, nil
}
