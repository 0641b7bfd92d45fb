package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiddobash/kiddobash.com/go/config"
)

const testKid = "test-key-1"

func startJWKS(t *testing.T, pub *rsa.PublicKey) func() {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		set := jwks{Keys: []jwk{{
			Kid: testKid,
			Kty: "RSA",
			Alg: "RS256",
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}}}
		json.NewEncoder(w).Encode(set)
	}))

	prevURL := jwksURL
	jwksURL = func(*config.Config) string { return srv.URL }
	jwksMu.Lock()
	jwksKeys = nil
	jwksFetched = time.Time{}
	jwksMu.Unlock()

	return func() {
		jwksURL = prevURL
		srv.Close()
		jwksMu.Lock()
		jwksKeys = nil
		jwksFetched = time.Time{}
		jwksMu.Unlock()
	}
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = testKid
	signed, err := tok.SignedString(key)
	require.NoError(t, err)
	return signed
}

func validClaims(cfg *config.Config) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":   cfg.Issuer(),
		"aud":   cfg.CognitoClientID,
		"sub":   "user-1",
		"email": "parent@example.com",
		"name":  "Pat Parent",
		"nonce": "nonce-1",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	}
}

func TestVerifyIDToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	cleanup := startJWKS(t, &key.PublicKey)
	defer cleanup()

	cfg := testConfig()
	raw := signToken(t, key, validClaims(cfg))

	claims, err := VerifyIDToken(context.Background(), cfg, raw, "nonce-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Sub)
	assert.Equal(t, "parent@example.com", claims.Email)
	assert.Equal(t, "Pat Parent", claims.Name)
}

func TestVerifyIDTokenNonceMismatch(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	cleanup := startJWKS(t, &key.PublicKey)
	defer cleanup()

	cfg := testConfig()
	raw := signToken(t, key, validClaims(cfg))

	_, err = VerifyIDToken(context.Background(), cfg, raw, "different-nonce")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonce")
}

func TestVerifyIDTokenWrongIssuer(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	cleanup := startJWKS(t, &key.PublicKey)
	defer cleanup()

	cfg := testConfig()
	claims := validClaims(cfg)
	claims["iss"] = "https://evil.example.com"
	raw := signToken(t, key, claims)

	_, err = VerifyIDToken(context.Background(), cfg, raw, "nonce-1")
	require.Error(t, err)
}

func TestVerifyIDTokenWrongAudience(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	cleanup := startJWKS(t, &key.PublicKey)
	defer cleanup()

	cfg := testConfig()
	claims := validClaims(cfg)
	claims["aud"] = "other-client"
	raw := signToken(t, key, claims)

	_, err = VerifyIDToken(context.Background(), cfg, raw, "nonce-1")
	require.Error(t, err)
}

func TestVerifyIDTokenExpired(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	cleanup := startJWKS(t, &key.PublicKey)
	defer cleanup()

	cfg := testConfig()
	claims := validClaims(cfg)
	claims["exp"] = time.Now().Add(-time.Minute).Unix()
	raw := signToken(t, key, claims)

	_, err = VerifyIDToken(context.Background(), cfg, raw, "nonce-1")
	require.Error(t, err)
}

func TestVerifyIDTokenWrongKey(t *testing.T) {
	realKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	attackerKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	cleanup := startJWKS(t, &realKey.PublicKey)
	defer cleanup()

	cfg := testConfig()
	raw := signToken(t, attackerKey, validClaims(cfg))

	_, err = VerifyIDToken(context.Background(), cfg, raw, "nonce-1")
	require.Error(t, err)
}

func TestVerifyIDTokenRejectsHS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	cleanup := startJWKS(t, &key.PublicKey)
	defer cleanup()

	cfg := testConfig()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims(cfg))
	tok.Header["kid"] = testKid
	raw, err := tok.SignedString([]byte(cfg.SessionSecret))
	require.NoError(t, err)

	_, err = VerifyIDToken(context.Background(), cfg, raw, "nonce-1")
	require.Error(t, err)
}
