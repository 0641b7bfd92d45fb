package config

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the application.
type Config struct {
	Environment string // development | production

	// Cognito hosted UI and token verification.
	CognitoDomain       string // e.g. https://auth.kiddobash.com
	CognitoClientID     string
	CognitoClientSecret string // optional; empty for public clients
	CognitoRegion       string
	CognitoUserPoolID   string

	SessionSecret string // HS256 key for the session cookie, >= 32 chars
	BaseURL       string // public origin, e.g. https://kiddobash.com
	SESSender     string // From address for invite emails
	AnalyticsID   string // GA measurement id, optional
	Port          string
}

var load = sync.OnceValue(func() *Config {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// In production we rely on real environment variables; a missing .env
	// locally is only worth a warning.
	if env != "production" {
		if err := godotenv.Load(); err != nil {
			log.Printf("Warning: .env file not found or couldn't be loaded: %v", err)
		}
	}

	cfg := &Config{
		Environment:         env,
		CognitoDomain:       strings.TrimSuffix(os.Getenv("COGNITO_DOMAIN"), "/"),
		CognitoClientID:     os.Getenv("COGNITO_CLIENT_ID"),
		CognitoClientSecret: os.Getenv("COGNITO_CLIENT_SECRET"),
		CognitoRegion:       os.Getenv("COGNITO_REGION"),
		CognitoUserPoolID:   os.Getenv("COGNITO_USER_POOL_ID"),
		SessionSecret:       os.Getenv("SESSION_SECRET"),
		BaseURL:             strings.TrimSuffix(os.Getenv("BASE_URL"), "/"),
		SESSender:           os.Getenv("SES_SENDER"),
		AnalyticsID:         os.Getenv("ANALYTICS_ID"),
		Port:                os.Getenv("PORT"),
	}
	if cfg.Port == "" {
		cfg.Port = "3000"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}

	if err := cfg.validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
})

// Get returns the process-wide configuration, loading and validating it on
// first use. Invalid configuration aborts the process.
func Get() *Config {
	return load()
}

func (c *Config) validate() error {
	required := map[string]string{
		"COGNITO_DOMAIN":       c.CognitoDomain,
		"COGNITO_CLIENT_ID":    c.CognitoClientID,
		"COGNITO_REGION":       c.CognitoRegion,
		"COGNITO_USER_POOL_ID": c.CognitoUserPoolID,
		"SESSION_SECRET":       c.SessionSecret,
		"SES_SENDER":           c.SESSender,
	}
	var missing []string
	for name, v := range required {
		if v == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(c.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 characters")
	}
	if !strings.HasPrefix(c.CognitoDomain, "https://") && !strings.HasPrefix(c.CognitoDomain, "http://") {
		return fmt.Errorf("COGNITO_DOMAIN must be a full origin, got %q", c.CognitoDomain)
	}
	return nil
}

// Production reports whether the app runs with production hardening
// (Secure cookies, no .env loading).
func (c *Config) Production() bool { return c.Environment == "production" }

// JWKSURL returns the Cognito user pool's JWKS endpoint.
func (c *Config) JWKSURL() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s/.well-known/jwks.json",
		c.CognitoRegion, c.CognitoUserPoolID)
}

// Issuer returns the expected "iss" claim of Cognito ID tokens.
func (c *Config) Issuer() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s",
		c.CognitoRegion, c.CognitoUserPoolID)
}
