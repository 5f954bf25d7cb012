// Package zoom provides Zoom API authentication and client functionality
package zoom

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/curtbushko/zoom-to-moodle/internal/config"
)

// DefaultTokenTTL is the lifetime of every signed request token
const DefaultTokenTTL = 60 * time.Second

// AccessToken represents a bearer token with metadata
type AccessToken struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// IsExpired returns true if the token is expired or will expire within the buffer time
func (t *AccessToken) IsExpired(buffer time.Duration) bool {
	return time.Now().Add(buffer).After(t.ExpiresAt)
}

// AuthError represents authentication-related errors
type AuthError struct {
	Type   string
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth error %s: %s (%v)", e.Type, e.Reason, e.Err)
	}
	return fmt.Sprintf("auth error %s: %s", e.Type, e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Authenticator defines the interface for Zoom API authentication
type Authenticator interface {
	GetAccessToken(ctx context.Context) (*AccessToken, error)
}

// JWTAuth signs a fresh short-lived HS256 token for every request.
// Tokens are never cached; each call mints a new one.
type JWTAuth struct {
	apiKey    string
	apiSecret []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewJWTAuth creates a JWT authenticator from the Zoom configuration
func NewJWTAuth(cfg config.ZoomConfig) *JWTAuth {
	return &JWTAuth{
		apiKey:    cfg.APIKey,
		apiSecret: []byte(cfg.APISecret),
		ttl:       DefaultTokenTTL,
		now:       time.Now,
	}
}

// GetAccessToken returns a newly signed token with iss = API key and exp = now + ttl
func (a *JWTAuth) GetAccessToken(ctx context.Context) (*AccessToken, error) {
	if a.apiKey == "" || len(a.apiSecret) == 0 {
		return nil, &AuthError{
			Type:   "invalid_credentials",
			Reason: "api key and api secret are required",
		}
	}

	expiresAt := a.now().Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": a.apiKey,
		"exp": expiresAt.Unix(),
	})

	signed, err := token.SignedString(a.apiSecret)
	if err != nil {
		return nil, &AuthError{
			Type:   "signing_failed",
			Reason: "failed to sign request token",
			Err:    err,
		}
	}

	return &AccessToken{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	}, nil
}

// SignDownloadURL appends an access_token to a recording download URL, which
// Zoom requires when the file is fetched outside an API call
func SignDownloadURL(ctx context.Context, auth Authenticator, rawURL string) (string, error) {
	if auth == nil || rawURL == "" {
		return rawURL, nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid download url: %w", err)
	}
	token, err := auth.GetAccessToken(ctx)
	if err != nil {
		return "", err
	}

	query := parsed.Query()
	query.Set("access_token", token.AccessToken)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
