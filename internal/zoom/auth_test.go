package zoom

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/curtbushko/zoom-to-moodle/internal/config"
)

func TestJWTAuthGetAccessToken(t *testing.T) {
	cfg := config.ZoomConfig{APIKey: "test_key", APISecret: "test_secret"}
	auth := NewJWTAuth(cfg)

	fixed := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	auth.now = func() time.Time { return fixed }

	token, err := auth.GetAccessToken(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if token.TokenType != "Bearer" {
		t.Errorf("Expected token type Bearer, got %s", token.TokenType)
	}
	if !token.ExpiresAt.Equal(fixed.Add(60 * time.Second)) {
		t.Errorf("Expected expiry one minute after issue, got %v", token.ExpiresAt)
	}

	parsed, err := jwt.Parse(token.AccessToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			t.Errorf("Unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(cfg.APISecret), nil
	}, jwt.WithTimeFunc(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("Failed to parse JWT: %v", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatal("Failed to parse JWT claims")
	}
	if claims["iss"] != "test_key" {
		t.Errorf("Expected iss test_key, got %v", claims["iss"])
	}
	if exp, _ := claims["exp"].(float64); int64(exp) != fixed.Add(60*time.Second).Unix() {
		t.Errorf("Expected exp %d, got %v", fixed.Add(60*time.Second).Unix(), claims["exp"])
	}
	if parsed.Header["alg"] != "HS256" {
		t.Errorf("Expected HS256, got %v", parsed.Header["alg"])
	}
}

func TestJWTAuthMintsPerCall(t *testing.T) {
	auth := NewJWTAuth(config.ZoomConfig{APIKey: "k", APISecret: "s"})
	calls := 0
	auth.now = func() time.Time {
		calls++
		return time.Unix(int64(1700000000+calls), 0)
	}

	first, err := auth.GetAccessToken(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := auth.GetAccessToken(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if first.AccessToken == second.AccessToken {
		t.Error("Expected a new token for every call")
	}
	if calls != 2 {
		t.Errorf("Expected clock to be read once per call, got %d", calls)
	}
}

func TestJWTAuthMissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ZoomConfig
	}{
		{name: "missing key", cfg: config.ZoomConfig{APISecret: "s"}},
		{name: "missing secret", cfg: config.ZoomConfig{APIKey: "k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewJWTAuth(tt.cfg).GetAccessToken(context.Background())
			authErr, ok := err.(*AuthError)
			if !ok {
				t.Fatalf("Expected *AuthError, got %T (%v)", err, err)
			}
			if authErr.Type != "invalid_credentials" {
				t.Errorf("Expected invalid_credentials, got %s", authErr.Type)
			}
		})
	}
}

func TestAccessTokenIsExpired(t *testing.T) {
	token := &AccessToken{ExpiresAt: time.Now().Add(30 * time.Second)}
	if token.IsExpired(0) {
		t.Error("Token should not be expired yet")
	}
	if !token.IsExpired(time.Minute) {
		t.Error("Token should be expired within a one minute buffer")
	}
}

type staticAuth string

func (s staticAuth) GetAccessToken(ctx context.Context) (*AccessToken, error) {
	return &AccessToken{AccessToken: string(s), TokenType: "Bearer"}, nil
}

func TestSignDownloadURL(t *testing.T) {
	signed, err := SignDownloadURL(context.Background(), staticAuth("tok"), "https://zoom.us/rec/download/abc?type=mp4")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if signed != "https://zoom.us/rec/download/abc?access_token=tok&type=mp4" {
		t.Errorf("Unexpected signed url %s", signed)
	}

	unsigned, err := SignDownloadURL(context.Background(), nil, "https://zoom.us/rec/download/abc")
	if err != nil || unsigned != "https://zoom.us/rec/download/abc" {
		t.Errorf("Expected url unchanged without authenticator, got %s (%v)", unsigned, err)
	}

	_, err = SignDownloadURL(context.Background(), NewJWTAuth(config.ZoomConfig{}), "https://zoom.us/rec/download/abc")
	if err == nil {
		t.Error("Expected error without credentials")
	}
}
