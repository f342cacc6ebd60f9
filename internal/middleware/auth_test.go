package middleware

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestConfig(t *testing.T, secret string) *SessionConfig {
	t.Helper()

	config, err := NewSessionConfig(secret)
	if err != nil {
		t.Fatalf("failed to create session config: %v", err)
	}
	return config
}

func TestNewSessionConfigEmptySecret(t *testing.T) {
	if _, err := NewSessionConfig(""); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestGenerateToken(t *testing.T) {
	config := newTestConfig(t, "test-secret")

	token, err := config.GenerateToken("user-123")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Errorf("expected 3 dot-separated segments, got %d", len(parts))
	}
}

func TestValidateToken(t *testing.T) {
	config := newTestConfig(t, "test-secret")
	userID := "user-123"

	token, err := config.GenerateToken(userID)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	claims, err := config.ValidateToken(token)
	if err != nil {
		t.Fatalf("failed to validate token: %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("expected user ID %s, got %s", userID, claims.UserID)
	}
	if claims.ExpiresAt == nil {
		t.Error("expected expiry claim")
	}
}

func TestValidateTokenInvalid(t *testing.T) {
	config := newTestConfig(t, "test-secret")

	tests := []struct {
		name  string
		token string
	}{
		{"invalid format", "invalid-token"},
		{"empty", ""},
		{"wrong signature", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJ1aWQiOiIxMjMifQ.invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.ValidateToken(tt.token)
			if err == nil {
				t.Error("expected error for invalid token")
			}
		})
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	config1 := newTestConfig(t, "secret1")
	config2 := newTestConfig(t, "secret2")

	token, err := config1.GenerateToken("user-123")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	_, err = config2.ValidateToken(token)
	if err == nil {
		t.Error("expected error when validating token with wrong secret")
	}
}

func TestValidateTokenTampered(t *testing.T) {
	config := newTestConfig(t, "test-secret")

	token, err := config.GenerateToken("user-123")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	parts := strings.Split(token, ".")

	// Swap the user ID in the payload while keeping the original signature
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	forged := strings.Replace(string(payload), "user-123", "user-999", 1)
	forgedToken := parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte(forged)) + "." + parts[2]

	if _, err := config.ValidateToken(forgedToken); err == nil {
		t.Error("expected error for tampered payload")
	}

	// Flip every position of the header and payload in turn
	signed := parts[0] + "." + parts[1]
	for i := 0; i < len(signed); i++ {
		if signed[i] == '.' {
			continue
		}
		b := []byte(signed)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		if _, err := config.ValidateToken(string(b) + "." + parts[2]); err == nil {
			t.Fatalf("expected error for tampered byte at %d", i)
		}
	}
}

func TestValidateTokenNoneAlgorithm(t *testing.T) {
	config := newTestConfig(t, "test-secret")

	claims := Claims{
		UserID: "user-123",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    issuer,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}

	if _, err := config.ValidateToken(token); err == nil {
		t.Error("expected error for unsigned token")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	config := newTestConfig(t, "test-secret")
	config.Expiration = -1 * time.Hour // Set expiration to past

	token, err := config.GenerateToken("user-123")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	_, err = config.ValidateToken(token)
	if err != ErrTokenExpired {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenExpiration(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	config := newTestConfig(t, "test-secret")
	config.Expiration = time.Hour
	config.Now = func() time.Time { return now }

	token, err := config.GenerateToken("user-123")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	// Token should be valid immediately
	if _, err := config.ValidateToken(token); err != nil {
		t.Errorf("token should be valid immediately: %v", err)
	}

	// Move the clock past the expiry
	now = now.Add(2 * time.Hour)

	if _, err := config.ValidateToken(token); err != ErrTokenExpired {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestClaimsIssuer(t *testing.T) {
	config := newTestConfig(t, "test-secret")
	token, err := config.GenerateToken("user-123")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	// Parse token without validation to check issuer
	parsedToken, _, err := jwt.NewParser().ParseUnverified(token, &Claims{})
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}

	claims, ok := parsedToken.Claims.(*Claims)
	if !ok {
		t.Fatal("failed to cast claims")
	}

	if claims.Issuer != "frequency127" {
		t.Errorf("expected issuer 'frequency127', got '%s'", claims.Issuer)
	}
	if parsedToken.Header["alg"] != "HS256" {
		t.Errorf("expected alg HS256, got %v", parsedToken.Header["alg"])
	}
}

func TestAuthMiddlewareCookie(t *testing.T) {
	config := newTestConfig(t, "test-secret")
	userID := "user-123"

	token, err := config.GenerateToken(userID)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	handler := config.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxUserID, err := GetUserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("failed to get user ID from context: %v", err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if ctxUserID != userID {
			t.Errorf("expected user ID %s, got %s", userID, ctxUserID)
		}

		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestAuthMiddlewareBearer(t *testing.T) {
	config := newTestConfig(t, "test-secret")

	token, err := config.GenerateToken("user-123")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	handler := config.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestAuthMiddlewareMissingToken(t *testing.T) {
	config := newTestConfig(t, "test-secret")

	handler := config.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON error body, got content type %q", ct)
	}
}

func TestAuthMiddlewareInvalidHeader(t *testing.T) {
	config := newTestConfig(t, "test-secret")

	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "token123"},
		{"wrong prefix", "Basic token123"},
		{"empty bearer", "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := config.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler should not be called")
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set("Authorization", tt.header)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", w.Code)
			}
		})
	}
}

func TestAuthMiddlewareInvalidToken(t *testing.T) {
	config := newTestConfig(t, "test-secret")

	handler := config.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "invalid-token"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Code)
	}
}

func TestSetSessionCookie(t *testing.T) {
	config := newTestConfig(t, "test-secret")
	w := httptest.NewRecorder()

	config.SetSessionCookie(w, "abc.def.ghi")

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != CookieName || c.Value != "abc.def.ghi" {
		t.Errorf("unexpected cookie %s=%s", c.Name, c.Value)
	}
	if !c.HttpOnly {
		t.Error("expected HttpOnly cookie")
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Errorf("expected SameSite=Lax, got %v", c.SameSite)
	}
	if c.MaxAge != int(DefaultExpiration/time.Second) {
		t.Errorf("expected Max-Age %d, got %d", int(DefaultExpiration/time.Second), c.MaxAge)
	}
	if !c.Secure {
		t.Error("expected Secure cookie by default")
	}
}

func TestClearSessionCookie(t *testing.T) {
	config := newTestConfig(t, "test-secret")
	w := httptest.NewRecorder()

	config.ClearSessionCookie(w)

	header := w.Header().Get("Set-Cookie")
	if !strings.Contains(header, CookieName+"=;") {
		t.Errorf("expected empty session cookie, got %q", header)
	}
	if !strings.Contains(header, "Max-Age=0") {
		t.Errorf("expected Max-Age=0, got %q", header)
	}
}

func TestGetUserIDFromContext(t *testing.T) {
	ctx := WithUserID(context.Background(), "user-123")

	retrievedID, err := GetUserIDFromContext(ctx)
	if err != nil {
		t.Fatalf("failed to get user ID from context: %v", err)
	}

	if retrievedID != "user-123" {
		t.Errorf("expected user ID user-123, got %s", retrievedID)
	}
}

func TestGetUserIDFromContextMissing(t *testing.T) {
	_, err := GetUserIDFromContext(context.Background())
	if err == nil {
		t.Error("expected error when user ID not in context")
	}
}

func TestGetUserIDFromContextWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), UserIDContextKey, 123)

	_, err := GetUserIDFromContext(ctx)
	if err == nil {
		t.Error("expected error when user ID is wrong type")
	}
}
