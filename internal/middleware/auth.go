package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shalteor/frequency127/internal/crypto"
)

var (
	ErrMissingToken      = errors.New("missing session token")
	ErrInvalidAuthHeader = errors.New("invalid authorization header format")
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenExpired      = errors.New("token expired")
)

type contextKey string

const UserIDContextKey contextKey = "user_id"

const (
	// CookieName is the session cookie set on signup and login
	CookieName        = "f127"
	// DefaultExpiration is the session lifetime when none is configured
	DefaultExpiration = 14 * 24 * time.Hour
	issuer            = "frequency127"
)

// SessionConfig holds the session token and cookie configuration
type SessionConfig struct {
	Secret        []byte
	SigningMethod jwt.SigningMethod
	Expiration    time.Duration
	CookieSecure  bool
	Now           func() time.Time
}

// Claims represents session token claims
type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// NewSessionConfig creates a session configuration whose signing key is
// derived from secret
func NewSessionConfig(secret string) (*SessionConfig, error) {
	key, err := crypto.DeriveSessionKey(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to derive session key: %w", err)
	}
	return &SessionConfig{
		Secret:        key,
		SigningMethod: jwt.SigningMethodHS256,
		Expiration:    DefaultExpiration,
		CookieSecure:  true,
		Now:           time.Now,
	}, nil
}

func (c *SessionConfig) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// GenerateToken generates a session token for a user
func (c *SessionConfig) GenerateToken(userID string) (string, error) {
	now := c.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(c.Expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(c.SigningMethod, claims)
	return token.SignedString(c.Secret)
}

// ValidateToken verifies the signature and expiry of a session token and
// returns its claims
func (c *SessionConfig) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != c.SigningMethod {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.Secret, nil
	},
		jwt.WithValidMethods([]string{c.SigningMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SetSessionCookie writes the session cookie carrying token
func (c *SessionConfig) SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.Expiration / time.Second),
		HttpOnly: true,
		Secure:   c.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie in the browser
func (c *SessionConfig) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest returns the session token from the session cookie or, for
// non-browser clients, from a Bearer authorization header
func TokenFromRequest(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingToken
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", ErrInvalidAuthHeader
	}
	return strings.TrimSpace(parts[1]), nil
}

// AuthMiddleware rejects requests without a valid session and stores the
// session's user ID in the request context
func (c *SessionConfig) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := TokenFromRequest(r)
		if err != nil {
			unauthorized(w)
			return
		}

		claims, err := c.ValidateToken(tokenString)
		if err != nil {
			unauthorized(w)
			return
		}

		ctx := WithUserID(r.Context(), claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
}

// WithUserID adds user ID to context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDContextKey, userID)
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(UserIDContextKey).(string)
	if !ok || userID == "" {
		return "", errors.New("user ID not found in context")
	}
	return userID, nil
}
