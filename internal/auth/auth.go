package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"casino_wallet/internal/serviceerrs"
)

const (
	TokenExpire = 3 * time.Hour
	CookieName  = "jwt-token"
	RoleUser    = "user"
	RoleAdmin   = "admin"
)

type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
	Role   string `json:"role,omitempty"`
}

// Principal is the authenticated caller every ledger operation acts for.
type Principal struct {
	UserID string
	Role   string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

type contextKey string

const principalContextKey contextKey = "principal"

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(Principal)
	return p, ok
}

func Issue(p Principal, secret []byte, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   p.UserID,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(TokenExpire)),
			},
			UserID: p.UserID,
			Role:   p.Role,
		},
	)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("JWT signing: %w", err)
	}
	return signed, nil
}

func Cookie(token string) http.Cookie {
	return http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	}
}

// CheckToken verifies an HS256 token and returns the principal it names.
// Every failure wraps serviceerrs.ErrUnauthorized.
func CheckToken(tokenString string, secret []byte) (Principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) {
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5*time.Second),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", serviceerrs.ErrUnauthorized, err)
	}
	if claims.UserID == "" {
		return Principal{}, fmt.Errorf("%w: token carries no user", serviceerrs.ErrUnauthorized)
	}
	role := claims.Role
	if role == "" {
		role = RoleUser
	}
	return Principal{UserID: claims.UserID, Role: role}, nil
}
