// Package auth resolves callers: account holders via a signed bearer token and
// the external scheduler via a shared secret.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"alchemyst.ke/billing/internal/common"
	"alchemyst.ke/billing/internal/features/accounts"
)

// Identity is a resolved caller.
type Identity struct {
	AccountID uuid.UUID
	Category  accounts.Category
}

// Resolver turns a credential into an Identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// Claims carried by account tokens.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// JWTResolver verifies HS256 tokens and looks the account up to learn its
// category.
type JWTResolver struct {
	secret []byte
	store  accounts.Store
}

// NewJWTResolver refuses an empty secret: HS256 with an empty key lets anyone
// mint tokens.
func NewJWTResolver(secret string, store accounts.Store) (*JWTResolver, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	return &JWTResolver{secret: []byte(secret), store: store}, nil
}

func (r *JWTResolver) Resolve(ctx context.Context, token string) (Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return Identity{}, common.ErrInvalidToken
	}

	acc, err := r.store.Get(ctx, id)
	if errors.Is(err, common.ErrAccountNotFound) {
		return Identity{}, common.ErrUnauthorized
	}
	if err != nil {
		return Identity{}, err
	}
	return Identity{AccountID: acc.ID, Category: acc.Category}, nil
}

// IssueToken signs a token for accountID. Used by the CLI and tests.
func IssueToken(secret string, accountID uuid.UUID, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret must not be empty")
	}
	now := time.Now()
	claims := Claims{
		UserID: accountID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

type ctxKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by Require.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// Require rejects requests without a valid bearer token.
func Require(res Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				common.WriteError(w, r, common.ErrUnauthorized)
				return
			}
			id, err := res.Resolve(r.Context(), token)
			if err != nil {
				common.WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
