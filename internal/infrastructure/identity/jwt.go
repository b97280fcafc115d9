// Package identity resolves the current user from HS256 bearer tokens.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
)

type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Verifier{secret: []byte(secret), issuer: issuer}, nil
}

// Verify checks signature, expiry and issuer and returns the user named by the email claim
// (falling back to sub).
func (v *Verifier) Verify(tokenString string) (domain.User, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return domain.User{}, domain.WrapError(domain.ErrUnauthorized, "verify token", fmt.Errorf("invalid token: %v", err))
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.User{}, domain.WrapError(domain.ErrUnauthorized, "verify token", errors.New("invalid claims"))
	}
	email, _ := claims["email"].(string)
	if email == "" {
		email, _ = claims["sub"].(string)
	}
	if strings.TrimSpace(email) == "" {
		return domain.User{}, domain.WrapError(domain.ErrUnauthorized, "verify token", errors.New("token has no subject"))
	}
	return domain.User{Email: strings.ToLower(strings.TrimSpace(email))}, nil
}

// Issue signs a token for user. Used by tooling and tests.
func (v *Verifier) Issue(user domain.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"email": user.Email,
		"sub":   user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	if v.issuer != "" {
		claims["iss"] = v.issuer
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

type userKey struct{}

func WithUser(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// ContextProvider reads the user placed in the context by the HTTP auth middleware.
type ContextProvider struct{}

func (ContextProvider) CurrentUser(ctx context.Context) (domain.User, error) {
	user, ok := ctx.Value(userKey{}).(domain.User)
	if !ok || user.Email == "" {
		return domain.User{}, domain.WrapError(domain.ErrUnauthorized, "current user", errors.New("no authenticated user"))
	}
	return user, nil
}
