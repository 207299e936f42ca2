package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("auth: token required")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrExpiredToken = errors.New("auth: token expired")
)

// TokenValidator validates HS256 operator tokens.
type TokenValidator struct {
	config TokenConfig
}

// NewTokenValidator constructs a validator with the provided configuration.
func NewTokenValidator(cfg TokenConfig) (*TokenValidator, error) {
	normalized, err := cfg.normalized()
	if err != nil {
		return nil, err
	}
	return &TokenValidator{config: normalized}, nil
}

// ValidateToken validates the supplied JWT string and returns the parsed claims.
func (v *TokenValidator) ValidateToken(tokenString string) (OperatorClaims, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return OperatorClaims{}, ErrMissingToken
	}

	claims := &OperatorClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrInvalidToken, t.Method.Alg())
			}
			return v.config.SigningSecret, nil
		},
		jwt.WithTimeFunc(v.config.Clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.config.Issuer),
		jwt.WithAudience(v.config.Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return OperatorClaims{}, ErrExpiredToken
		}
		return OperatorClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if parsed == nil || !parsed.Valid {
		return OperatorClaims{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return OperatorClaims{}, ErrMissingSubject
	}
	return *claims, nil
}
