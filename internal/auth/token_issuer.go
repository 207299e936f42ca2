package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultTokenTTL = 30 * time.Minute
)

var (
	ErrMissingSigningSecret = errors.New("auth: signing secret must be provided")
	ErrMissingSubject       = errors.New("auth: subject must be provided")
	ErrMissingIssuer        = errors.New("auth: issuer must be provided")
	ErrMissingAudience      = errors.New("auth: audience must be provided")
)

// OperatorClaims is the JWT payload carried by admin API tokens.
type OperatorClaims struct {
	jwt.RegisteredClaims
}

// TokenConfig configures operator token issuing and validation.
type TokenConfig struct {
	SigningSecret []byte
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

func (cfg TokenConfig) normalized() (TokenConfig, error) {
	if len(cfg.SigningSecret) == 0 {
		return TokenConfig{}, ErrMissingSigningSecret
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return TokenConfig{}, ErrMissingIssuer
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		return TokenConfig{}, ErrMissingAudience
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return TokenConfig{
		SigningSecret: append([]byte(nil), cfg.SigningSecret...),
		Issuer:        issuer,
		Audience:      audience,
		TokenTTL:      ttl,
		Clock:         clock,
	}, nil
}

// TokenIssuer signs HS256 operator tokens for the admin API.
type TokenIssuer struct {
	config TokenConfig
}

// NewTokenIssuer constructs a TokenIssuer.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	normalized, err := cfg.normalized()
	if err != nil {
		return nil, err
	}
	return &TokenIssuer{config: normalized}, nil
}

// IssueOperatorToken produces a signed JWT for subject and its lifetime in seconds.
func (i *TokenIssuer) IssueOperatorToken(subject string) (string, int64, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", 0, ErrMissingSubject
	}
	tokenID, err := uuid.NewV7()
	if err != nil {
		return "", 0, fmt.Errorf("auth: token id: %w", err)
	}

	now := i.config.Clock().UTC()
	expiresAt := now.Add(i.config.TokenTTL).UTC()

	claims := OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID.String(),
			Subject:   subject,
			Issuer:    i.config.Issuer,
			Audience:  []string{i.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.config.SigningSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(expiresAt.Sub(now).Seconds()), nil
}
