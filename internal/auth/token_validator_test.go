package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenValidatorAcceptsIssuedToken(t *testing.T) {
	clockNow := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return clockNow }

	issuer, err := NewTokenIssuer(testTokenConfig(clock))
	if err != nil {
		t.Fatalf("unexpected issuer error: %v", err)
	}
	validator, err := NewTokenValidator(testTokenConfig(clock))
	if err != nil {
		t.Fatalf("unexpected validator error: %v", err)
	}

	token, _, err := issuer.IssueOperatorToken(testSubject)
	if err != nil {
		t.Fatalf("unexpected issue error: %v", err)
	}
	claims, err := validator.ValidateToken(token)
	if err != nil {
		t.Fatalf("unexpected validation failure: %v", err)
	}
	if claims.Subject != testSubject {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
}

func TestTokenValidatorRejectsExpiredToken(t *testing.T) {
	issuedAt := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	issuer, err := NewTokenIssuer(testTokenConfig(func() time.Time { return issuedAt }))
	if err != nil {
		t.Fatalf("unexpected issuer error: %v", err)
	}
	validator, err := NewTokenValidator(testTokenConfig(func() time.Time { return issuedAt.Add(2 * time.Hour) }))
	if err != nil {
		t.Fatalf("unexpected validator error: %v", err)
	}

	token, _, err := issuer.IssueOperatorToken(testSubject)
	if err != nil {
		t.Fatalf("unexpected issue error: %v", err)
	}
	if _, err := validator.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestTokenValidatorRejectsForeignTokens(t *testing.T) {
	clockNow := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	validator, err := NewTokenValidator(testTokenConfig(func() time.Time { return clockNow }))
	if err != nil {
		t.Fatalf("unexpected validator error: %v", err)
	}

	sign := func(claims jwt.RegisteredClaims, secret string) string {
		t.Helper()
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		return signed
	}
	valid := jwt.RegisteredClaims{
		Subject:   testSubject,
		Issuer:    testIssuer,
		Audience:  []string{testAudience},
		ExpiresAt: jwt.NewNumericDate(clockNow.Add(time.Hour)),
	}

	wrongIssuer := valid
	wrongIssuer.Issuer = "someone-else"
	wrongAudience := valid
	wrongAudience.Audience = []string{"another-service"}
	noExpiry := valid
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: " ", want: ErrMissingToken},
		{name: "wrong secret", token: sign(valid, "other-secret"), want: ErrInvalidToken},
		{name: "wrong issuer", token: sign(wrongIssuer, testSigningSecret), want: ErrInvalidToken},
		{name: "wrong audience", token: sign(wrongAudience, testSigningSecret), want: ErrInvalidToken},
		{name: "no expiry", token: sign(noExpiry, testSigningSecret), want: ErrInvalidToken},
		{name: "garbage", token: "not-a-jwt", want: ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := validator.ValidateToken(tt.token); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
