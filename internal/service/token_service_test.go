package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-risk-api/internal/models"
	"github.com/noah-isme/sma-risk-api/pkg/config"
	appErrors "github.com/noah-isme/sma-risk-api/pkg/errors"
)

func signToken(t *testing.T, secret, issuer string, expires time.Time) string {
	t.Helper()
	claims := &models.JWTClaims{
		UserID: "u1",
		Role:   "counselor",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestTokenServiceValidate(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "secret", Issuer: "sma"})

	claims, err := svc.Validate(signToken(t, "secret", "sma", time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "counselor", claims.Role)
}

func TestTokenServiceRejectsWrongSecret(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "secret"})

	_, err := svc.Validate(signToken(t, "other", "", time.Now().Add(time.Hour)))
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestTokenServiceRejectsExpired(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "secret"})

	_, err := svc.Validate(signToken(t, "secret", "", time.Now().Add(-time.Hour)))
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestTokenServiceRejectsWrongIssuer(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "secret", Issuer: "sma"})

	_, err := svc.Validate(signToken(t, "secret", "someone-else", time.Now().Add(time.Hour)))
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
