package auth

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mlavigne/notify-api/internal/config"
	apperrors "github.com/mlavigne/notify-api/pkg/errors"
)

func testConfig(t *testing.T) config.AuthConfig {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	return config.AuthConfig{
		Secret:            "test-signing-key",
		AdminUsername:     "admin",
		AdminPasswordHash: string(hash),
		ExpiryHours:       1,
	}
}

func TestLoginAndValidate(t *testing.T) {
	s := NewService(testConfig(t))
	ctx := context.Background()

	token, err := s.Login(ctx, "admin", "s3cret")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := s.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "admin", claims.Role)

	// Second validation is served from the cache.
	cached, err := s.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, claims, cached)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := NewService(testConfig(t))
	ctx := context.Background()

	_, err := s.Login(ctx, "admin", "wrong")
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))

	_, err = s.Login(ctx, "root", "s3cret")
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))
}

func TestValidateRejectsForgedToken(t *testing.T) {
	s := NewService(testConfig(t))
	ctx := context.Background()

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{Username: "admin", Role: "admin"}).
		SignedString([]byte("different-key"))
	require.NoError(t, err)

	_, err = s.ValidateToken(ctx, forged)
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))

	_, err = s.ValidateToken(ctx, "not-a-token")
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))
}
