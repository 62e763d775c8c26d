package authutils

import (
	"context"
	"testing"
	"time"

	"imitate-server/shared/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret"

func signToken(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestNewJWTVerifier_EmptySecret(t *testing.T) {
	_, err := NewJWTVerifier("", nil)
	assert.Error(t, err)
}

func TestJWTVerifier_VerifyToken(t *testing.T) {
	verifier, err := NewJWTVerifier(testSecret, nil)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("валидный токен с user_id", func(t *testing.T) {
		userID := uuid.New()
		tokenString := signToken(t, testSecret, models.Claims{
			UserID: userID,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})

		claims, err := verifier.VerifyToken(ctx, tokenString)
		require.NoError(t, err)
		assert.Equal(t, userID, claims.UserID)
	})

	t.Run("идентификатор берется из subject", func(t *testing.T) {
		userID := uuid.New()
		tokenString := signToken(t, testSecret, jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})

		claims, err := verifier.VerifyToken(ctx, tokenString)
		require.NoError(t, err)
		assert.Equal(t, userID, claims.UserID)
	})

	t.Run("истекший токен", func(t *testing.T) {
		tokenString := signToken(t, testSecret, models.Claims{
			UserID: uuid.New(),
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		})

		_, err := verifier.VerifyToken(ctx, tokenString)
		assert.ErrorIs(t, err, models.ErrTokenExpired)
	})

	t.Run("неверная подпись", func(t *testing.T) {
		tokenString := signToken(t, "another-secret", models.Claims{
			UserID: uuid.New(),
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})

		_, err := verifier.VerifyToken(ctx, tokenString)
		assert.ErrorIs(t, err, models.ErrTokenInvalid)
	})

	t.Run("мусор вместо токена", func(t *testing.T) {
		_, err := verifier.VerifyToken(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, models.ErrTokenMalformed)
	})

	t.Run("токен без идентификатора пользователя", func(t *testing.T) {
		tokenString := signToken(t, testSecret, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})

		_, err := verifier.VerifyToken(ctx, tokenString)
		assert.ErrorIs(t, err, models.ErrTokenInvalid)
	})
}
