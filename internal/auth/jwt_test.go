package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccessSecret  = "access-secret-32-chars-long!!!!!"
	testRefreshSecret = "refresh-secret-32-chars-long!!!!"
)

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	mgr := NewJWTManager(testAccessSecret, testRefreshSecret, 15*time.Minute, 7*24*time.Hour)

	t.Run("generate and validate access token", func(t *testing.T) {
		pair, tokenID, err := mgr.GenerateTokenPair("google-123")
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
		assert.NotEmpty(t, tokenID)
		assert.Equal(t, int64(900), pair.ExpiresIn)

		claims, err := mgr.ValidateAccessToken(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "google-123", claims.Subject)
	})

	t.Run("generate and validate refresh token", func(t *testing.T) {
		pair, tokenID, err := mgr.GenerateTokenPair("google-456")
		require.NoError(t, err)

		claims, err := mgr.ValidateRefreshToken(pair.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, "google-456", claims.Subject)
		assert.Equal(t, tokenID, claims.TokenID)
	})

	t.Run("invalid token fails validation", func(t *testing.T) {
		_, err := mgr.ValidateAccessToken("invalid-token")
		assert.Error(t, err)
	})

	t.Run("access token cant validate as refresh", func(t *testing.T) {
		pair, _, _ := mgr.GenerateTokenPair("google-789")
		_, err := mgr.ValidateRefreshToken(pair.AccessToken)
		assert.Error(t, err)
	})

	t.Run("expired token fails", func(t *testing.T) {
		shortMgr := NewJWTManager(testAccessSecret, testRefreshSecret, -1*time.Second, -1*time.Second)
		pair, _, err := shortMgr.GenerateTokenPair("google-exp")
		require.NoError(t, err)

		_, err = shortMgr.ValidateAccessToken(pair.AccessToken)
		assert.Error(t, err)
	})

	t.Run("token without subject is rejected", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		})
		signed, err := token.SignedString([]byte(testAccessSecret))
		require.NoError(t, err)

		_, err = mgr.ValidateAccessToken(signed)
		assert.Error(t, err)
	})

	t.Run("foreign issuer is rejected", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "google-1",
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		})
		signed, err := token.SignedString([]byte(testAccessSecret))
		require.NoError(t, err)

		_, err = mgr.ValidateAccessToken(signed)
		assert.Error(t, err)
	})
}
