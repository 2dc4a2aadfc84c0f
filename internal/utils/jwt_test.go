package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345"

func TestGenerateAndParseJWT(t *testing.T) {
	t.Run("Round trip preserves the user ID", func(t *testing.T) {
		token, err := GenerateJWT(42, testSecret)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		claims, err := ParseJWT(token, testSecret)
		require.NoError(t, err)
		assert.Equal(t, uint(42), claims.UserID)
	})

	t.Run("Wrong secret is rejected", func(t *testing.T) {
		token, err := GenerateJWT(1, testSecret)
		require.NoError(t, err)

		_, err = ParseJWT(token, "another-secret")
		assert.Error(t, err)
	})

	t.Run("Tampered token is rejected", func(t *testing.T) {
		token, err := GenerateJWT(1, testSecret)
		require.NoError(t, err)

		_, err = ParseJWT(token+"x", testSecret)
		assert.Error(t, err)
	})

	t.Run("Garbage token is rejected", func(t *testing.T) {
		_, err := ParseJWT("not.a.token", testSecret)
		assert.Error(t, err)
	})
}
