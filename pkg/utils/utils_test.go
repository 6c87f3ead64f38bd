package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestTokenCipherRoundTrip(t *testing.T) {
	c, err := NewTokenCipher([]byte(testKey))
	require.NoError(t, err)

	sealed, err := c.Encrypt("ig-access-token")
	require.NoError(t, err)
	assert.NotEqual(t, "ig-access-token", sealed)

	plain, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "ig-access-token", plain)
}

func TestTokenCipherEmptyStaysEmpty(t *testing.T) {
	c, err := NewTokenCipher([]byte(testKey))
	require.NoError(t, err)

	plain, err := c.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestTokenCipherRejectsForeignCiphertext(t *testing.T) {
	a, err := NewTokenCipher([]byte(testKey))
	require.NoError(t, err)
	b, err := NewTokenCipher([]byte("fedcba9876543210fedcba9876543210"))
	require.NoError(t, err)

	sealed, err := a.Encrypt("secret")
	require.NoError(t, err)

	_, err = b.Decrypt(sealed)
	assert.Error(t, err)

	_, err = a.Decrypt("not base64!")
	assert.Error(t, err)
}

func TestNewTokenCipherBadKey(t *testing.T) {
	_, err := NewTokenCipher([]byte("short"))
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(testKey, "u1", []string{"profile-a"}, time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(testKey, token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.True(t, claims.CanAccess("profile-a"))
	assert.False(t, claims.CanAccess("profile-b"))
}

func TestValidateTokenRejectsExpiredAndWrongKey(t *testing.T) {
	expired, err := GenerateToken(testKey, "u1", nil, -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(testKey, expired)
	assert.Error(t, err)

	valid, err := GenerateToken(testKey, "u1", nil, time.Hour)
	require.NoError(t, err)
	_, err = ValidateToken("another-secret-another-secret-00", valid)
	assert.Error(t, err)
}
