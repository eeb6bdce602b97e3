package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)

	key, err := DeriveKey("correct horse battery staple", salt)
	require.NoError(t, err)
	assert.Len(t, key, 32)

	// Deterministic for the same inputs
	again, err := DeriveKey("correct horse battery staple", salt)
	require.NoError(t, err)
	assert.Equal(t, key, again)

	// Different passphrase or salt, different key
	other, err := DeriveKey("another passphrase", salt)
	require.NoError(t, err)
	assert.NotEqual(t, key, other)

	salt2, err := GenerateSalt()
	require.NoError(t, err)
	other, err = DeriveKey("correct horse battery staple", salt2)
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestDeriveKey_Validation(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)

	_, err = DeriveKey("", salt)
	assert.ErrorContains(t, err, "passphrase")

	_, err = DeriveKey("pass", salt[:4])
	assert.ErrorContains(t, err, "salt")
}

func TestSealOpen(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)
	key, err := DeriveKey("pass", salt)
	require.NoError(t, err)

	sealed, err := Seal([]byte("ws-token-abc123"), key)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "ws-token", "tokens never hit disk in the clear")

	plaintext, err := Open(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, "ws-token-abc123", string(plaintext))
}

func TestSeal_UniqueNonces(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)
	key, err := DeriveKey("pass", salt)
	require.NoError(t, err)

	a, err := Seal([]byte("same payload"), key)
	require.NoError(t, err)
	b, err := Seal([]byte("same payload"), key)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpen_Failures(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)
	key, err := DeriveKey("pass", salt)
	require.NoError(t, err)

	sealed, err := Seal([]byte("payload"), key)
	require.NoError(t, err)

	// Tampered ciphertext
	sealed[len(sealed)-1] ^= 0xff
	_, err = Open(sealed, key)
	assert.Error(t, err)

	// Wrong key
	sealed, err = Seal([]byte("payload"), key)
	require.NoError(t, err)
	wrongKey, err := DeriveKey("other", salt)
	require.NoError(t, err)
	_, err = Open(sealed, wrongKey)
	assert.Error(t, err)

	// Truncated payload
	_, err = Open(sealed[:NonceSize-1], key)
	assert.ErrorContains(t, err, "too short")
}
