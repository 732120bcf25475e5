package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipherRoundTrip(t *testing.T) {
	c, err := newCipher("01234567890123456789012345678901")
	require.NoError(t, err)

	sealed, err := c.Encrypt(`{"token":"abc"}`)
	require.NoError(t, err)
	assert.Contains(t, sealed, encPrefix)

	plain, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"token":"abc"}`, plain)
}

func TestNilCipherPassesThrough(t *testing.T) {
	var c *fieldCipher

	sealed, err := c.Encrypt("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", sealed)

	plain, err := c.Decrypt("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", plain)
}

func TestDecryptRejectsEncryptedValueWithoutKey(t *testing.T) {
	c, err := newCipher("01234567890123456789012345678901")
	require.NoError(t, err)
	sealed, err := c.Encrypt("secret")
	require.NoError(t, err)

	var noKey *fieldCipher
	_, err = noKey.Decrypt(sealed)
	assert.Error(t, err)
}
