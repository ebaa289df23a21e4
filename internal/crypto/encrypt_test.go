package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("SELECT salary FROM staff WHERE tenant_id = 'acme'")
	require.NoError(t, err)
	assert.NotContains(t, ciphertext, "salary")

	plaintext, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "SELECT salary FROM staff WHERE tenant_id = 'acme'", plaintext)
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	a, err := enc.Encrypt("same input")
	require.NoError(t, err)
	b, err := enc.Encrypt("same input")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestNewEncryptorRejectsMissingKey(t *testing.T) {
	_, err := NewEncryptor("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestNewEncryptorRejectsBadKeys(t *testing.T) {
	_, err := NewEncryptor("not-hex")
	assert.Error(t, err)

	_, err = NewEncryptor("abcd1234")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 bytes")
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("payload")
	require.NoError(t, err)

	flipped := "0"
	if strings.HasSuffix(ciphertext, "0") {
		flipped = "1"
	}
	tampered := ciphertext[:len(ciphertext)-1] + flipped
	_, err = enc.Decrypt(tampered)
	assert.Error(t, err)
}

func TestDecryptRejectsShortCiphertext(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	_, err = enc.Decrypt("abcd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}
