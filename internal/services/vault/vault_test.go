package vault

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "paylink/internal/errors"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestVault(t *testing.T, key string) *Vault {
	t.Helper()
	v, err := New(Config{HashCost: bcrypt.MinCost, EncryptionKey: key})
	require.NoError(t, err)
	return v
}

func TestNew_KeyFormats(t *testing.T) {
	raw := []byte("0123456789abcdef0123456789abcdef")

	for name, key := range map[string]string{
		"hex":    testKeyHex,
		"base64": base64.StdEncoding.EncodeToString(raw),
		"raw":    string(raw),
	} {
		t.Run(name, func(t *testing.T) {
			v := newTestVault(t, key)
			assert.True(t, v.CanEncrypt())
		})
	}

	_, err := New(Config{HashCost: bcrypt.MinCost, EncryptionKey: "too-short"})
	assert.ErrorIs(t, err, ErrInvalidKeyLength)

	_, err = New(Config{HashCost: 99})
	assert.Error(t, err)
}

func TestIssue(t *testing.T) {
	v := newTestVault(t, "")
	a, err := v.Issue()
	require.NoError(t, err)
	b, err := v.Issue()
	require.NoError(t, err)

	assert.Len(t, a, 2*TokenBytes)
	assert.NotEqual(t, a, b)
}

func TestHashAndVerify(t *testing.T) {
	v := newTestVault(t, "")
	hash, err := v.HashForAuth("secret-token")
	require.NoError(t, err)

	assert.NotEqual(t, "secret-token", hash)
	assert.True(t, v.Verify(hash, "secret-token"))
	assert.False(t, v.Verify(hash, "secret-tokem"))
	assert.False(t, v.Verify("", "secret-token"))
	assert.False(t, v.Verify("not-a-bcrypt-hash", "secret-token"))
}

func TestPreviewOf(t *testing.T) {
	assert.Equal(t, "abcd...5678", PreviewOf("abcdefgh12345678"))
	assert.Equal(t, "short", PreviewOf("short"))
	assert.Equal(t, "12345678", PreviewOf("12345678"))
	assert.Equal(t, "1234...6789", PreviewOf("123456789"))
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "abcdefgh", Prefix("abcdefgh12345678"))
	assert.Equal(t, "abc", Prefix("abc"))
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	v := newTestVault(t, testKeyHex)

	for _, token := range []string{"x", "abcdefgh12345678", strings.Repeat("f", 64), "токен"} {
		blob, err := v.EncryptForReveal(token)
		require.NoError(t, err)
		assert.NotContains(t, blob, token)

		got, err := v.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, token, got)
	}
}

func TestEncrypt_UsesFreshNonce(t *testing.T) {
	v := newTestVault(t, testKeyHex)
	a, err := v.EncryptForReveal("same")
	require.NoError(t, err)
	b, err := v.EncryptForReveal("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecrypt_TamperedFailsClosed(t *testing.T) {
	v := newTestVault(t, testKeyHex)
	blob, err := v.EncryptForReveal("abcdefgh12345678")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)

	for i := range raw {
		tampered := append([]byte(nil), raw...)
		tampered[i] ^= 0x01

		got, err := v.Decrypt(base64.StdEncoding.EncodeToString(tampered))
		require.Error(t, err, "byte %d", i)
		assert.Empty(t, got)
		assert.True(t, errors.Is(err, apperrors.ErrDecryptionFailed))
	}
}

func TestDecrypt_WrongKeyOrGarbage(t *testing.T) {
	v := newTestVault(t, testKeyHex)
	blob, err := v.EncryptForReveal("token")
	require.NoError(t, err)

	other := newTestVault(t, strings.Repeat("ab", 32))
	_, err = other.Decrypt(blob)
	assert.True(t, errors.Is(err, apperrors.ErrDecryptionFailed))

	_, err = v.Decrypt("!!!")
	assert.True(t, errors.Is(err, apperrors.ErrDecryptionFailed))

	_, err = v.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.True(t, errors.Is(err, apperrors.ErrDecryptionFailed))
}

func TestMissingKeyFailsClosed(t *testing.T) {
	v := newTestVault(t, "")
	assert.False(t, v.CanEncrypt())

	_, err := v.EncryptForReveal("token")
	assert.True(t, errors.Is(err, apperrors.ErrEncryptionKeyMissing))

	_, err = v.Decrypt("anything")
	assert.True(t, errors.Is(err, apperrors.ErrEncryptionKeyMissing))
}

func TestMint(t *testing.T) {
	v := newTestVault(t, testKeyHex)
	m, err := v.Mint()
	require.NoError(t, err)

	assert.Equal(t, m.Plaintext[:PrefixLength], m.Prefix)
	assert.Equal(t, PreviewOf(m.Plaintext), m.Preview)
	assert.True(t, v.Verify(m.Hash, m.Plaintext))

	revealed, err := v.Decrypt(m.Encrypted)
	require.NoError(t, err)
	assert.Equal(t, m.Plaintext, revealed)

	noKey := newTestVault(t, "")
	m, err = noKey.Mint()
	require.NoError(t, err)
	assert.Empty(t, m.Encrypted)
}
