package authcore_test

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian/authcore"
)

func newTestCodec(t *testing.T) *authcore.Codec {
	t.Helper()
	codec, err := authcore.NewCodec(testConfig(), nopLogger{})
	require.NoError(t, err)
	return codec
}

func TestNewCodec(t *testing.T) {
	t.Run("rejects non hex key", func(t *testing.T) {
		cfg := testConfig()
		cfg.EncryptionKey = "not-hex"
		_, err := authcore.NewCodec(cfg, nopLogger{})
		assert.Error(t, err)
	})

	t.Run("rejects short key", func(t *testing.T) {
		cfg := testConfig()
		cfg.EncryptionKey = "deadbeef"
		_, err := authcore.NewCodec(cfg, nopLogger{})
		assert.Error(t, err)
	})

	t.Run("rejects missing salt", func(t *testing.T) {
		cfg := testConfig()
		cfg.HashSalt = ""
		_, err := authcore.NewCodec(cfg, nopLogger{})
		assert.Error(t, err)
	})
}

func TestCodecRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	for _, plaintext := range []string{
		"hello world",
		"",
		"exactly sixteen!",
		strings.Repeat("long payload ", 100),
	} {
		envelope, err := codec.Encrypt(plaintext)
		require.NoError(t, err)

		ivHex, cipherHex, found := strings.Cut(envelope, ":")
		require.True(t, found)
		assert.Len(t, ivHex, 32)
		assert.NotEmpty(t, cipherHex)

		decrypted, err := codec.Decrypt(envelope)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestCodecEncryptUsesFreshIV(t *testing.T) {
	codec := newTestCodec(t)

	first, err := codec.Encrypt("same input")
	require.NoError(t, err)
	second, err := codec.Encrypt("same input")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestCodecDecryptRejectsMalformedEnvelopes(t *testing.T) {
	codec := newTestCodec(t)

	valid, err := codec.Encrypt("payload")
	require.NoError(t, err)
	ivHex, cipherHex, _ := strings.Cut(valid, ":")

	tests := []struct {
		name     string
		envelope string
	}{
		{"no separator", "deadbeef"},
		{"non hex iv", "zz" + ivHex[2:] + ":" + cipherHex},
		{"short iv", "deadbeef:" + cipherHex},
		{"non hex ciphertext", ivHex + ":zznothex"},
		{"empty ciphertext", ivHex + ":"},
		{"ciphertext not block aligned", ivHex + ":deadbeef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decrypt(tt.envelope)
			assert.ErrorIs(t, err, authcore.ErrMalformedEnvelope)
		})
	}
}

func TestCodecDecryptRejectsInvalidPadding(t *testing.T) {
	codec := newTestCodec(t)

	// Build a well-formed envelope whose plaintext block ends in 0x00,
	// which is never a valid pad byte.
	key, err := hex.DecodeString(testConfig().EncryptionKey)
	require.NoError(t, err)
	block, err := aes.NewCipher(key)
	require.NoError(t, err)

	iv := make([]byte, aes.BlockSize)
	plain := make([]byte, aes.BlockSize)
	ciphertext := make([]byte, aes.BlockSize)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, plain)

	envelope := hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext)

	_, err = codec.Decrypt(envelope)
	assert.ErrorIs(t, err, authcore.ErrDecryptionFailed)
}

func TestKeyedHash(t *testing.T) {
	codec := newTestCodec(t)

	first := codec.KeyedHash("some data")
	second := codec.KeyedHash("some data")
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)

	assert.NotEqual(t, first, codec.KeyedHash("other data"))

	saltedCfg := testConfig()
	saltedCfg.HashSalt = "another-salt"
	other, err := authcore.NewCodec(saltedCfg, nopLogger{})
	require.NoError(t, err)
	assert.NotEqual(t, first, other.KeyedHash("some data"))
}

func TestRandomToken(t *testing.T) {
	token, err := authcore.RandomToken(32)
	require.NoError(t, err)
	assert.Len(t, token, 64)

	again, err := authcore.RandomToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, token, again)

	defaulted, err := authcore.RandomToken(0)
	require.NoError(t, err)
	assert.Len(t, defaulted, authcore.DefaultTokenBytes*2)
}
