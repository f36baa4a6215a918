package authcore

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"

	"github.com/goliatone/go-errors"
)

// DefaultTokenBytes is the entropy of a generated random token: 32 bytes is
// well past the 128-bit floor verification tokens require.
const DefaultTokenBytes = 32

const envelopeSeparator = ":"

// Codec provides reversible encryption for auxiliary secrets plus a keyed
// one-way hash for fingerprinting sensitive values. It is never used for
// password storage; that is the Hasher's job.
type Codec struct {
	key    []byte
	salt   string
	logger Logger
}

// NewCodec builds a Codec from the configured 256-bit key and hash salt.
// Construction fails fast on a missing or malformed key.
func NewCodec(cfg Config, logger Logger) (*Codec, error) {
	if logger == nil {
		logger = defLogger{}
	}

	key, err := hex.DecodeString(cfg.EncryptionKey)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "encryption key must be hex encoded")
	}
	if len(key) != 32 {
		return nil, errors.New("encryption key must be 256 bits", errors.CategoryBadInput).
			WithMetadata(map[string]any{"bytes": len(key)})
	}
	if cfg.HashSalt == "" {
		return nil, errors.New("hash salt is required", errors.CategoryBadInput)
	}

	return &Codec{key: key, salt: cfg.HashSalt, logger: logger}, nil
}

// Encrypt seals plaintext with AES-256-CBC under a fresh random IV and
// returns the envelope "iv_hex:ciphertext_hex".
func (c *Codec) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to initialize cipher")
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate IV")
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + envelopeSeparator + hex.EncodeToString(ciphertext), nil
}

// Decrypt opens an envelope produced by Encrypt. A structurally invalid
// envelope, wrong IV length, or failed padding check is rejected; tampered
// input never yields garbage silently.
func (c *Codec) Decrypt(envelope string) (string, error) {
	ivHex, cipherHex, found := strings.Cut(envelope, envelopeSeparator)
	if !found {
		return "", ErrMalformedEnvelope
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		c.logger.Debug("codec decrypt rejected non-hex IV", "error", err)
		return "", ErrMalformedEnvelope
	}
	if len(iv) != aes.BlockSize {
		return "", ErrMalformedEnvelope
	}

	ciphertext, err := hex.DecodeString(cipherHex)
	if err != nil {
		c.logger.Debug("codec decrypt rejected non-hex ciphertext", "error", err)
		return "", ErrMalformedEnvelope
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", ErrMalformedEnvelope
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to initialize cipher")
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, ok := pkcs7Unpad(plaintext, aes.BlockSize)
	if !ok {
		c.logger.Error("codec decrypt failed padding check, envelope likely tampered")
		return "", ErrDecryptionFailed
	}

	return string(unpadded), nil
}

// KeyedHash returns a deterministic sha256 digest of data concatenated with
// the process salt, hex encoded. Suitable for deduplicating sensitive values,
// never for passwords.
func (c *Codec) KeyedHash(data string) string {
	sum := sha256.Sum256([]byte(data + c.salt))
	return hex.EncodeToString(sum[:])
}

// RandomToken returns byteLength cryptographically secure random bytes as a
// hex string. Zero or negative lengths use DefaultTokenBytes.
func (c *Codec) RandomToken(byteLength int) (string, error) {
	return RandomToken(byteLength)
}

// RandomToken is the package-level variant for callers without a Codec.
func RandomToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		byteLength = DefaultTokenBytes
	}

	buf := make([]byte, byteLength)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate random token")
	}
	return hex.EncodeToString(buf), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, false
	}

	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, false
	}

	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, false
		}
	}

	return data[:len(data)-padding], true
}
