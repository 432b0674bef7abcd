// Package vault issues merchant API tokens and keeps the three stored forms of each:
// a bcrypt hash for authentication, a masked preview for display and an AES-256-GCM copy for reveal.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/bcrypt"

	apperrors "paylink/internal/errors"
)

const (
	// TokenBytes of randomness per token; the plaintext is their hex form.
	TokenBytes = 32
	// PrefixLength is how much plaintext is stored in the lookup index.
	PrefixLength = 8
	previewEdge  = 4
)

var ErrInvalidKeyLength = errors.New("token encryption key must be 32 bytes for AES-256")

type Config struct {
	HashCost int
	// EncryptionKey is 32 bytes given as hex, base64 or raw text. Empty disables encrypt/decrypt.
	EncryptionKey string
}

type Vault struct {
	cost int
	key  []byte
	rand io.Reader
}

// Material is everything a rotation writes in one update. Plaintext is never persisted.
type Material struct {
	Plaintext string
	Hash      string
	Prefix    string
	Preview   string
	Encrypted string
}

func New(cfg Config) (*Vault, error) {
	cost := cfg.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("token hash cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	v := &Vault{cost: cost, rand: rand.Reader}
	if cfg.EncryptionKey != "" {
		key, err := parseKey(cfg.EncryptionKey)
		if err != nil {
			return nil, err
		}
		v.key = key
	}
	return v, nil
}

func parseKey(s string) ([]byte, error) {
	if len(s) == 2*TokenBytes {
		if key, err := hex.DecodeString(s); err == nil {
			return key, nil
		}
	}
	if key, err := base64.StdEncoding.DecodeString(s); err == nil && len(key) == 32 {
		return key, nil
	}
	if len(s) == 32 {
		return []byte(s), nil
	}
	return nil, ErrInvalidKeyLength
}

// CanEncrypt reports whether a key is configured.
func (v *Vault) CanEncrypt() bool {
	return len(v.key) == 32
}

// Issue returns a fresh random token.
func (v *Vault) Issue() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := io.ReadFull(v.rand, buf); err != nil {
		return "", apperrors.ErrCrypto.Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}

func (v *Vault) HashForAuth(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), v.cost)
	if err != nil {
		return "", apperrors.ErrCrypto.Wrap(err)
	}
	return string(hash), nil
}

// Verify compares in constant time. Any malformed hash simply does not match.
func (v *Vault) Verify(hash, plaintext string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// PreviewOf masks all but the first and last four characters.
func PreviewOf(plaintext string) string {
	if len(plaintext) <= 2*previewEdge {
		return plaintext
	}
	return plaintext[:previewEdge] + "..." + plaintext[len(plaintext)-previewEdge:]
}

// Prefix is the non-unique lookup prefix of a token.
func Prefix(plaintext string) string {
	if len(plaintext) < PrefixLength {
		return plaintext
	}
	return plaintext[:PrefixLength]
}

// EncryptForReveal seals plaintext with a random nonce prepended to ciphertext and tag, base64 encoded.
func (v *Vault) EncryptForReveal(plaintext string) (string, error) {
	gcm, err := v.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(v.rand, nonce); err != nil {
		return "", apperrors.ErrCrypto.Wrap(err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt fails closed on a missing key, a malformed blob or a tag mismatch.
func (v *Vault) Decrypt(blob string) (string, error) {
	gcm, err := v.aead()
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", apperrors.ErrDecryptionFailed.Wrap(err)
	}
	if len(raw) < gcm.NonceSize()+gcm.Overhead() {
		return "", apperrors.ErrDecryptionFailed.WithMessage("token ciphertext is too short")
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", apperrors.ErrDecryptionFailed.Wrap(err)
	}
	return string(plaintext), nil
}

func (v *Vault) aead() (cipher.AEAD, error) {
	if !v.CanEncrypt() {
		return nil, apperrors.ErrEncryptionKeyMissing
	}
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, apperrors.ErrCrypto.Wrap(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperrors.ErrCrypto.Wrap(err)
	}
	return gcm, nil
}

// Mint issues a token and derives every stored form from it. Without a key the
// encrypted copy is left empty and only the preview can be shown later.
func (v *Vault) Mint() (*Material, error) {
	plaintext, err := v.Issue()
	if err != nil {
		return nil, err
	}
	return v.Derive(plaintext)
}

// Derive computes the stored forms of an existing plaintext.
func (v *Vault) Derive(plaintext string) (*Material, error) {
	hash, err := v.HashForAuth(plaintext)
	if err != nil {
		return nil, err
	}
	m := &Material{
		Plaintext: plaintext,
		Hash:      hash,
		Prefix:    Prefix(plaintext),
		Preview:   PreviewOf(plaintext),
	}
	if v.CanEncrypt() {
		if m.Encrypted, err = v.EncryptForReveal(plaintext); err != nil {
			return nil, err
		}
	}
	return m, nil
}
