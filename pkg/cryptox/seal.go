// Package cryptox seals credentials before they touch disk.
//
// The credential store keeps a bearer token in a sqlite file in the user's
// home directory. Sealing wraps each stored value in an XChaCha20-Poly1305
// envelope keyed from a master key, so a copied database file is useless
// without the key material.
package cryptox

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"

	"golang.org/x/crypto/chacha20poly1305"
)

// MasterKeyEnv is consulted when no key file is configured.
const MasterKeyEnv = "WISHKRO_MASTER_KEY"

// LoadMasterKey returns key material from, in order: the given file path,
// the WISHKRO_MASTER_KEY environment variable, or a freshly generated
// ephemeral key. An ephemeral key means sealed values do not survive a
// process restart, which is fine for development and nothing else.
func LoadMasterKey(path string) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cryptox: read master key file: %w", err)
		}
		return data, nil
	}

	if envKey := os.Getenv(MasterKeyEnv); envKey != "" {
		return []byte(envKey), nil
	}

	ephemeral := make([]byte, 32)
	if _, err := rand.Read(ephemeral); err != nil {
		return nil, fmt.Errorf("cryptox: generate ephemeral master key: %w", err)
	}
	return ephemeral, nil
}

// Sealer encrypts and decrypts short string values with a key derived from
// arbitrary master key material.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives a 256-bit key from the given material via SHA-256 and
// builds an XChaCha20-Poly1305 sealer from it.
func NewSealer(keyMaterial []byte) (*Sealer, error) {
	if len(keyMaterial) == 0 {
		return nil, fmt.Errorf("cryptox: empty master key material")
	}

	key := sha256.Sum256(keyMaterial)
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptox: init aead: %w", err)
	}

	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext and returns base64(nonce || ciphertext).
func (s *Sealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("cryptox: generate nonce: %w", err)
	}

	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Tampered or truncated input fails.
func (s *Sealer) Open(sealed string) (string, error) {
	raw, err := base64.RawStdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("cryptox: decode sealed value: %w", err)
	}

	if len(raw) < chacha20poly1305.NonceSizeX {
		return "", fmt.Errorf("cryptox: sealed value too short")
	}

	nonce, ciphertext := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("cryptox: open sealed value: %w", err)
	}

	return string(plaintext), nil
}
