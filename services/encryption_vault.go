// services/encryption_vault.go
package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"prize-redemption-system/models"
)

const (
	vaultKeySize = 32 // AES-256
	vaultIVSize  = 16 // wallet clients use a 16-byte GCM IV
	vaultTagSize = 16
)

// DecryptionError is the only error type the vault returns. Malformed
// input, a wrong key and a failed authentication tag all look the same to
// the caller.
type DecryptionError struct {
	Reason string
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("shipping payload decryption failed: %s", e.Reason)
}

// EncryptionVault decrypts shipping PII sent by the wallet client. The key
// is injected at construction — never read from the environment here — and
// the vault neither caches nor logs plaintext. Decrypted values live only
// for the duration of the redemption call that requested them.
//
// Wire format: base64(iv) ":" base64(authTag) ":" base64(ciphertext),
// AES-256-GCM.
type EncryptionVault struct {
	key []byte
}

// NewEncryptionVault rejects keys that are not exactly 32 bytes.
func NewEncryptionVault(key []byte) (*EncryptionVault, error) {
	if len(key) != vaultKeySize {
		return nil, fmt.Errorf("shipping encryption key must be %d bytes, got %d", vaultKeySize, len(key))
	}
	k := make([]byte, vaultKeySize)
	copy(k, key)
	return &EncryptionVault{key: k}, nil
}

func (v *EncryptionVault) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, vaultIVSize)
}

// Decrypt authenticates and decrypts an encoded payload, then validates the
// plaintext as a complete shipping address.
func (v *EncryptionVault) Decrypt(encoded string) (*models.ShippingData, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return nil, &DecryptionError{Reason: "malformed payload"}
	}
	iv, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(iv) != vaultIVSize {
		return nil, &DecryptionError{Reason: "malformed iv"}
	}
	tag, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(tag) != vaultTagSize {
		return nil, &DecryptionError{Reason: "malformed auth tag"}
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, &DecryptionError{Reason: "malformed ciphertext"}
	}

	aead, err := v.gcm()
	if err != nil {
		return nil, &DecryptionError{Reason: "cipher init failed"}
	}
	// Go's GCM expects the tag appended to the ciphertext
	plaintext, err := aead.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return nil, &DecryptionError{Reason: "authentication failed"}
	}

	var data models.ShippingData
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, &DecryptionError{Reason: "invalid plaintext shape"}
	}
	if !data.Validate() {
		return nil, &DecryptionError{Reason: "incomplete shipping data"}
	}
	return &data, nil
}

// Encrypt is the inverse of Decrypt, producing the same wire format the
// wallet client does. Used by operator tooling (retry payloads) and tests.
func (v *EncryptionVault) Encrypt(data *models.ShippingData) (string, error) {
	plaintext, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode shipping data: %w", err)
	}
	iv := make([]byte, vaultIVSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to draw iv: %w", err)
	}
	aead, err := v.gcm()
	if err != nil {
		return "", fmt.Errorf("cipher init failed: %w", err)
	}
	sealed := aead.Seal(nil, iv, plaintext, nil)
	ciphertext := sealed[:len(sealed)-vaultTagSize]
	tag := sealed[len(sealed)-vaultTagSize:]

	return strings.Join([]string{
		base64.StdEncoding.EncodeToString(iv),
		base64.StdEncoding.EncodeToString(tag),
		base64.StdEncoding.EncodeToString(ciphertext),
	}, ":"), nil
}
