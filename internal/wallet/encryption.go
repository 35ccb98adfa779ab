package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	nonceSize = 12
	tagSize   = 16
	saltSize  = 16
)

// NewSalt returns a fresh per-record encryption salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// deriveEncryptionKey binds the record key to both the caller's handle
// and the server secret. A database dump alone cannot decrypt.
func deriveEncryptionKey(handle, serverSecret string, salt []byte) []byte {
	mac := hmac.New(sha256.New, salt)
	mac.Write([]byte(strings.ToLower(handle)))
	mac.Write([]byte(serverSecret))
	return mac.Sum(nil)
}

// EncryptWIF encrypts the plaintext WIF with AES-256-GCM and returns
// hex(nonce || tag || ciphertext).
func EncryptWIF(wif, handle, serverSecret string, salt []byte) (string, error) {
	if wif == "" {
		return "", errors.New("wif must not be empty")
	}
	if len(salt) != saltSize {
		return "", fmt.Errorf("salt must be %d bytes", saltSize)
	}

	block, err := aes.NewCipher(deriveEncryptionKey(handle, serverSecret, salt))
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal emits ciphertext || tag; the stored layout is nonce || tag ||
	// ciphertext.
	sealed := gcm.Seal(nil, nonce, []byte(wif), nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, nonceSize+len(sealed))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ciphertext...)
	return hex.EncodeToString(out), nil
}

// DecryptWIF reverses EncryptWIF. Decryption requires the per-record salt
// and the caller's handle; either wrong fails authentication.
func DecryptWIF(encrypted, handle, serverSecret string, salt []byte) (string, error) {
	raw, err := hex.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decode encrypted wif: %w", err)
	}
	if len(raw) < nonceSize+tagSize {
		return "", errors.New("encrypted wif too short")
	}

	nonce := raw[:nonceSize]
	tag := raw[nonceSize : nonceSize+tagSize]
	ciphertext := raw[nonceSize+tagSize:]

	block, err := aes.NewCipher(deriveEncryptionKey(handle, serverSecret, salt))
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt wif: %w", err)
	}
	return string(plaintext), nil
}
