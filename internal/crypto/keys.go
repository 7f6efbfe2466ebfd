// Package crypto шифрует локально сохранённые секреты клиента ключом,
// производным от пароля (Argon2id + AES-256-GCM).
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Параметры Argon2id
const (
	Argon2Time    = 1
	Argon2Memory  = 64 * 1024 // KB
	Argon2Threads = 4
	KeyLen        = 32
	SaltSize      = 16
)

// ErrEmptyPassphrase пароль не задан
var ErrEmptyPassphrase = errors.New("passphrase cannot be empty")

// GenerateSalt генерирует случайную соль размера SaltSize
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey выводит ключ шифрования из пароля и соли.
// context разделяет ключи разного назначения при одном пароле.
func DeriveKey(passphrase, context string, salt []byte) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(salt))
	}
	input := append([]byte(passphrase), context...)
	return argon2.IDKey(input, salt, Argon2Time, Argon2Memory, Argon2Threads, KeyLen), nil
}

// NewSealerFromPassphrase выводит ключ и создаёт Sealer.
// Соль кодируется в base64 для хранения рядом с шифротекстом.
func NewSealerFromPassphrase(passphrase, context, saltBase64 string) (*Sealer, error) {
	salt, err := base64.StdEncoding.DecodeString(saltBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	key, err := DeriveKey(passphrase, context, salt)
	if err != nil {
		return nil, err
	}
	return NewSealer(key)
}

// GenerateSaltBase64 генерирует соль и возвращает её в base64
func GenerateSaltBase64() (string, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(salt), nil
}
