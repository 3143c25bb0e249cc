package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
)

var (
	ErrInvalidKeySize = errors.New("invalid key size")
	ErrEncryption     = errors.New("encryption failed")
	ErrDecryption     = errors.New("decryption failed")
)

// Encryptor seals stored document content. The associated data binds a
// ciphertext to its owner so blobs cannot be swapped between rows.
type Encryptor interface {
	Encrypt(data, associated []byte) ([]byte, error)
	Decrypt(data, associated []byte) ([]byte, error)
}

// NewEncryptorFromHex builds an AES-GCM encryptor from a hex encoded 16, 24
// or 32 byte key. An empty key disables encryption.
func NewEncryptorFromHex(key string) (Encryptor, error) {
	if key == "" {
		return plaintext{}, nil
	}
	raw, err := hex.DecodeString(key)
	if err != nil {
		return nil, ErrInvalidKeySize
	}
	return NewAESEncryptor(raw)
}

// NewAESEncryptor creates a new AES-GCM encryptor
func NewAESEncryptor(key []byte) (Encryptor, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrInvalidKeySize
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrEncryption
	}

	return &aesEncryptor{
		gcm: gcm,
	}, nil
}

type aesEncryptor struct {
	gcm cipher.AEAD
}

func (a *aesEncryptor) Encrypt(data, associated []byte) ([]byte, error) {
	nonce := make([]byte, a.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, ErrEncryption
	}

	return a.gcm.Seal(nonce, nonce, data, associated), nil
}

func (a *aesEncryptor) Decrypt(data, associated []byte) ([]byte, error) {
	nonceSize := a.gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrDecryption
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	out, err := a.gcm.Open(nil, nonce, ciphertext, associated)
	if err != nil {
		return nil, ErrDecryption
	}

	return out, nil
}

type plaintext struct{}

func (plaintext) Encrypt(data, _ []byte) ([]byte, error) { return data, nil }
func (plaintext) Decrypt(data, _ []byte) ([]byte, error) { return data, nil }
