package data

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

const AesKeyLength = 32 // AES-256

func GenerateAesGcmKey() []byte {

	key := make([]byte, AesKeyLength)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		panic(err.Error())
	}
	return key
}

// Cryptor encrypts fields at rest, eg, access tokens and authorization codes.
type Cryptor interface {
	EncryptServiceData(string) (string, error)
	DecryptServiceData(string) (string, error)
}

// NewServiceAesGcmKey builds a cryptor from the base64'd service secret.
func NewServiceAesGcmKey(encoded string) (Cryptor, error) {

	secret, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode aes gcm secret: %w", err)
	}

	if len(secret) != AesKeyLength {
		return nil, fmt.Errorf("aes key must be exactly %d bytes long, got %d", AesKeyLength, len(secret))
	}

	return &serviceAesGcmKey{
		secret: secret,
	}, nil
}

var _ Cryptor = (*serviceAesGcmKey)(nil)

type serviceAesGcmKey struct {
	secret []byte // Env Var
}

func (key *serviceAesGcmKey) gcm() (cipher.AEAD, error) {

	c, err := aes.NewCipher(key.secret)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(c)
}

func (key *serviceAesGcmKey) EncryptServiceData(plaintext string) (string, error) {

	gcm, err := key.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	encrypted := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(encrypted), nil
}

func (key *serviceAesGcmKey) DecryptServiceData(ciphertext string) (string, error) {

	gcm, err := key.gcm()
	if err != nil {
		return "", err
	}

	// decode ciphertext to bytes
	encrypted, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(encrypted) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, cipherBytes := encrypted[:nonceSize], encrypted[nonceSize:]
	decrypted, err := gcm.Open(nil, nonce, cipherBytes, nil)
	if err != nil {
		return "", err
	}

	return string(decrypted), nil
}
