// Package envelope seals column payloads at rest with a passphrase-derived key.
//
// A sealed payload is AES-256-GCM ciphertext under a key derived with
// PBKDF2-HMAC-SHA256. Salt and nonce are random per call, so sealing the
// same plaintext twice never yields the same Blob.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Algo identifies the only supported envelope format.
const Algo = "AES-256-GCM+PBKDF2-SHA256"

const (
	iterations = 200_000
	saltSize   = 16
	nonceSize  = 12
	keySize    = 32
)

var (
	// ErrEmptyPassphrase is returned when sealing or opening without a passphrase.
	ErrEmptyPassphrase = errors.New("envelope: passphrase is empty")
	// ErrAuthentication covers wrong passphrases, tampering and malformed blobs.
	ErrAuthentication = errors.New("envelope: authentication failed")
	// ErrUnsupportedFormat is returned for an unknown algorithm tag.
	ErrUnsupportedFormat = errors.New("envelope: unsupported format")
)

// Blob is the textual, self-describing form of a sealed payload.
type Blob struct {
	Algo       string `json:"algo"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Seal encrypts plaintext under passphrase.
func Seal(plaintext, passphrase string) (Blob, error) {
	if passphrase == "" {
		return Blob{}, ErrEmptyPassphrase
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return Blob{}, fmt.Errorf("envelope: generate salt: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return Blob{}, fmt.Errorf("envelope: generate nonce: %w", err)
	}
	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return Blob{}, err
	}
	ct := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return Blob{
		Algo:       Algo,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ct),
	}, nil
}

// Open decrypts a Blob. It never returns partially decrypted output.
func Open(blob Blob, passphrase string) (string, error) {
	if blob.Algo != Algo {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, blob.Algo)
	}
	if passphrase == "" {
		return "", ErrEmptyPassphrase
	}
	salt, err := base64.StdEncoding.DecodeString(blob.Salt)
	if err != nil || len(salt) == 0 {
		return "", fmt.Errorf("%w: bad salt", ErrAuthentication)
	}
	nonce, err := base64.StdEncoding.DecodeString(blob.Nonce)
	if err != nil || len(nonce) != nonceSize {
		return "", fmt.Errorf("%w: bad nonce", ErrAuthentication)
	}
	ct, err := base64.StdEncoding.DecodeString(blob.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext", ErrAuthentication)
	}
	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}
	pt, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", ErrAuthentication
	}
	return string(pt), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("envelope: init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("envelope: init gcm: %w", err)
	}
	return gcm, nil
}
