package common

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

// GenerateRandByteArray returns size cryptographically secure random bytes.
// It panics if the system's entropy source fails.
func GenerateRandByteArray(size int) []byte {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return buf
}

// MakeRandHexString generates a random hexadecimal string encoding size
// random bytes (the result is 2*size characters long).
func MakeRandHexString(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// MakeRandBase64String generates a standard-base64 string encoding size
// random bytes. Refresh tokens use 64 bytes of entropy.
func MakeRandBase64String(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// WipeByteArray overwrites the slice with zeros. Used to drop plaintext
// passwords from memory once they are hashed.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
