package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"math/big"

	"golang.org/x/crypto/argon2"
)

// HashParams are the argon2id cost parameters for code hashes.
type HashParams struct {
	Time      uint32
	Memory    uint32
	Threads   uint8
	KeyLength uint32
	SaltLen   int
}

func DefaultHashParams() HashParams {
	return HashParams{Time: 1, Memory: 64 * 1024, Threads: 2, KeyLength: 32, SaltLen: 16}
}

func (p HashParams) hash(code string, salt []byte) []byte {
	return argon2.IDKey([]byte(code), salt, p.Time, p.Memory, p.Threads, p.KeyLength)
}

// Hash returns base64 salt and base64 argon2id digest of code.
func (p HashParams) Hash(code string) (salt, digest string, err error) {
	raw := make([]byte, p.SaltLen)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(raw), base64.StdEncoding.EncodeToString(p.hash(code, raw)), nil
}

// Matches compares code against a stored salt and digest in constant time.
func (p HashParams) Matches(code, salt, digest string) bool {
	rawSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(digest)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(want, p.hash(code, rawSalt)) == 1
}

func generateCode(length int) (string, error) {
	const charset = "0123456789"
	code := make([]byte, length)
	charsetLen := big.NewInt(int64(len(charset)))

	for i := range code {
		n, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", err
		}
		code[i] = charset[n.Int64()]
	}
	return string(code), nil
}
