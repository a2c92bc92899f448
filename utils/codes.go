package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Unambiguous characters: no 0/O, 1/I/L.
const accessCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const passwordAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789"

func randomString(alphabet string, n int) (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[idx.Int64()])
	}
	return b.String(), nil
}

// GenerateAccessCode returns an uppercase judge access code.
func GenerateAccessCode(n int) (string, error) {
	return randomString(accessCodeAlphabet, n)
}

// GeneratePassword returns a one-time login credential for a participant.
func GeneratePassword(n int) (string, error) {
	return randomString(passwordAlphabet, n)
}

// NormalizeAccessCode trims and upper-cases a code typed by a judge.
func NormalizeAccessCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
