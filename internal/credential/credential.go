// Package credential generates one-time console passwords for new users.
package credential

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
)

// DefaultLength is the password length used when none is configured.
const DefaultLength = 8

// MinLength is the shortest length that can hold one character of each class.
const MinLength = 3

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// ErrLength indicates a requested length below MinLength.
var ErrLength = errors.New("password length too short")

// Generate returns a random password of the given length drawn from
// [A-Za-z0-9] that contains at least one lowercase letter, one uppercase
// letter and one digit.
func Generate(length int) (string, error) {
	return GenerateFrom(rand.Reader, length)
}

// GenerateFrom is Generate with an explicit randomness source. Callers
// outside tests should use Generate.
func GenerateFrom(r io.Reader, length int) (string, error) {
	if length < MinLength {
		return "", fmt.Errorf("%w: %d (minimum %d)", ErrLength, length, MinLength)
	}

	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, length)
	for {
		for i := range buf {
			n, err := rand.Int(r, max)
			if err != nil {
				return "", fmt.Errorf("reading random source: %w", err)
			}
			buf[i] = alphabet[n.Int64()]
		}
		if satisfiesPolicy(buf) {
			return string(buf), nil
		}
	}
}

func satisfiesPolicy(b []byte) bool {
	var lower, upper, digit bool
	for _, c := range b {
		switch {
		case 'a' <= c && c <= 'z':
			lower = true
		case 'A' <= c && c <= 'Z':
			upper = true
		case '0' <= c && c <= '9':
			digit = true
		}
	}
	return lower && upper && digit
}
