package credential

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Policy(t *testing.T) {
	const samples = 10000
	for i := 0; i < samples; i++ {
		pw, err := Generate(8)
		require.NoError(t, err)
		require.Len(t, pw, 8)

		var lower, upper, digit bool
		for _, r := range pw {
			switch {
			case unicode.IsLower(r):
				lower = true
			case unicode.IsUpper(r):
				upper = true
			case unicode.IsDigit(r):
				digit = true
			default:
				t.Fatalf("unexpected character %q in %q", r, pw)
			}
		}
		require.Truef(t, lower && upper && digit, "password %q violates policy", pw)
	}
}

func TestGenerate_Lengths(t *testing.T) {
	for _, n := range []int{3, 12, 64} {
		pw, err := Generate(n)
		require.NoError(t, err)
		assert.Len(t, pw, n)
	}
}

func TestGenerate_TooShort(t *testing.T) {
	for _, n := range []int{-1, 0, 2} {
		_, err := Generate(n)
		assert.Truef(t, errors.Is(err, ErrLength), "length %d: err = %v", n, err)
	}
}

func TestGenerateFrom_RetriesUntilPolicyHolds(t *testing.T) {
	// rand.Int with a 62-wide range reads one byte per draw and masks to 6 bits.
	// Draw one is "aaa" (all lowercase, rejected); draw two is "aA0".
	src := bytes.NewReader([]byte{26, 26, 26, 26, 0, 52})
	pw, err := GenerateFrom(src, 3)
	require.NoError(t, err)
	assert.Equal(t, "aA0", pw)
}

func TestGenerateFrom_SourceExhausted(t *testing.T) {
	_, err := GenerateFrom(strings.NewReader(""), 8)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading random source")
}
