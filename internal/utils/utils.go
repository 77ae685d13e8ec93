package utils

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/goccy/go-json"
)

const alnum = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomString returns a random alphanumeric string of the given length
func RandomString(length int) string {
	var sb strings.Builder
	sb.Grow(length)
	max := big.NewInt(int64(len(alnum)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken
			panic(err)
		}
		sb.WriteByte(alnum[n.Int64()])
	}
	return sb.String()
}

// MustJSON marshals the input, ignoring errors. For static values only.
func MustJSON(input any) []byte {
	data, err := json.Marshal(input)
	if err != nil {
		return nil
	}
	return data
}

// StripNonAlphanumeric removes every rune outside [a-zA-Z0-9]
func StripNonAlphanumeric(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
