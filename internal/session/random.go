package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

var (
	adjectives = []string{"quick", "smart", "fast", "cool", "mega", "super", "ultra", "hyper"}
	nouns      = []string{"fox", "wolf", "bear", "eagle", "hawk", "lion", "tiger", "dragon"}
)

// RandomName suggests a preferred name such as "quickfox42".
func RandomName() string {
	return fmt.Sprintf("%s%s%d",
		adjectives[randomInt(0, len(adjectives)-1)],
		nouns[randomInt(0, len(nouns)-1)],
		randomInt(1, 999),
	)
}

// SanitizeName lowercases name and drops everything outside [a-z0-9].
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// randomToken returns n random base-36 characters.
func randomToken(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = base36[randomInt(0, len(base36)-1)]
	}
	return string(b)
}

// randomInt returns a uniform integer in [lo, hi].
func randomInt(lo, hi int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(hi-lo+1)))
	if err != nil {
		panic(fmt.Sprintf("reading random source: %v", err))
	}
	return lo + int(n.Int64())
}
