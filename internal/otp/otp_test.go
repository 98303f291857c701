package otp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFirstMatchWins(t *testing.T) {
	code, ok := Extract("Your codes: 9182, then 1234567")
	assert.True(t, ok)
	assert.Equal(t, "9182", code)
}

func TestExtractAbsent(t *testing.T) {
	for _, text := range []string{
		"",
		"no digits at all",
		"short 123 and 45",
		"too long 123456789",
		"glued abc12345",
	} {
		code, ok := Extract(text)
		assert.False(t, ok, text)
		assert.Empty(t, code, text)
	}
}

func TestExtractBoundaries(t *testing.T) {
	code, ok := Extract("(code:482913).")
	assert.True(t, ok)
	assert.Equal(t, "482913", code)

	code, ok = Extract("12345678")
	assert.True(t, ok)
	assert.Equal(t, "12345678", code)
}

