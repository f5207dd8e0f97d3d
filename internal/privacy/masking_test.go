package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPhoneNumber(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"+27820001111", "+********1111"},
		{"27820001111", "*******1111"},
		{"+123", "+***"},
		{"12", "**"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, MaskPhoneNumber(tt.input))
	}
}

func TestMaskURN(t *testing.T) {
	assert.Equal(t, "tel:+********1111", MaskURN("tel:+27820001111"))
	assert.Equal(t, "*******1111", MaskURN("27820001111"))
	assert.Equal(t, "twitter:*****body", MaskURN("twitter:somebody"))
}
