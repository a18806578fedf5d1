package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForTerminal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Loft by the canal", "Loft by the canal"},
		{"empty", "", ""},
		{"color codes", "\x1b[31mRed\x1b[0m room", "Red room"},
		{"title escape", "\x1b]0;pwned\x07Cabin", "Cabin"},
		{"newlines", "Line one\nline two\r\n", "Line one line two"},
		{"bell and nul", "Quiet\x07\x00 place", "Quiet place"},
		{"unicode kept", "Café près du lac", "Café près du lac"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ForTerminal(tt.input))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "Mount…", Truncate("Mountain cabin", 6))
	assert.Equal(t, "…", Truncate("abc", 1))
	assert.Equal(t, "abc", Truncate("abc", 0))
}
