package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPromptConfirm(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{input: "y\n", expected: true},
		{input: "YES\n", expected: true},
		{input: "  yes  \n", expected: true},
		{input: "n\n", expected: false},
		{input: "\n", expected: false},
		{input: "", expected: false},
		{input: "yep\n", expected: false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			confirm := promptConfirm(strings.NewReader(tt.input), &out)

			assert.Equal(t, tt.expected, confirm("Free everything?"))
			assert.Equal(t, "Free everything? [y/N]: ", out.String())
		})
	}
}

func TestReadLineWithoutNewline(t *testing.T) {
	line, err := readLine(strings.NewReader("secret"))
	assert.NoError(t, err)
	assert.Equal(t, "secret", line)
}
