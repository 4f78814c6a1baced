package at_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"i4.energy/across/nbiot/at"
)

// feed pushes input through f and collects every completed line.
func feed(f *at.Framer, input string) []string {
	var lines []string
	for i := 0; i < len(input); i++ {
		if line := f.Feed(input[i]); line != nil {
			lines = append(lines, string(line))
		}
	}
	return lines
}

func TestFramer(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		input    string
		expected []string
		buffered int
	}{
		{
			name:     "Terminator only",
			capacity: 64,
			input:    "\r\n",
			expected: []string{"\r\n"},
		},
		{
			name:     "Text then terminator",
			capacity: 64,
			input:    "+MGS:OK\r\n",
			expected: []string{"+MGS:OK\r\n"},
		},
		{
			name:     "Several lines in one chunk",
			capacity: 64,
			input:    "+NAS: Connected (activated)\r\nOK\r\n",
			expected: []string{"+NAS: Connected (activated)\r\n", "OK\r\n"},
		},
		{
			name:     "Partial line is held back",
			capacity: 64,
			input:    "OK\r\n+MGR:5,4865",
			expected: []string{"OK\r\n"},
			buffered: len("+MGR:5,4865"),
		},
		{
			name:     "Lone LF does not terminate",
			capacity: 64,
			input:    "A\nB\r\n",
			expected: []string{"A\nB\r\n"},
		},
		{
			name:     "Repeated CR before LF does not terminate",
			capacity: 64,
			input:    "OK\r\r\n",
			expected: nil,
			buffered: len("OK\r\r\n"),
		},
		{
			name:     "Line after a repeated CR",
			capacity: 64,
			input:    "OK\r\r\nA\r\n",
			expected: []string{"OK\r\r\nA\r\n"},
		},
		{
			name:     "Forced completion at capacity",
			capacity: 4,
			input:    "ABCDEFGH",
			expected: []string{"ABCD", "EFGH"},
		},
		{
			name:     "Terminator split by capacity",
			capacity: 3,
			input:    "OK\r\n",
			expected: []string{"OK\r"},
			buffered: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := at.NewFramer(tt.capacity)
			assert.Equal(t, tt.expected, feed(f, tt.input))
			assert.Equal(t, tt.buffered, f.Buffered())
		})
	}
}

func TestFramer_LineLengths(t *testing.T) {
	t.Run("N bytes plus terminator", func(t *testing.T) {
		f := at.NewFramer(128)
		for n := 0; n < 100; n += 9 {
			input := make([]byte, n)
			for i := range input {
				input[i] = 'x'
			}
			lines := feed(f, string(input)+at.CRLF)
			require.Len(t, lines, 1)
			assert.Len(t, lines[0], n+2)
		}
	})

	t.Run("Capacity without terminator", func(t *testing.T) {
		f := at.NewFramer(16)
		lines := feed(f, "0123456789ABCDEF")
		require.Len(t, lines, 1)
		assert.Len(t, lines[0], 16)
		assert.Zero(t, f.Buffered())
	})
}

func TestFramer_Reset(t *testing.T) {
	f := at.NewFramer(32)
	feed(f, "garbage\r")
	require.Equal(t, 8, f.Buffered())

	f.Reset()
	assert.Zero(t, f.Buffered())
	// The dangling CR must not combine with the next LF
	assert.Equal(t, []string{"\nOK\r\n"}, feed(f, "\nOK\r\n"))
}
