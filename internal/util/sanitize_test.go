package util

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestCleanLine(t *testing.T) {
	t.Parallel()

	t.Run("strips control and invisible characters", func(t *testing.T) {
		require.Equal(t, "Acme Inc", CleanLine(" Acme\u200B Inc\x00\n ", 0))
	})

	t.Run("drops line breaks", func(t *testing.T) {
		require.Equal(t, "Subject: hiBcc: x", CleanLine("Subject: hi\r\nBcc: x", 0))
	})

	t.Run("truncates by runes", func(t *testing.T) {
		actual := CleanLine(strings.Repeat("é", 10), 4)
		require.Equal(t, "éééé", actual)
		require.True(t, utf8.ValidString(actual))
	})

	t.Run("empty after cleaning", func(t *testing.T) {
		require.Empty(t, CleanLine("\u200B\t ", 10))
	})
}

func TestCleanText(t *testing.T) {
	t.Parallel()

	require.Equal(t, "line one\nline\ttwo", CleanText("  line one\r\nline\ttwo\u200D  ", 0))
	require.Equal(t, "ab", CleanText("abc", 2))
}
