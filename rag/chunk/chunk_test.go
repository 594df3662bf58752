package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studybase/rag"
)

func TestSplitShortText(t *testing.T) {
	chunks, err := Split("Hello World", 500, 50)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Hello World", chunks[0])
}

func TestSplitBlankText(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t\n"} {
		chunks, err := Split(text, 500, 50)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestSplitWindowArithmetic(t *testing.T) {
	text := strings.Repeat("a", 600)
	chunks, err := Split(text, 500, 50)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 500)
	assert.Len(t, chunks[1], 150)
}

func TestSplitOverlapIsExact(t *testing.T) {
	// Distinct runes so overlapping regions can be compared directly.
	var sb strings.Builder
	for i := 0; i < 120; i++ {
		sb.WriteRune(rune('a' + i%26))
	}
	text := sb.String()

	chunks, err := Split(text, 50, 10)
	require.NoError(t, err)
	require.True(t, len(chunks) >= 2)
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		assert.Equal(t, prev[len(prev)-10:], chunks[i][:10], "chunk %d overlap", i)
	}
}

func TestSplitOverlapGreaterOrEqualSizeRejected(t *testing.T) {
	for _, overlap := range []int{500, 501, 1000} {
		_, err := Split(strings.Repeat("x", 600), 500, overlap)
		require.Error(t, err)
		var cfgErr *rag.ConfigurationError
		assert.ErrorAs(t, err, &cfgErr)
	}
}

func TestSplitOverlapOneBelowSize(t *testing.T) {
	// overlap == size-1 advances one rune per window and must terminate.
	// The window slides until the start passes the end of the text, so the
	// shrinking trailing windows are emitted too.
	chunks, err := Split("abcdef", 3, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc", "bcd", "cde", "def", "ef", "f"}, chunks)
}

func TestSplitDeterministic(t *testing.T) {
	text := strings.Repeat("the quick brown fox ", 100)
	first, err := Split(text, 128, 32)
	require.NoError(t, err)
	second, err := Split(text, 128, 32)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSplitDropsWhitespaceWindows(t *testing.T) {
	text := strings.Repeat("a", 10) + strings.Repeat(" ", 30) + strings.Repeat("b", 10)
	chunks, err := Split(text, 10, 0)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
	assert.Len(t, chunks, 2)
}

func TestSplitMultiByteRunes(t *testing.T) {
	text := strings.Repeat("日本語のテキスト", 20)
	chunks, err := Split(text, 50, 10)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.True(t, len([]rune(c)) <= 50)
		// Re-encoding must round-trip: no rune was split mid-sequence.
		assert.Equal(t, c, string([]rune(c)))
	}
}
