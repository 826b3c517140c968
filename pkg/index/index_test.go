package index

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkShortTextIsSingleChunk(t *testing.T) {
	chunks := Chunk("short transcript", 1000, 200)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short transcript", chunks[0])
}

func TestChunkEmptyText(t *testing.T) {
	assert.Nil(t, Chunk("", 1000, 200))
}

func TestChunkOverlapAndCoverage(t *testing.T) {
	text := strings.Repeat("a", 250)
	chunks := Chunk(text, 100, 20)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 100)
	// Last chunk covers the tail: 250 - 2*80 = 90 runes.
	assert.Len(t, chunks[2], 90)

	// Reconstructing with the step accounts for every rune.
	total := 0
	step := 100 - 20
	for i, c := range chunks {
		if i == len(chunks)-1 {
			total += len(c)
		} else {
			total += step
		}
	}
	assert.Equal(t, 250, total)
}

func TestChunkDefaultsOnBadParams(t *testing.T) {
	text := strings.Repeat("x", DefaultChunkSize+1)
	chunks := Chunk(text, 0, -1)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], DefaultChunkSize)
}

func TestChunkOverlapExceedsSmallSize(t *testing.T) {
	// overlap >= size with size below the default overlap must still
	// produce a positive step, not a negative slice bound.
	text := strings.Repeat("a", 300)
	chunks := Chunk(text, 100, 150)

	require.NotEmpty(t, chunks)
	total := 0
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 100)
		total += len(c)
	}
	assert.GreaterOrEqual(t, total, 300)
	assert.Equal(t, text[len(text)-1:], chunks[len(chunks)-1][len(chunks[len(chunks)-1])-1:])

	assert.NotEmpty(t, Chunk(strings.Repeat("b", 10), 1, 5))
}

func TestChunkMultibyteSafe(t *testing.T) {
	text := strings.Repeat("회의록", 50)
	chunks := Chunk(text, 40, 10)
	for _, c := range chunks {
		assert.True(t, strings.HasPrefix(c, "회") || strings.HasPrefix(c, "의") || strings.HasPrefix(c, "록"))
	}
	joined := chunks[0]
	assert.Equal(t, 40, len([]rune(joined)))
}
