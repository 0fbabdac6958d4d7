package textproc_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftbhabuk/yatra/internal/textproc"
)

func words(n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = "himalaya"
	}
	return strings.Join(out, " ")
}

func TestChunkWindowProgression(t *testing.T) {
	c := textproc.NewWordChunker(10, 4, 10)
	text := words(25)
	chunks := c.Chunk(text)
	require.Len(t, chunks, 4)

	// Windows advance by size minus overlap; concatenating each chunk's
	// first step words walks the text front to back.
	step := 10 - 4
	source := strings.Fields(text)
	var walked []string
	for i, chunk := range chunks {
		got := strings.Fields(chunk)
		if i < len(chunks)-1 {
			assert.Len(t, got, 10)
		}
		if len(got) > step {
			walked = append(walked, got[:step]...)
		} else {
			walked = append(walked, got...)
		}
	}
	assert.Equal(t, source[:len(walked)], walked)
}

func TestChunkDiscardsShortWindows(t *testing.T) {
	c := textproc.NewWordChunker(800, 200, 100)
	for _, chunk := range c.Chunk(words(1500)) {
		assert.Greater(t, len(chunk), 100)
	}
	// A tail window far under the character floor is dropped entirely.
	assert.Empty(t, textproc.NewWordChunker(10, 2, 100).Chunk("tiny tail"))
}

func TestChunkEmptyInput(t *testing.T) {
	c := textproc.NewWordChunker(0, 0, 0)
	assert.Nil(t, c.Chunk(""))
	assert.Nil(t, c.Chunk("   \n\t "))
}

func TestChunkDeterministic(t *testing.T) {
	c := textproc.NewWordChunker(50, 10, 10)
	text := words(300)
	assert.Equal(t, c.Chunk(text), c.Chunk(text))
}

func TestChunkZeroArgsUseDefaults(t *testing.T) {
	// Zero arguments mean 800-word windows advancing by 600, so the second
	// window starts at word 600 and carries the 400 remaining words.
	c := textproc.NewWordChunker(0, 0, 0)
	chunks := c.Chunk(words(1000))
	require.Len(t, chunks, 2)
	assert.Len(t, strings.Fields(chunks[0]), 800)
	assert.Len(t, strings.Fields(chunks[1]), 400)
}

func TestChunkOverlapGuard(t *testing.T) {
	// An overlap at or above the chunk size would stall the window.
	c := textproc.NewWordChunker(10, 10, 1)
	chunks := c.Chunk(words(40))
	assert.NotEmpty(t, chunks)
}
