package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLZ4_Idempotence(t *testing.T) {
	original := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 100)

	compressed, err := CompressLZ4(original)
	require.NoError(t, err)
	assert.NotEqual(t, original, compressed)

	decompressed, err := DecompressLZ4(compressed, len(original))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(original, decompressed))
}

func TestLZ4_EmptyInput(t *testing.T) {
	compressed, err := CompressLZ4(nil)
	require.NoError(t, err)

	decompressed, err := DecompressLZ4(compressed, 0)
	require.NoError(t, err)
	assert.Empty(t, decompressed)
}
