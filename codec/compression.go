package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/lz4"
)

// CompressLZ4 compresses data, grounded on klauspost/compress/lz4, the
// actively maintained LZ4 implementation surfaced through the pack's
// dcrodman-franz-go manifest (itself depending on pierrec/lz4, of which
// klauspost/compress/lz4 is the maintained fork).
func CompressLZ4(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("codec: lz4 compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codec: lz4 compress close: %w", err)
	}
	return buf.Bytes(), nil
}

// DecompressLZ4 decompresses data into a buffer of exactly originalSize
// bytes (spec 4.1: "originalSize is the decompressed length").
func DecompressLZ4(data []byte, originalSize int) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	out := make([]byte, originalSize)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("codec: lz4 decompress: %w", err)
	}
	return out, nil
}
