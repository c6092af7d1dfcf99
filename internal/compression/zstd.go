// Package compression wraps zstd for stored objects and published layers.
package compression

import (
	"bytes"

	"github.com/klauspost/compress/zstd"
)

// minCompressSize is the smallest payload worth compressing.
const minCompressSize = 128

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Compressor encodes payloads with zstd when enabled. Decoding always works so
// objects written while compression was on stay readable after it is turned off.
type Compressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	enabled bool
}

// NewCompressor creates a Compressor. Level 1 is fastest, 3 compresses best,
// anything else selects the zstd default.
func NewCompressor(level int, enabled bool) (*Compressor, error) {
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}

	c := &Compressor{decoder: decoder, enabled: enabled}
	if !enabled {
		return c, nil
	}

	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(EncoderLevel(level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		decoder.Close()
		return nil, err
	}
	c.encoder = encoder
	return c, nil
}

// EncoderLevel maps a 1-3 level to a zstd encoder level.
func EncoderLevel(level int) zstd.EncoderLevel {
	switch level {
	case 1:
		return zstd.SpeedFastest
	case 3:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedDefault
	}
}

// Enabled reports whether Compress encodes anything.
func (c *Compressor) Enabled() bool { return c.enabled }

// Compress returns data zstd-encoded, or unchanged when compression is
// disabled, the payload is small, or encoding would not shrink it.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	if !c.enabled || len(data) < minCompressSize {
		return data, nil
	}

	compressed := c.encoder.EncodeAll(data, make([]byte, 0, len(data)))
	if len(compressed) >= len(data) {
		return data, nil
	}
	return compressed, nil
}

// Decompress reverses Compress. Payloads without a zstd frame header are
// returned as is.
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}
	return c.decoder.DecodeAll(data, nil)
}

// Close releases encoder and decoder state.
func (c *Compressor) Close() error {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
	return nil
}
