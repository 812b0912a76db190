package store

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

// Values are stored as a one-byte format tag followed by the payload.
const (
	formatJSON byte = 'j'
	formatZstd byte = 'z'

	// Small payloads cost more to compress than they save
	compressMinSize = 128
)

var errCorrupt = errors.New("corrupt cache value")

// codec encodes values as JSON and zstd-compresses the larger ones.
type codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newCodec() (*codec, error) {
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, err
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, err
	}

	return &codec{encoder: encoder, decoder: decoder}, nil
}

func (c *codec) marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	if len(data) >= compressMinSize {
		compressed := c.encoder.EncodeAll(data, make([]byte, 1, len(data)))
		if len(compressed) < len(data) {
			compressed[0] = formatZstd
			return compressed, nil
		}
	}

	out := make([]byte, 0, len(data)+1)
	out = append(out, formatJSON)
	return append(out, data...), nil
}

func (c *codec) unmarshal(raw []byte, v any) error {
	if len(raw) < 2 {
		return errCorrupt
	}

	payload := raw[1:]
	switch raw[0] {
	case formatJSON:
	case formatZstd:
		decoded, err := c.decoder.DecodeAll(payload, nil)
		if err != nil {
			return fmt.Errorf("%w: %v", errCorrupt, err)
		}
		payload = decoded
	default:
		return errCorrupt
	}

	return json.Unmarshal(payload, v)
}

func (c *codec) close() {
	c.encoder.Close()
	c.decoder.Close()
}
