package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// Format names a blob serialization format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// zstdMagic prefixes every zstd frame; blobs starting with it are
// decompressed on read regardless of the codec's Compress setting, so
// toggling compression never strands previously written data.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// cborMode encodes timestamps as RFC 3339 strings so they decode back to
// the same UTC instant.
var cborMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func zstdCodecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil)
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil)
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

// Codec turns values into blobs and back.
type Codec struct {
	Format   Format
	Compress bool
}

// Marshal encodes v with the configured format, compressing if enabled.
func (c Codec) Marshal(v any) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch c.Format {
	case FormatCBOR:
		data, err = cborMode.Marshal(v)
	case FormatJSON, "":
		data, err = json.Marshal(v)
	default:
		return nil, fmt.Errorf("unknown format: %s", c.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.format(), err)
	}

	if !c.Compress {
		return data, nil
	}
	enc, _, err := zstdCodecs()
	if err != nil {
		return nil, fmt.Errorf("init zstd: %w", err)
	}
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// Unmarshal decodes data into v. Compressed blobs are detected by their
// frame header.
func (c Codec) Unmarshal(data []byte, v any) error {
	if bytes.HasPrefix(data, zstdMagic) {
		_, dec, err := zstdCodecs()
		if err != nil {
			return fmt.Errorf("init zstd: %w", err)
		}
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return fmt.Errorf("decompress: %w", err)
		}
	}

	switch c.Format {
	case FormatCBOR:
		if err := cbor.Unmarshal(data, v); err != nil {
			return fmt.Errorf("decode cbor: %w", err)
		}
	case FormatJSON, "":
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("decode json: %w", err)
		}
	default:
		return fmt.Errorf("unknown format: %s", c.Format)
	}
	return nil
}

func (c Codec) format() Format {
	if c.Format == "" {
		return FormatJSON
	}
	return c.Format
}
