package sqlite

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// EncodeAll and DecodeAll are safe for concurrent use, so one encoder and
// one decoder serve every store.
var (
	blobEncoder = mustEncoder()
	blobDecoder = mustDecoder()
)

func mustEncoder() *zstd.Encoder {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(err)
	}
	return enc
}

func mustDecoder() *zstd.Decoder {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		panic(err)
	}
	return dec
}

// encodeBlob gob-encodes v and compresses the result with zstd.
func encodeBlob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	return blobEncoder.EncodeAll(buf.Bytes(), make([]byte, 0, buf.Len()/2)), nil
}

// decodeBlob reverses encodeBlob into v.
func decodeBlob(blob []byte, v interface{}) error {
	if len(blob) == 0 {
		return fmt.Errorf("empty blob")
	}
	raw, err := blobDecoder.DecodeAll(blob, nil)
	if err != nil {
		return fmt.Errorf("zstd decode: %w", err)
	}
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(v); err != nil {
		return fmt.Errorf("gob decode: %w", err)
	}
	return nil
}
