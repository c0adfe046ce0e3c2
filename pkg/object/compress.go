package object

import (
	"bytes"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic is the frame header every zstd stream starts with. Loose
// objects never start with it uncompressed because envelopes begin with
// an ASCII type name.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// compressZstd compresses data using zstd.
func compressZstd(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

// decompressZstd decompresses zstd-compressed data.
func decompressZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// isZstdEncoded checks for the zstd frame magic.
func isZstdEncoded(raw []byte) bool {
	return bytes.HasPrefix(raw, zstdMagic)
}
