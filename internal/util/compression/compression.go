// Package compression provides interchangeable codecs for stored content snapshots.
package compression

import "fmt"

type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// NoneCompressor stores data as is.
type NoneCompressor struct{}

func (NoneCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (NoneCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }

// ByName returns the compressor configured as "zstd", "gzip" or "none".
func ByName(name string) (Compressor, error) {
	switch name {
	case "zstd", "":
		return ZstdCompressor{}, nil
	case "gzip":
		return GzipCompressor{}, nil
	case "none":
		return NoneCompressor{}, nil
	}
	return nil, fmt.Errorf("unknown compression %q", name)
}
