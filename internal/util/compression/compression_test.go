package compression

import (
	"bytes"
	"testing"
)

func TestCompressors(t *testing.T) {
	payload := bytes.Repeat([]byte("---\ntype: note\n---\n\nhello micropub\n"), 64)

	for _, name := range []string{"zstd", "gzip", "none"} {
		t.Run(name, func(t *testing.T) {
			c, err := ByName(name)
			if err != nil {
				t.Fatalf("ByName(%q): %v", name, err)
			}

			compressed, err := c.Compress(payload)
			if err != nil {
				t.Fatalf("Compress: %v", err)
			}
			if name != "none" && len(compressed) >= len(payload) {
				t.Errorf("Expected %s output to be smaller than input (%d >= %d)", name, len(compressed), len(payload))
			}

			out, err := c.Decompress(compressed)
			if err != nil {
				t.Fatalf("Decompress: %v", err)
			}
			if !bytes.Equal(out, payload) {
				t.Error("Decompressed data does not match input")
			}
		})
	}
}

func TestByNameUnknown(t *testing.T) {
	if _, err := ByName("lz4"); err == nil {
		t.Error("Expected error for unknown compressor")
	}
}

func TestGzipDecompressGarbage(t *testing.T) {
	if _, err := (GzipCompressor{}).Decompress([]byte("not gzip")); err == nil {
		t.Error("Expected error decompressing garbage")
	}
}
