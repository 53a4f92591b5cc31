// Package util provides content hashing and mmark front matter parsing.
package util

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/gomarkdown/markdown"
	"github.com/mmarkdown/mmark/v2/mast"
)

// TitleData is the TOML front matter of an mmark document.
type TitleData struct {
	*mast.TitleData
	// Consumed is the number of bytes of the normalized input taken by the front matter block.
	Consumed int
}

func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

func ContentHashString(content string) string {
	return ContentHash([]byte(content))
}

// FileHash hashes a file without reading it into memory.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

const mmarkDelimiter = "%%%"

// GetFrontMatter decodes a leading %%%-delimited TOML block.
func GetFrontMatter(md []byte) (*TitleData, error) {
	md = markdown.NormalizeNewlines(md)
	md = bytes.TrimLeft(md, "\n \t\r")

	delimiter := []byte(mmarkDelimiter)

	if len(md) < 2*len(delimiter) {
		return nil, fmt.Errorf("invalid front matter format")
	}

	first := bytes.Index(md[:len(delimiter)+1], delimiter)
	if first == -1 {
		return nil, fmt.Errorf("invalid front matter format")
	}

	second := bytes.Index(md[first+len(delimiter):], delimiter)
	if second == -1 {
		return nil, fmt.Errorf("invalid front matter format")
	}

	end := second + 2*len(delimiter) + 1
	if end > len(md) {
		return nil, fmt.Errorf("invalid front matter format")
	}

	frontMatter := md[len(delimiter) : second+len(delimiter)]
	info := &TitleData{
		TitleData: &mast.TitleData{},
	}

	if _, err := toml.Decode(string(frontMatter), info.TitleData); err != nil {
		return nil, fmt.Errorf("failed to decode front matter: %w", err)
	}

	if info.Language == "" {
		info.Language = "en"
	}
	info.Consumed = end

	return info, nil
}

// SplitFrontMatter returns the front matter, if any, and the document body
// that follows it. A document without front matter is returned whole.
func SplitFrontMatter(md []byte) (*TitleData, []byte) {
	info, err := GetFrontMatter(md)
	if err != nil {
		return nil, md
	}
	normalized := bytes.TrimLeft(markdown.NormalizeNewlines(md), "\n \t\r")
	return info, bytes.TrimLeft(normalized[info.Consumed:], "\n")
}
