// Package media finds local media referenced by drafts and uploads it to a
// Micropub media endpoint or an S3 bucket.
package media

import (
	"context"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

var mediaLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	mediaLogger = l
}

// Uploader stores one file and returns the URL it is served from.
type Uploader interface {
	Upload(ctx context.Context, endpoint, token, path string) (string, error)
}

const defaultContentType = "application/octet-stream"

// DetectContentType sniffs the file content and falls back to the extension
// when the content alone is not conclusive.
func DetectContentType(path string) string {
	sniffed := ""
	if m, err := mimetype.DetectFile(path); err == nil {
		sniffed = m.String()
	}

	if sniffed != "" && sniffed != defaultContentType && !strings.HasPrefix(sniffed, "text/plain") {
		return sniffed
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
		return byExt
	}
	if sniffed != "" {
		return sniffed
	}
	return defaultContentType
}
