package media

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	mperr "github.com/debemdeboas/micropub/internal/errors"
	"github.com/debemdeboas/micropub/internal/model"
)

var (
	// ![alt](path), ![alt](path with spaces "title") and ![alt](<path>)
	markdownImage = regexp.MustCompile(`!\[[^\]]*\]\(\s*(?:<([^<>\n]+)>|([^\s<)][^)\n]*?))(?:\s+(?:"[^"]*"|'[^']*'))?\s*\)`)
	// <img ... src="path" ...>
	htmlImage = regexp.MustCompile(`(?i)<img\b[^>]*?\bsrc\s*=\s*["']([^"']+)["']`)

	remoteSchemes = []string{"http://", "https://", "data:"}
)

// IsLocal reports whether a media reference points at the filesystem rather than a URL.
func IsLocal(path string) bool {
	lower := strings.ToLower(path)
	for _, scheme := range remoteSchemes {
		if strings.HasPrefix(lower, scheme) {
			return false
		}
	}
	return path != ""
}

// FindReferences returns the distinct local media paths used by a draft: image
// references in the body in the order they appear, then the photo list.
func FindReferences(body string, photos []string) []string {
	type hit struct {
		pos  int
		path string
	}

	var hits []hit
	for _, re := range []*regexp.Regexp{markdownImage, htmlImage} {
		for _, loc := range re.FindAllStringSubmatchIndex(body, -1) {
			start, end := pathGroup(loc)
			hits = append(hits, hit{pos: start, path: body[start:end]})
		}
	}
	slices.SortStableFunc(hits, func(a, b hit) int { return a.pos - b.pos })

	seen := make(map[string]bool)
	var refs []string
	add := func(p string) {
		if IsLocal(p) && !seen[p] {
			seen[p] = true
			refs = append(refs, p)
		}
	}
	for _, h := range hits {
		add(h.path)
	}
	for _, p := range photos {
		add(p)
	}
	return refs
}

// Resolver turns media references into absolute file paths.
type Resolver struct {
	baseDir string
	homeDir func() (string, error)
}

// NewResolver resolves relative references against baseDir, the directory
// holding the draft, and never against the working directory.
func NewResolver(baseDir string) *Resolver {
	return &Resolver{
		baseDir: baseDir,
		homeDir: os.UserHomeDir,
	}
}

func (r *Resolver) ResolvePath(ref string) (string, error) {
	switch {
	case ref == "~" || strings.HasPrefix(ref, "~/"):
		home, err := r.homeDir()
		if err != nil {
			return "", mperr.Wrap(err, "could not determine home directory")
		}
		return filepath.Join(home, strings.TrimPrefix(ref[1:], "/")), nil
	case filepath.IsAbs(ref):
		return filepath.Clean(ref), nil
	default:
		return filepath.Join(r.baseDir, ref), nil
	}
}

// Resolve resolves every reference and checks that each one is an existing
// regular file. It fails on the first missing file without touching the network.
func (r *Resolver) Resolve(refs []string) ([]model.MediaReference, error) {
	resolved := make([]model.MediaReference, 0, len(refs))
	for _, ref := range refs {
		path, err := r.ResolvePath(ref)
		if err != nil {
			return nil, err
		}

		info, err := os.Stat(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, mperr.FileNotFound(ref).WithMeta("resolved", path)
		case err != nil:
			return nil, mperr.WrapWithCode(err, mperr.CodeFileNotFound, "cannot access media file "+ref).WithMeta("path", ref)
		case !info.Mode().IsRegular():
			return nil, mperr.Newf(mperr.CodeFileNotFound, "media reference is not a regular file: %s", ref).WithMeta("path", ref)
		}

		mediaLogger.Debug().Str("reference", ref).Str("path", path).Msg("Media reference resolved")
		resolved = append(resolved, model.MediaReference{Original: ref, Path: path})
	}
	return resolved, nil
}

// Substitute replaces uploaded paths inside image syntax with their URLs.
// Only the path part of a matched image is rewritten, so text that merely
// contains a path is left alone.
func Substitute(body string, urls map[string]string) string {
	if len(urls) == 0 {
		return body
	}
	for _, re := range []*regexp.Regexp{markdownImage, htmlImage} {
		var out strings.Builder
		last := 0
		for _, loc := range re.FindAllStringSubmatchIndex(body, -1) {
			start, end := pathGroup(loc)
			url, ok := urls[body[start:end]]
			if !ok {
				continue
			}
			out.WriteString(body[last:start])
			out.WriteString(url)
			last = end
		}
		if last > 0 {
			out.WriteString(body[last:])
			body = out.String()
		}
	}
	return body
}

// pathGroup returns the bounds of the first capture group that matched.
func pathGroup(loc []int) (int, int) {
	for i := 2; i+1 < len(loc); i += 2 {
		if loc[i] >= 0 {
			return loc[i], loc[i+1]
		}
	}
	return loc[0], loc[0]
}

// SubstitutePhotos maps uploaded entries of a photo list to their URLs, keeping order.
func SubstitutePhotos(photos []string, urls map[string]string) []string {
	if photos == nil {
		return nil
	}
	out := make([]string, len(photos))
	for i, p := range photos {
		if url, ok := urls[p]; ok {
			out[i] = url
		} else {
			out[i] = p
		}
	}
	return out
}
