package repository

import (
	"bytes"
	"strings"

	mperr "github.com/debemdeboas/micropub/internal/errors"
	"github.com/debemdeboas/micropub/internal/model"
	"github.com/gomarkdown/markdown"
	"gopkg.in/yaml.v3"
)

const frontMatterDelimiter = "---"

// EncodeDraft renders a draft as YAML front matter between two delimiter lines,
// a blank line, and the body.
func EncodeDraft(d *model.Draft) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(frontMatterDelimiter + "\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.Metadata); err != nil {
		return nil, mperr.Wrapf(err, "error encoding front matter of draft %s", d.ID)
	}
	if err := enc.Close(); err != nil {
		return nil, mperr.Wrapf(err, "error encoding front matter of draft %s", d.ID)
	}

	buf.WriteString(frontMatterDelimiter + "\n\n")
	buf.WriteString(d.Body)
	return buf.Bytes(), nil
}

// DecodeDraft parses the format written by EncodeDraft. Any input that lacks
// the two delimiter lines, or whose header is not valid metadata, yields a
// format error. Line endings are normalized in the header only; the body is
// returned byte for byte.
func DecodeDraft(id model.DraftID, data []byte) (*model.Draft, error) {
	text := strings.TrimLeft(string(data), "\r\n \t")

	open, rest := cutLine(text)
	if strings.TrimSpace(open) != frontMatterDelimiter {
		return nil, mperr.Formatf("draft %s: missing opening front matter delimiter", id).WithMeta("draft_id", id)
	}

	var header strings.Builder
	var body string
	closed := false
	for rest != "" {
		var line string
		line, rest = cutLine(rest)
		if strings.TrimRight(line, " \t\r") == frontMatterDelimiter {
			body = rest
			closed = true
			break
		}
		header.WriteString(line)
		header.WriteByte('\n')
	}
	if !closed {
		return nil, mperr.Formatf("draft %s: missing closing front matter delimiter", id).WithMeta("draft_id", id)
	}

	meta := model.DefaultMetadata()
	if err := yaml.Unmarshal(markdown.NormalizeNewlines([]byte(header.String())), &meta); err != nil {
		return nil, mperr.WrapWithCode(err, mperr.CodeFormat, "draft "+string(id)+": invalid front matter").WithMeta("draft_id", id)
	}
	if meta.PostType == "" {
		meta.PostType = model.DefaultPostType
	}
	if err := meta.Validate(); err != nil {
		return nil, mperr.Wrapf(err, "draft %s", id).WithMeta("draft_id", id)
	}

	return &model.Draft{
		ID:       id,
		Metadata: meta,
		Body:     trimBlankLine(body),
	}, nil
}

// trimBlankLine drops the separator line EncodeDraft writes after the header.
func trimBlankLine(body string) string {
	if rest, ok := strings.CutPrefix(body, "\r\n"); ok {
		return rest
	}
	return strings.TrimPrefix(body, "\n")
}

func cutLine(s string) (line, rest string) {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}
