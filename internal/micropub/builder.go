package micropub

import (
	"time"

	mperr "github.com/debemdeboas/micropub/internal/errors"
	"github.com/debemdeboas/micropub/internal/model"
)

// PostStatus is the value of the post-status property. It is the only field
// that tells a push from a publish.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

// BuildParams is the draft state a request is built from.
type BuildParams struct {
	Draft *model.Draft
	// Content is the body with uploaded media paths already substituted.
	Content string
	// Photos is the photo list with uploaded media paths already substituted.
	Photos     []string
	PostStatus PostStatus
	// Backdate overrides the draft's published timestamp for this request only.
	Backdate *time.Time
}

// Build returns a CreateRequest when the draft has no server URL yet and an
// UpdateRequest for that URL otherwise.
func Build(p BuildParams) (Request, error) {
	if p.Draft == nil {
		return nil, mperr.InvalidArgumentf("no draft to build a request from")
	}
	if p.PostStatus != PostStatusDraft && p.PostStatus != PostStatusPublished {
		return nil, mperr.InvalidArgumentf("unknown post status %q", p.PostStatus)
	}

	meta := p.Draft.Metadata
	published := meta.Published
	if p.Backdate != nil {
		published = p.Backdate
	}

	if meta.URL == "" {
		return buildCreate(p, published), nil
	}
	return buildUpdate(p, published)
}

func buildCreate(p BuildParams, published *time.Time) *CreateRequest {
	meta := p.Draft.Metadata
	props := Properties{}

	if p.Content != "" {
		props["content"] = []string{p.Content}
	}
	if meta.Name != "" {
		props["name"] = []string{meta.Name}
	}
	if len(meta.Category) > 0 {
		props["category"] = copyValues(meta.Category)
	}
	if len(p.Photos) > 0 {
		props["photo"] = copyValues(p.Photos)
	}
	if len(meta.SyndicateTo) > 0 {
		props["mp-syndicate-to"] = copyValues(meta.SyndicateTo)
	}
	if published != nil {
		props["published"] = []string{FormatTime(*published)}
	}
	props["post-status"] = []string{string(p.PostStatus)}

	return NewCreate(props)
}

func buildUpdate(p BuildParams, published *time.Time) (*UpdateRequest, error) {
	meta := p.Draft.Metadata
	replace := Properties{
		"content":     {p.Content},
		"post-status": {string(p.PostStatus)},
	}
	var del []string

	setOrDelete := func(name string, values []string) {
		if len(values) > 0 {
			replace[name] = copyValues(values)
		} else {
			del = append(del, name)
		}
	}

	if meta.Name != "" {
		replace["name"] = []string{meta.Name}
	} else {
		del = append(del, "name")
	}
	setOrDelete("category", meta.Category)
	setOrDelete("photo", p.Photos)

	if published != nil {
		replace["published"] = []string{FormatTime(*published)}
	}
	if p.PostStatus == PostStatusPublished && len(meta.SyndicateTo) > 0 {
		replace["mp-syndicate-to"] = copyValues(meta.SyndicateTo)
	}

	req, err := NewUpdate(meta.URL, replace, nil, del)
	if err != nil {
		return nil, mperr.Wrap(err, "cannot build update")
	}
	return req, nil
}

func copyValues(v []string) []string {
	return append([]string(nil), v...)
}
