package publish

import (
	"context"
	"path/filepath"
	"time"

	"github.com/debemdeboas/micropub/internal/cache"
	mperr "github.com/debemdeboas/micropub/internal/errors"
	"github.com/debemdeboas/micropub/internal/media"
	"github.com/debemdeboas/micropub/internal/micropub"
	"github.com/debemdeboas/micropub/internal/model"
	"github.com/debemdeboas/micropub/internal/repository"
	"github.com/debemdeboas/micropub/internal/util"
)

// outcome is what a successful operation committed.
type outcome struct {
	draft    *model.Draft
	url      string
	isUpdate bool
	uploads  []model.UploadResult
	content  string
	hashes   []string
}

// run takes one draft from loading to commit. Nothing local is written
// before the server accepted the request.
func (e *Engine) run(ctx context.Context, id model.DraftID, status micropub.PostStatus, backdate *time.Time) (*outcome, error) {
	l := publishLogger.With().Str("draft_id", string(id)).Str("post_status", string(status)).Logger()

	if err := id.Validate(); err != nil {
		return nil, err
	}
	draft, err := e.drafts.Load(id)
	if err != nil {
		return nil, err
	}
	if draft.Metadata.Status == model.StatusPublished {
		return nil, mperr.InvalidArgumentf("draft %s is already published", id).WithMeta("url", draft.Metadata.URL)
	}
	l.Debug().Str("status", draft.Metadata.Status.Label()).Msg("Loaded draft")

	s, err := e.session(draft.Metadata.Profile)
	if err != nil {
		return nil, err
	}
	profile := s.profile

	// Every reference must resolve before anything is sent.
	refs, err := media.NewResolver(e.drafts.Dir()).Resolve(media.FindReferences(draft.Body, draft.Metadata.Photo))
	if err != nil {
		return nil, err
	}
	if len(refs) > 0 && profile.MediaEndpoint == "" {
		return nil, mperr.InvalidArgumentf("draft references %d local media file(s) but profile %q has no media endpoint", len(refs), profile.Name).
			WithMeta("profile", profile.Name)
	}
	l.Debug().Str("profile", profile.Name).Int("media", len(refs)).Msg("Resolved draft")

	out := &outcome{}
	urls, err := e.uploadAll(ctx, profile, s.token, refs, out)
	if err != nil {
		return nil, err
	}

	out.content = media.Substitute(draft.Body, urls)
	req, err := micropub.Build(micropub.BuildParams{
		Draft:      draft,
		Content:    out.content,
		Photos:     media.SubstitutePhotos(draft.Metadata.Photo, urls),
		PostStatus: status,
		Backdate:   backdate,
	})
	if err != nil {
		return nil, err
	}
	out.isUpdate = req.Action() == micropub.ActionUpdate

	l.Debug().Str("action", req.Action()).Str("endpoint", profile.MicropubEndpoint).Msg("Sending request")
	resp, err := s.client.Send(ctx, req)
	if err != nil {
		return nil, err
	}

	out.url = resp.URL
	if out.url == "" {
		out.url = draft.Metadata.URL
	}

	if err := e.commit(draft, status, backdate, out); err != nil {
		return nil, err
	}
	e.record(out)
	return out, nil
}

// uploadAll uploads refs in order, one at a time. Files with the same
// content are uploaded once.
func (e *Engine) uploadAll(ctx context.Context, profile model.Profile, token string, refs []model.MediaReference, out *outcome) (map[string]string, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	urls := make(map[string]string, len(refs))
	byHash := cache.NewCache[string, string]()

	for _, ref := range refs {
		hash, err := util.FileHash(ref.Path)
		if err != nil {
			return nil, mperr.WrapWithCode(err, mperr.CodeFileNotFound, "cannot read media file").WithMeta("path", ref.Original)
		}

		if url, ok := byHash.Get(hash); ok {
			publishLogger.Debug().Str("path", ref.Original).Str("url", url).Msg("Reusing upload for identical file")
			urls[ref.Original] = url
			continue
		}

		url, err := e.uploader.Upload(ctx, profile.MediaEndpoint, token, ref.Path)
		if err != nil {
			return nil, err
		}
		publishLogger.Debug().Str("path", ref.Original).Str("url", url).Msg("Uploaded media")

		byHash.Set(hash, url)
		urls[ref.Original] = url
		out.uploads = append(out.uploads, model.UploadResult{Filename: filepath.Base(ref.Path), URL: url})
		out.hashes = append(out.hashes, hash)
	}
	return urls, nil
}

// commit stores the new lifecycle state on a copy of draft. The body on disk
// keeps its local paths.
func (e *Engine) commit(draft *model.Draft, status micropub.PostStatus, backdate *time.Time, out *outcome) error {
	next := draft.Clone()
	next.Metadata.URL = out.url
	if backdate != nil {
		t := *backdate
		next.Metadata.Published = &t
	}

	if status == micropub.PostStatusDraft {
		next.Metadata.Status = model.StatusServerDraft
		if err := e.drafts.Save(next); err != nil {
			return mperr.Wrap(err, "post was sent but the draft could not be updated").WithMeta("url", out.url)
		}
		publishLogger.Debug().Str("draft_id", string(next.ID)).Str("url", out.url).Msg("Draft is now a server draft")
	} else {
		now := e.now()
		next.Metadata.Status = model.StatusPublished
		next.Metadata.PublishedAt = &now
		if err := e.drafts.Archive(next); err != nil {
			return mperr.Wrap(err, "post was published but the draft could not be archived").WithMeta("url", out.url)
		}
		publishLogger.Debug().Str("draft_id", string(next.ID)).Str("url", out.url).Msg("Draft published and archived")
	}

	out.draft = next
	return nil
}

// record appends the committed operation to the history. Failures are only logged.
func (e *Engine) record(out *outcome) {
	if e.history == nil {
		return
	}

	action := repository.ActionCreate
	if out.isUpdate {
		action = repository.ActionUpdate
	}
	rec := &model.PublicationRecord{
		DraftID: out.draft.ID,
		Action:  action,
		Status:  out.draft.Metadata.Status,
		URL:     out.url,
		Title:   out.draft.GetTitle(),
		Content: []byte(out.content),
		Uploads: out.uploads,
	}
	if err := e.history.RecordPublication(rec); err != nil {
		publishLogger.Warn().Err(err).Str("draft_id", string(out.draft.ID)).Msg("Failed to record publication")
	}

	for i, upload := range out.uploads {
		if err := e.history.RecordUpload(out.draft.ID, upload, out.hashes[i]); err != nil {
			publishLogger.Warn().Err(err).Str("file", upload.Filename).Msg("Failed to record upload")
		}
	}
}
