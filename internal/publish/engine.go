// Package publish drives a draft through upload, request building, sending
// and the local metadata commit.
package publish

import (
	"context"
	"errors"
	"time"

	"github.com/debemdeboas/micropub/internal/auth"
	mperr "github.com/debemdeboas/micropub/internal/errors"
	"github.com/debemdeboas/micropub/internal/media"
	"github.com/debemdeboas/micropub/internal/micropub"
	"github.com/debemdeboas/micropub/internal/model"
	"github.com/debemdeboas/micropub/internal/repository"
	"github.com/rs/zerolog"
)

var publishLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	publishLogger = l
}

// Client is the part of the Micropub client the engine talks to.
type Client interface {
	Send(ctx context.Context, req micropub.Request) (*micropub.Response, error)
	Config(ctx context.Context) (*micropub.ServerConfig, error)
	Source(ctx context.Context, limit, offset int) ([]model.RemotePost, error)
	MediaSource(ctx context.Context, mediaEndpoint string, limit, offset int) ([]model.RemoteMedia, error)
}

// ClientFactory binds a client to one endpoint and token.
type ClientFactory func(endpoint, token string) Client

var _ Client = (*micropub.Client)(nil)

type Options struct {
	Drafts repository.DraftRepository
	// History is optional.
	History  repository.HistoryRepository
	Auth     auth.Provider
	Uploader media.Uploader
	Clients  ClientFactory
	Now      func() time.Time
}

type Engine struct {
	drafts   repository.DraftRepository
	history  repository.HistoryRepository
	auth     auth.Provider
	uploader media.Uploader
	clients  ClientFactory
	now      func() time.Time
}

func NewEngine(opts Options) (*Engine, error) {
	switch {
	case opts.Drafts == nil:
		return nil, errors.New("publish: a draft repository is required")
	case opts.Auth == nil:
		return nil, errors.New("publish: an auth provider is required")
	case opts.Uploader == nil:
		return nil, errors.New("publish: a media uploader is required")
	case opts.Clients == nil:
		return nil, errors.New("publish: a client factory is required")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		drafts:   opts.Drafts,
		history:  opts.History,
		auth:     opts.Auth,
		uploader: opts.Uploader,
		clients:  opts.Clients,
		now:      now,
	}, nil
}

// Push sends the draft to the server as a draft post. The first push creates
// the post; later pushes update it. The draft stays active.
func (e *Engine) Push(ctx context.Context, id model.DraftID, backdate *time.Time) (*model.PushResult, error) {
	out, err := e.run(ctx, id, micropub.PostStatusDraft, backdate)
	if err != nil {
		return nil, err
	}
	return &model.PushResult{
		URL:      out.url,
		IsUpdate: out.isUpdate,
		Uploads:  out.uploads,
	}, nil
}

// Publish makes the post public and archives the draft. A draft that was
// pushed before is flipped with an update; any other draft is created.
func (e *Engine) Publish(ctx context.Context, id model.DraftID, backdate *time.Time) (*model.PublishResult, error) {
	out, err := e.run(ctx, id, micropub.PostStatusPublished, backdate)
	if err != nil {
		return nil, err
	}
	return &model.PublishResult{
		URL:         out.url,
		IsUpdate:    out.isUpdate,
		Uploads:     out.uploads,
		PublishedAt: *out.draft.Metadata.PublishedAt,
	}, nil
}

func (e *Engine) BackdatePublish(ctx context.Context, id model.DraftID, date time.Time) (*model.PublishResult, error) {
	return e.Publish(ctx, id, &date)
}

// ListDrafts summarizes every active draft. Drafts that cannot be parsed are
// logged and left out.
func (e *Engine) ListDrafts() ([]model.DraftSummary, error) {
	drafts, err := e.activeDrafts()
	if err != nil {
		return nil, err
	}

	summaries := make([]model.DraftSummary, 0, len(drafts))
	for _, d := range drafts {
		summaries = append(summaries, d.Summary())
	}
	return summaries, nil
}

// SearchDrafts returns the active drafts whose title, body or categories contain query.
func (e *Engine) SearchDrafts(query string) ([]model.DraftSummary, error) {
	drafts, err := e.activeDrafts()
	if err != nil {
		return nil, err
	}

	var found []model.DraftSummary
	for _, d := range drafts {
		if d.Matches(query) {
			found = append(found, d.Summary())
		}
	}
	return found, nil
}

func (e *Engine) activeDrafts() ([]*model.Draft, error) {
	ids, err := e.drafts.ListActive()
	if err != nil {
		return nil, mperr.Wrap(err, "failed to list drafts")
	}

	drafts := make([]*model.Draft, 0, len(ids))
	for _, id := range ids {
		d, err := e.drafts.Load(id)
		switch {
		case err == nil:
			drafts = append(drafts, d)
		case mperr.IsFormat(err), mperr.IsNotFound(err):
			publishLogger.Warn().Err(err).Str("draft_id", string(id)).Msg("Skipping unreadable draft")
		default:
			return nil, err
		}
	}
	return drafts, nil
}

// History returns the most recent committed operations, or nothing when
// history is disabled.
func (e *Engine) History(limit int) ([]model.PublicationRecord, error) {
	if e.history == nil {
		return nil, nil
	}
	return e.history.ListPublications(limit)
}

// DraftHistory returns the committed operations of one draft, oldest first.
func (e *Engine) DraftHistory(id model.DraftID) ([]model.PublicationRecord, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if e.history == nil {
		return nil, nil
	}
	return e.history.PublicationsForDraft(id)
}
