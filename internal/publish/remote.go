package publish

import (
	"context"
	"strings"

	mperr "github.com/debemdeboas/micropub/internal/errors"
	"github.com/debemdeboas/micropub/internal/media"
	"github.com/debemdeboas/micropub/internal/micropub"
	"github.com/debemdeboas/micropub/internal/model"
)

// session is a resolved profile with a client bound to its endpoint.
type session struct {
	profile model.Profile
	token   string
	client  Client
}

func (e *Engine) session(profileName string) (*session, error) {
	profile, err := e.auth.ResolveProfile(profileName)
	if err != nil {
		return nil, err
	}
	if profile.MicropubEndpoint == "" {
		return nil, mperr.InvalidArgumentf("profile %q has no micropub endpoint", profile.Name).WithMeta("profile", profile.Name)
	}
	token, err := e.auth.LoadToken(profile.Name)
	if err != nil {
		return nil, err
	}
	return &session{profile: profile, token: token, client: e.clients(profile.MicropubEndpoint, token)}, nil
}

// Delete removes a post from the server. Local drafts are not touched.
func (e *Engine) Delete(ctx context.Context, url, profileName string) error {
	req, err := micropub.NewDelete(url)
	if err != nil {
		return mperr.WrapWithCode(err, mperr.CodeInvalidArgument, "cannot delete")
	}
	return e.sendAction(ctx, req, profileName)
}

func (e *Engine) Undelete(ctx context.Context, url, profileName string) error {
	req, err := micropub.NewUndelete(url)
	if err != nil {
		return mperr.WrapWithCode(err, mperr.CodeInvalidArgument, "cannot undelete")
	}
	return e.sendAction(ctx, req, profileName)
}

func (e *Engine) sendAction(ctx context.Context, req micropub.Request, profileName string) error {
	s, err := e.session(profileName)
	if err != nil {
		return err
	}
	if _, err := s.client.Send(ctx, req); err != nil {
		return err
	}
	publishLogger.Debug().Str("action", req.Action()).Str("profile", s.profile.Name).Msg("Action accepted")
	return nil
}

func (e *Engine) ListPosts(ctx context.Context, profileName string, limit, offset int) ([]model.RemotePost, error) {
	s, err := e.session(profileName)
	if err != nil {
		return nil, err
	}
	return s.client.Source(ctx, limit, offset)
}

// ListMedia lists uploads known to the media endpoint. Object storage
// endpoints cannot be listed.
func (e *Engine) ListMedia(ctx context.Context, profileName string, limit, offset int) ([]model.RemoteMedia, error) {
	s, err := e.session(profileName)
	if err != nil {
		return nil, err
	}

	endpoint := s.profile.MediaEndpoint
	if endpoint == "" {
		cfg, err := s.client.Config(ctx)
		if err != nil {
			return nil, err
		}
		endpoint = cfg.MediaEndpoint
	}
	switch {
	case endpoint == "":
		return nil, mperr.InvalidArgumentf("profile %q has no media endpoint", s.profile.Name).WithMeta("profile", s.profile.Name)
	case strings.HasPrefix(endpoint, media.S3Scheme):
		return nil, mperr.InvalidArgumentf("listing is not supported for %s endpoints", endpoint)
	}
	return s.client.MediaSource(ctx, endpoint, limit, offset)
}

// ServerConfig queries the endpoint's configuration with the profile's token,
// which also proves the token is accepted.
func (e *Engine) ServerConfig(ctx context.Context, profileName string) (model.Profile, *micropub.ServerConfig, error) {
	s, err := e.session(profileName)
	if err != nil {
		return model.Profile{}, nil, err
	}
	cfg, err := s.client.Config(ctx)
	if err != nil {
		return s.profile, nil, err
	}
	return s.profile, cfg, nil
}
