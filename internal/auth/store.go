package auth

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/debemdeboas/micropub/internal/config"
	mperr "github.com/debemdeboas/micropub/internal/errors"
	"github.com/debemdeboas/micropub/internal/model"
)

const tokenExt = ".token"

// Store reads profiles from the configuration and tokens from <tokensDir>/<profile>.token.
type Store struct {
	profiles       map[string]config.ProfileConfig
	defaultProfile string
	tokensDir      string
}

var _ Provider = (*Store)(nil)

func NewStore(cfg *config.Config, tokensDir string) *Store {
	return &Store{
		profiles:       cfg.Profiles,
		defaultProfile: cfg.DefaultProfile,
		tokensDir:      tokensDir,
	}
}

func (s *Store) ResolveProfile(name string) (model.Profile, error) {
	name, err := s.profileName(name)
	if err != nil {
		return model.Profile{}, err
	}

	p := s.profiles[name]
	authLogger.Debug().Str("profile", name).Str("endpoint", p.MicropubEndpoint).Msg("Resolved profile")

	return model.Profile{
		Name:                  name,
		Domain:                p.Domain,
		MicropubEndpoint:      p.MicropubEndpoint,
		MediaEndpoint:         p.MediaEndpoint,
		TokenEndpoint:         p.TokenEndpoint,
		AuthorizationEndpoint: p.AuthorizationEndpoint,
	}, nil
}

// profileName picks the explicit name, then default_profile, then the only
// configured profile.
func (s *Store) profileName(name string) (string, error) {
	if name == "" {
		name = s.defaultProfile
	}
	if name == "" {
		if len(s.profiles) == 1 {
			for only := range s.profiles {
				return only, nil
			}
		}
		return "", mperr.InvalidArgumentf("no profile selected and no default_profile configured")
	}
	if _, ok := s.profiles[name]; !ok {
		return "", mperr.NotFoundf("profile %q is not configured", name).WithMeta("profile", name)
	}
	return name, nil
}

func (s *Store) LoadToken(profileName string) (string, error) {
	name, err := s.profileName(profileName)
	if err != nil {
		return "", err
	}

	path := s.TokenPath(name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", mperr.Newf(mperr.CodeUnauthenticated, "no token stored for profile %q", name).
			WithMeta("profile", name).
			WithMeta("path", path)
	}
	if err != nil {
		return "", mperr.Wrapf(err, "failed to read token for profile %q", name)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", mperr.Newf(mperr.CodeUnauthenticated, "token file for profile %q is empty", name).
			WithMeta("profile", name).
			WithMeta("path", path)
	}
	return token, nil
}

// SaveToken stores token for a configured profile, readable only by the owner.
func (s *Store) SaveToken(profileName, token string) error {
	name, err := s.profileName(profileName)
	if err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return mperr.InvalidArgumentf("token must not be empty")
	}

	if err := os.MkdirAll(s.tokensDir, 0o700); err != nil {
		return mperr.Wrap(err, "failed to create tokens directory")
	}
	path := s.TokenPath(name)
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return mperr.Wrapf(err, "failed to write token for profile %q", name)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0o600); err != nil {
		return mperr.Wrapf(err, "failed to restrict token file %s", path)
	}

	authLogger.Info().Str("profile", name).Msg("Stored token")
	return nil
}

func (s *Store) TokenPath(profileName string) string {
	return filepath.Join(s.tokensDir, profileName+tokenExt)
}
