package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/debemdeboas/micropub/internal/config"
	mperr "github.com/debemdeboas/micropub/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, defaultProfile string) (*Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "tokens")
	cfg := &config.Config{
		DefaultProfile: defaultProfile,
		Profiles: map[string]config.ProfileConfig{
			"blog": {
				Domain:           "https://blog.example",
				MicropubEndpoint: "https://blog.example/micropub",
				MediaEndpoint:    "https://blog.example/media",
			},
			"notes": {
				Domain:           "https://notes.example",
				MicropubEndpoint: "https://notes.example/micropub",
			},
		},
	}
	return NewStore(cfg, dir), dir
}

func TestResolveProfile(t *testing.T) {
	s, _ := newTestStore(t, "blog")

	p, err := s.ResolveProfile("")
	require.NoError(t, err)
	assert.Equal(t, "blog", p.Name)
	assert.Equal(t, "https://blog.example/media", p.MediaEndpoint)

	p, err = s.ResolveProfile("notes")
	require.NoError(t, err)
	assert.Equal(t, "notes", p.Name)
	assert.Empty(t, p.MediaEndpoint)

	_, err = s.ResolveProfile("missing")
	assert.True(t, mperr.IsNotFound(err))
	assert.Equal(t, "missing", mperr.GetMeta(err)["profile"])
}

func TestResolveProfileWithoutDefault(t *testing.T) {
	s, _ := newTestStore(t, "")
	_, err := s.ResolveProfile("")
	assert.True(t, mperr.IsInvalidArgument(err))

	single := NewStore(&config.Config{Profiles: map[string]config.ProfileConfig{
		"only": {MicropubEndpoint: "https://only.example/micropub"},
	}}, t.TempDir())
	p, err := single.ResolveProfile("")
	require.NoError(t, err)
	assert.Equal(t, "only", p.Name)
}

func TestTokens(t *testing.T) {
	s, dir := newTestStore(t, "blog")

	_, err := s.LoadToken("blog")
	require.Error(t, err)
	assert.True(t, mperr.Is(err, mperr.CodeUnauthenticated))
	assert.NotEmpty(t, mperr.Hint(err))

	require.NoError(t, s.SaveToken("", "  abc123\n"))

	info, err := os.Stat(filepath.Join(dir, "blog.token"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	token, err := s.LoadToken("")
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)

	_, err = s.LoadToken("notes")
	assert.True(t, mperr.Is(err, mperr.CodeUnauthenticated))

	assert.True(t, mperr.IsInvalidArgument(s.SaveToken("blog", "   ")))
	assert.True(t, mperr.IsNotFound(s.SaveToken("../escape", "x")))
}

func TestEmptyTokenFile(t *testing.T) {
	s, dir := newTestStore(t, "blog")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.token"), []byte("\n"), 0o600))

	_, err := s.LoadToken("notes")
	assert.True(t, mperr.Is(err, mperr.CodeUnauthenticated))
}

func TestStoreAsProvider(t *testing.T) {
	s, _ := newTestStore(t, "blog")
	require.NoError(t, s.SaveToken("notes", "n-token"))

	var provider Provider = s
	profile, err := provider.ResolveProfile("notes")
	require.NoError(t, err)
	token, err := provider.LoadToken(profile.Name)
	require.NoError(t, err)
	assert.Equal(t, "n-token", token)
}
