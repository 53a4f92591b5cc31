// Package auth resolves publishing profiles and the bearer tokens stored for them.
package auth

import (
	"github.com/debemdeboas/micropub/internal/model"
	"github.com/rs/zerolog"
)

var authLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	authLogger = l
}

// Provider hands the publish engine a profile and its token for one operation.
type Provider interface {
	// ResolveProfile returns the named profile, or the default one for "".
	ResolveProfile(name string) (model.Profile, error)

	// LoadToken returns the bearer token stored for the profile.
	LoadToken(profileName string) (string, error)
}
