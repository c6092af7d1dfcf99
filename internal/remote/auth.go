package remote

import (
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"go.trai.ch/zerr"
)

// Authenticator provides authentication for OCI registry operations.
type Authenticator interface {
	// Authenticate returns credentials for the given registry.
	// Empty credentials mean anonymous access.
	Authenticate(registry string) (username, password string, err error)
}

// DefaultAuthenticator uses the system keychain (like Docker).
type DefaultAuthenticator struct {
	keychain authn.Keychain
}

// NewDefaultAuthenticator creates an authenticator backed by authn.DefaultKeychain.
func NewDefaultAuthenticator() *DefaultAuthenticator {
	return &DefaultAuthenticator{keychain: authn.DefaultKeychain}
}

// Authenticate returns credentials from the keychain.
func (a *DefaultAuthenticator) Authenticate(registry string) (string, string, error) {
	reg, err := name.NewRegistry(registry)
	if err != nil {
		return "", "", zerr.With(zerr.Wrap(err, "invalid registry"), "registry", registry)
	}
	auth, err := a.keychain.Resolve(reg)
	if err != nil {
		return "", "", zerr.With(zerr.Wrap(err, "failed to resolve credentials"), "registry", registry)
	}
	cfg, err := auth.Authorization()
	if err != nil {
		return "", "", zerr.With(zerr.Wrap(err, "failed to read credentials"), "registry", registry)
	}
	return cfg.Username, cfg.Password, nil
}

// StaticAuthenticator returns fixed credentials for every registry.
type StaticAuthenticator struct {
	Username string
	Password string
}

// Authenticate returns the configured credentials.
func (a StaticAuthenticator) Authenticate(string) (string, string, error) {
	return a.Username, a.Password, nil
}
